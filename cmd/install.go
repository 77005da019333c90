package cmd

import (
	"context"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Integrate the active profile and install it into the game",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession()
		if err != nil {
			return err
		}

		var spinner *pterm.SpinnerPrinter
		if pterm.RawOutput {
			pterm.Info.Println("Integrating and installing...")
		} else {
			spinner, _ = pterm.DefaultSpinner.Start("Integrating and installing...")
		}

		record, failures, err := s.Install(context.Background())
		reportSpinner(spinner, err == nil)
		if err != nil {
			return err
		}

		for _, f := range failures {
			pterm.Warning.Printf("%s: skipped (%v)\n", f.Entry.Spec, f.Err)
		}
		pterm.Success.Printf("Installed (record %s)\n", record.ID)
		return nil
	},
}

var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Reverse a prior install, restoring the game's original state",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession()
		if err != nil {
			return err
		}
		if err := s.Uninstall(); err != nil {
			return err
		}
		pterm.Success.Println("Uninstalled")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(installCmd, uninstallCmd)
}
