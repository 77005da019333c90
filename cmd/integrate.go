package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"mint/internal/integrator"
	"mint/internal/profile"
)

var (
	integrateOut    string
	integrateDryRun bool
	integrateDRG    string
	integrateUpdate bool
	integrateMods   []string
)

var integrateCmd = &cobra.Command{
	Use:   "integrate",
	Short: "Resolve and merge the active profile's mods into a single pak",
	RunE: func(cmd *cobra.Command, args []string) error {
		if integrateDRG != "" {
			cliCfg.GamePath = integrateDRG
		}
		s, err := newSession()
		if err != nil {
			return err
		}

		// --mods bypasses the saved profile entirely: the given specs form
		// an ad-hoc, in-memory profile in argument order (first wins on
		// conflict), never persisted.
		if len(integrateMods) > 0 {
			p := s.NewProfile("command-line")
			for _, raw := range integrateMods {
				if _, err := p.AddEntry(raw); err != nil {
					return err
				}
			}
		}

		if integrateUpdate {
			for _, e := range s.ActiveProfile().Entries {
				if !e.Enabled {
					continue
				}
				if _, err := s.RefreshEntry(context.Background(), e); err != nil {
					pterm.Warning.Printf("%s: cache update failed (%v)\n", e.Spec, err)
				}
			}
		}

		var spinner *pterm.SpinnerPrinter
		if pterm.RawOutput {
			pterm.Info.Println("Resolving and fetching profile entries...")
		} else {
			spinner, _ = pterm.DefaultSpinner.Start("Resolving and fetching profile entries...")
		}

		if integrateDryRun {
			resolved, err := s.ResolveActive(context.Background())
			reportSpinner(spinner, err == nil && !anyFailed(resolved))
			if err != nil {
				return err
			}
			printResolvedSummary(resolved)
			return nil
		}

		outPath := integrateOut
		if outPath == "" && cliCfg.GamePath != "" {
			outPath = s.GamePaths().PakFile()
		}

		var result integrator.Result
		var failures []profile.ResolvedEntry
		if outPath != "" {
			if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
				reportSpinner(spinner, false)
				return fmt.Errorf("creating %s: %w", filepath.Dir(outPath), err)
			}
			f, ferr := os.Create(outPath)
			if ferr != nil {
				reportSpinner(spinner, false)
				return fmt.Errorf("creating %s: %w", outPath, ferr)
			}
			result, failures, err = s.Integrate(context.Background(), f)
			f.Close()
		} else {
			result, failures, err = s.Integrate(context.Background(), os.Stdout)
		}

		reportSpinner(spinner, err == nil && len(failures) == 0)
		if err != nil {
			return err
		}

		for _, fail := range failures {
			pterm.Warning.Printf("  %s: %v\n", fail.Entry.Spec, fail.Err)
		}
		pterm.Success.Printf("Integrated %d mod(s), %d conflict(s) resolved\n",
			len(result.Manifest.Mods), len(result.Manifest.Conflicts))
		for _, adv := range result.Advisories {
			pterm.Warning.Printf("  [%s] %s: %s\n", adv.Kind, adv.Mod, adv.Note)
		}
		return nil
	},
}

func reportSpinner(spinner *pterm.SpinnerPrinter, ok bool) {
	if spinner == nil {
		return
	}
	if ok {
		spinner.Success("Resolved")
	} else {
		spinner.Warning("Completed with warnings")
	}
}

func anyFailed(resolved []profile.ResolvedEntry) bool {
	for _, r := range resolved {
		if r.Err != nil {
			return true
		}
	}
	return false
}

func printResolvedSummary(resolved []profile.ResolvedEntry) {
	tableData := pterm.TableData{{"Mod", "Version", "Status"}}
	for _, r := range resolved {
		name := r.Entry.Spec
		if r.Resolved.DisplayName != "" {
			name = r.Resolved.DisplayName
		}
		status := "resolved"
		version := r.Resolved.Current
		if r.Err != nil {
			status = r.Err.Error()
			version = "N/A"
		}
		if pterm.RawOutput {
			fmt.Printf("  %s (%s): %s\n", name, version, status)
			continue
		}
		if r.Err != nil {
			name, version, status = pterm.Red(name), pterm.Red(version), pterm.Red(status)
		} else {
			name, version, status = pterm.Green(name), pterm.Green(version), pterm.Green(status)
		}
		tableData = append(tableData, []string{name, version, status})
	}
	if !pterm.RawOutput {
		_ = pterm.DefaultTable.WithHasHeader().WithData(tableData).Render()
	}
}

func init() {
	integrateCmd.Flags().StringVarP(&integrateOut, "out", "o", "", "write the merged pak to this file instead of stdout")
	integrateCmd.Flags().BoolVar(&integrateDryRun, "dry-run", false, "resolve and fetch every enabled entry and print its status, without merging or writing an output pak (conflicts are not computed)")
	integrateCmd.Flags().StringVar(&integrateDRG, "drg", "", "Deep Rock Galactic install root; the merged pak is written beside the game's own paks")
	integrateCmd.Flags().BoolVar(&integrateUpdate, "update", false, "re-resolve every enabled entry against its provider before integrating")
	integrateCmd.Flags().StringArrayVar(&integrateMods, "mods", nil, "mod specs to integrate instead of the active profile (repeatable, highest precedence first)")
	rootCmd.AddCommand(integrateCmd)
}
