package cmd

import (
	"context"
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the content-addressed mod cache",
}

var cacheStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print a summary of the cache store",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession()
		if err != nil {
			return err
		}
		pterm.Println(s.Store().String())
		missing := s.Store().SelfCheck()
		if len(missing) > 0 {
			pterm.Warning.Printf("%d artifact(s) referenced by the index have no blob on disk\n", len(missing))
		}
		return nil
	},
}

var cacheGCCmd = &cobra.Command{
	Use:   "gc",
	Short: "Remove cached blobs no longer reachable from any saved profile or the active profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession()
		if err != nil {
			return err
		}
		removed, err := s.GC(context.Background())
		if err != nil {
			return err
		}
		pterm.Success.Printf("Removed %d unreferenced blob(s)\n", removed)
		return nil
	},
}

var cacheRefreshCmd = &cobra.Command{
	Use:   "refresh <index>",
	Short: "Force a network re-resolution of a single profile entry, bypassing the offline cache",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession()
		if err != nil {
			return err
		}
		idx, err := parseIndex(args[0])
		if err != nil {
			return err
		}
		p := s.ActiveProfile()
		if idx < 0 || idx >= len(p.Entries) {
			return fmt.Errorf("entry index %d out of range", idx)
		}
		resolved, err := s.RefreshEntry(context.Background(), p.Entries[idx])
		if err != nil {
			return err
		}
		pterm.Success.Printf("Refreshed %s: current version %s\n", resolved.DisplayName, resolved.Current)
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheStatusCmd, cacheGCCmd, cacheRefreshCmd)
	rootCmd.AddCommand(cacheCmd)
}
