package cmd

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"mint/internal/mintcore"
	"mint/internal/profile"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage the ordered list of mods in a profile",
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the active profile's entries in precedence order",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession()
		if err != nil {
			return err
		}
		printProfileEntries(s.ActiveProfile())
		return nil
	},
}

var profileAddCmd = &cobra.Command{
	Use:   "add <spec>",
	Short: "Append a mod spec to the active profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession()
		if err != nil {
			return err
		}
		if _, err := s.ActiveProfile().AddEntry(args[0]); err != nil {
			return err
		}
		if err := s.SaveActiveProfile(); err != nil {
			return err
		}
		pterm.Success.Printf("Added %s\n", args[0])
		return nil
	},
}

var profileRemoveCmd = &cobra.Command{
	Use:   "remove <index>",
	Short: "Remove the entry at index",
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
		if err := s.ActiveProfile().RemoveEntry(idx); err != nil {
			return err
		}
		return s.SaveActiveProfile()
	},
}

var profileToggleCmd = &cobra.Command{
	Use:   "toggle <index>",
	Short: "Enable or disable the entry at index",
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
		if err := s.ActiveProfile().ToggleEnabled(idx); err != nil {
			return err
		}
		return s.SaveActiveProfile()
	},
}

var profileReorderCmd = &cobra.Command{
	Use:   "reorder <from> <to>",
	Short: "Move the entry at index from to index to",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession()
		if err != nil {
			return err
		}
		from, err := parseIndex(args[0])
		if err != nil {
			return err
		}
		to, err := parseIndex(args[1])
		if err != nil {
			return err
		}
		if err := s.ActiveProfile().Reorder(from, to); err != nil {
			return err
		}
		return s.SaveActiveProfile()
	},
}

var profilePinCmd = &cobra.Command{
	Use:   "pin <index> <version>",
	Short: "Pin the entry at index to a specific version, or \"\" to track latest",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession()
		if err != nil {
			return err
		}
		idx, err := parseIndex(args[0])
		if err != nil {
			return err
		}
		if err := s.ActiveProfile().SetPinned(idx, args[1]); err != nil {
			return err
		}
		return s.SaveActiveProfile()
	},
}

var copyURLAll bool

var profileCopyURLCmd = &cobra.Command{
	Use:   "copy-url [index]",
	Short: "Print a shareable URL for the entry at index, or every entry with --all",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession()
		if err != nil {
			return err
		}
		p := s.ActiveProfile()
		if copyURLAll {
			for _, url := range profile.CopyAllURLs(s.Registry(), p) {
				fmt.Println(url)
			}
			return nil
		}
		if len(args) != 1 {
			return fmt.Errorf("an entry index (or --all) is required")
		}
		idx, err := parseIndex(args[0])
		if err != nil {
			return err
		}
		if idx < 0 || idx >= len(p.Entries) {
			return fmt.Errorf("entry index %d out of range", idx)
		}
		url, err := urlForEntry(s, p.Entries[idx])
		if err != nil {
			return err
		}
		fmt.Println(url)
		return nil
	},
}

var profileDuplicateCmd = &cobra.Command{
	Use:   "duplicate <new-name>",
	Short: "Deep-copy the active profile, including enable and pin state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession()
		if err != nil {
			return err
		}
		dup, err := s.DuplicateActiveProfile(args[0])
		if err != nil {
			return err
		}
		pterm.Success.Printf("Duplicated %s as %s\n", s.ActiveProfile().Name, dup.Name)
		return nil
	},
}

var profileRenameCmd = &cobra.Command{
	Use:   "rename <new-name>",
	Short: "Rename the active profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession()
		if err != nil {
			return err
		}
		return s.RenameActiveProfile(args[0])
	},
}

var profileDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a saved profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession()
		if err != nil {
			return err
		}
		return s.DeleteProfile(args[0])
	},
}

func parseIndex(raw string) (int, error) {
	var idx int
	if _, err := fmt.Sscanf(raw, "%d", &idx); err != nil {
		return 0, fmt.Errorf("invalid index %q", raw)
	}
	return idx, nil
}

func urlForEntry(s *mintcore.Session, e profile.Entry) (string, error) {
	return profile.CopyURL(s.Registry(), e)
}

func printProfileEntries(p *profile.Profile) {
	tableData := pterm.TableData{{"#", "Spec", "Enabled", "Pinned"}}
	for i, e := range p.Entries {
		pinned := e.PinnedVersion
		if pinned == "" {
			pinned = "latest"
		}
		enabled := "false"
		if e.Enabled {
			enabled = "true"
		}
		if pterm.RawOutput {
			fmt.Printf("  [%d] %s (enabled=%s, pinned=%s)\n", i, e.Spec, enabled, pinned)
			continue
		}
		tableData = append(tableData, []string{fmt.Sprintf("%d", i), e.Spec, enabled, pinned})
	}
	if !pterm.RawOutput {
		_ = pterm.DefaultTable.WithHasHeader().WithData(tableData).Render()
	}
}

func init() {
	profileCopyURLCmd.Flags().BoolVar(&copyURLAll, "all", false, "print a URL for every entry, in order")
	profileCmd.AddCommand(profileListCmd, profileAddCmd, profileRemoveCmd, profileToggleCmd, profileReorderCmd, profilePinCmd, profileCopyURLCmd, profileDuplicateCmd, profileRenameCmd, profileDeleteCmd)
	rootCmd.AddCommand(profileCmd)
}
