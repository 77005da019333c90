package cmd

import (
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"mint/internal/config"
	"mint/internal/mint"
	"mint/internal/mintcore"
	"mint/internal/provider"
)

// CLIConfig is the global state every subcommand reads from persistent
// flags.
type CLIConfig struct {
	GamePath    string
	AppDataDir  string
	ModioToken  string
	ProfileName string
	Concurrency int
}

var cliCfg CLIConfig

var rootCmd = &cobra.Command{
	Use:   "mint",
	Short: "Third-party mod integrator for Deep Rock Galactic",
	Long:  `mint resolves, caches, merges and installs Deep Rock Galactic mods into a single integrated pak.`,
}

// Execute initializes the root command tree and delegates to Cobra for
// argument parsing and subcommand dispatch.
func Execute() {
	// Disable pterm rich output and enforce RawOutput when stdout is not a
	// terminal (e.g. CI, piped output).
	if !term.IsTerminal(int(os.Stdout.Fd())) || os.Getenv("NO_COLOR") != "" {
		pterm.DisableStyling()
		pterm.RawOutput = true
	}
	if err := rootCmd.Execute(); err != nil {
		pterm.Error.Println(err)
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor maps an error's mint.Kind to the process exit code spec
// section 6 fixes: 1 for a user mistake (bad spec, missing token, unknown
// path), 2 for a transient/network condition, 3 for pak integrity failures,
// 0 is Execute's own success path and never reaches here.
func exitCodeFor(err error) int {
	switch mint.KindOf(err) {
	case mint.KindSpecParse, mint.KindAuthMissing, mint.KindAuthRejected:
		return 1
	case mint.KindProviderUnavailable, mint.KindHTTPStatus, mint.KindRateLimited, mint.KindIO:
		return 2
	case mint.KindIntegrityMismatch, mint.KindUnsupportedPakVer, mint.KindCorruptPak, mint.KindMergeCaseCollision:
		return 3
	default:
		return 1
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cliCfg.GamePath, "game-path", "g", "", "Deep Rock Galactic install root")
	rootCmd.PersistentFlags().StringVar(&cliCfg.AppDataDir, "app-data-dir", "", "override the config/cache/data directory root")
	rootCmd.PersistentFlags().StringVar(&cliCfg.ModioToken, "modio-token", "", "mod.io API token, overriding the saved config")
	rootCmd.PersistentFlags().StringVarP(&cliCfg.ProfileName, "profile", "p", "default", "profile to operate on")
	rootCmd.PersistentFlags().IntVar(&cliCfg.Concurrency, "concurrency", 4, "bounded fan-out for profile resolution")
}

// newSession builds a mintcore.Session from the persistent flags, loading
// (or creating) the named profile so every subcommand can assume one is
// active.
func newSession() (*mintcore.Session, error) {
	dirs := config.ResolveDirs(cliCfg.AppDataDir)
	if err := config.EnsureDirs(dirs); err != nil {
		return nil, err
	}

	s, err := mintcore.NewSession(mintcore.SessionConfig{
		Dirs:        dirs,
		GameRoot:    cliCfg.GamePath,
		Concurrency: cliCfg.Concurrency,
		ModioToken:  cliCfg.ModioToken,
	})
	if err != nil {
		return nil, err
	}

	st := s.Store()
	st.Degraded = func(spec provider.Spec, err error) {
		pterm.Warning.Printf("%s: offline, using cached resolution (%v)\n", spec.Raw, err)
	}
	st.ArchiveExtras = func(mod provider.ResolvedMod, extras []provider.ArchivedPak) {
		for _, e := range extras {
			pterm.Warning.Printf("%s: archive carries extra pak %s (%d bytes), only the first is used\n", mod.DisplayName, e.Name, e.Size)
		}
	}

	if _, err := s.LoadProfile(cliCfg.ProfileName); err != nil {
		s.NewProfile(cliCfg.ProfileName)
	}

	return s, nil
}
