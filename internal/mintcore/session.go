// Package mintcore is the orchestrator binding the provider registry,
// content-addressed store, profile engine, pak integrator and installer
// into the single entry point CLI and GUI drivers call into: constructed
// once, holding the long-lived collaborators, exposing one method per
// user-facing operation.
package mintcore

import (
	"context"
	"fmt"
	"path/filepath"

	"mint/internal/config"
	"mint/internal/installer"
	"mint/internal/profile"
	"mint/internal/provider"
	"mint/internal/store"
)

// SessionConfig names the directories Session needs; callers typically
// derive these from config.ResolveDirs plus a game install path.
type SessionConfig struct {
	Dirs        config.Dirs
	GameRoot    string // Deep Rock Galactic install root, empty until configured
	Concurrency int    // profile resolution fan-out; 0 means unbounded
	ModioToken  string // overrides the saved config's token when non-empty
}

// Session is the long-lived orchestrator for one mint invocation.
type Session struct {
	cfg      SessionConfig
	appCfg   *config.Config
	registry *provider.Registry
	store    *store.Store
	profile  *profile.Profile

	paths installer.GamePaths
}

// NewSession loads the on-disk app config, opens the cache store and
// wires the three built-in providers in precedence order (modio, http,
// file).
func NewSession(cfg SessionConfig) (*Session, error) {
	appCfg, err := config.Load(cfg.Dirs)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	s, err := store.Open(cfg.Dirs.Cache)
	if err != nil {
		return nil, fmt.Errorf("opening cache store: %w", err)
	}

	token, _ := config.RequireToken(cfg.ModioToken, appCfg)
	registry := provider.NewRegistry(
		provider.NewModioProvider(token),
		provider.NewHTTPProvider(),
		provider.NewFileProvider(),
	)

	return &Session{
		cfg:      cfg,
		appCfg:   appCfg,
		registry: registry,
		store:    s,
		paths:    installer.GamePaths{Root: cfg.GameRoot},
	}, nil
}

// Config returns the loaded application config.
func (s *Session) Config() *config.Config { return s.appCfg }

// SaveConfig persists appCfg back to disk.
func (s *Session) SaveConfig() error {
	return config.Save(s.cfg.Dirs, s.appCfg)
}

// Store exposes the underlying cache store, e.g. for CLI "cache status"
// reporting via its String method.
func (s *Session) Store() *store.Store { return s.store }

// Registry exposes the provider registry, e.g. for profile.CopyURL callers.
func (s *Session) Registry() *provider.Registry { return s.registry }

// ActiveProfile returns the profile most recently loaded via LoadProfile or
// NewProfile, or nil if none.
func (s *Session) ActiveProfile() *profile.Profile { return s.profile }

// LoadProfile loads name from the profiles directory and makes it active.
func (s *Session) LoadProfile(name string) (*profile.Profile, error) {
	p, err := profile.Load(s.profilesDir(), name)
	if err != nil {
		return nil, err
	}
	s.profile = p
	return p, nil
}

// NewProfile creates a fresh, empty profile and makes it active without
// touching disk until SaveActiveProfile is called.
func (s *Session) NewProfile(name string) *profile.Profile {
	p := profile.New(name)
	s.profile = p
	return p
}

// SaveActiveProfile persists the active profile.
func (s *Session) SaveActiveProfile() error {
	if s.profile == nil {
		return fmt.Errorf("no active profile")
	}
	return profile.Save(s.profilesDir(), s.profile)
}

// DuplicateActiveProfile deep-copies the active profile (including every
// entry's enable/pin state) under newName and persists the copy; the
// original stays active.
func (s *Session) DuplicateActiveProfile(newName string) (*profile.Profile, error) {
	if s.profile == nil {
		return nil, fmt.Errorf("no active profile")
	}
	dup := s.profile.Duplicate(newName)
	if err := profile.Save(s.profilesDir(), dup); err != nil {
		return nil, err
	}
	return dup, nil
}

// RenameActiveProfile renames the active profile, persisting it under the
// new name before removing the old file.
func (s *Session) RenameActiveProfile(newName string) error {
	if s.profile == nil {
		return fmt.Errorf("no active profile")
	}
	old := s.profile.Name
	s.profile.Rename(newName)
	if err := profile.Save(s.profilesDir(), s.profile); err != nil {
		return err
	}
	if old == newName {
		return nil
	}
	return profile.Delete(s.profilesDir(), old)
}

// ListProfiles returns the names of every saved profile.
func (s *Session) ListProfiles() ([]string, error) {
	return profile.List(s.profilesDir())
}

// DeleteProfile removes name from disk.
func (s *Session) DeleteProfile(name string) error {
	return profile.Delete(s.profilesDir(), name)
}

func (s *Session) profilesDir() string {
	return filepath.Join(s.cfg.Dirs.Config, "profiles")
}

// ResolveActive resolves and fetches every enabled entry of the active
// profile, fanning out with the configured concurrency.
func (s *Session) ResolveActive(ctx context.Context) ([]profile.ResolvedEntry, error) {
	if s.profile == nil {
		return nil, fmt.Errorf("no active profile")
	}
	return profile.Resolve(ctx, s.registry, s.store, s.profile, s.cfg.Concurrency)
}

// RefreshEntry forces a network re-resolution of a single profile entry,
// ignoring the offline-fallback cache.
func (s *Session) RefreshEntry(ctx context.Context, e profile.Entry) (provider.ResolvedMod, error) {
	spec, err := provider.Parse(e.Spec)
	if err != nil {
		return provider.ResolvedMod{}, err
	}
	prov, spec, err := s.registry.Resolve(spec.Raw)
	if err != nil {
		return provider.ResolvedMod{}, err
	}
	if prov == nil {
		return provider.ResolvedMod{}, fmt.Errorf("no provider registered for %q", e.Spec)
	}
	return s.store.RefreshAll(ctx, prov, spec)
}

// GC removes every cached blob and artifact entry not reachable from any
// saved profile's current resolution. The active profile is included even
// when unsaved (e.g. an ad-hoc command-line one), so a blob is only
// collected once no profile at all references it.
func (s *Session) GC(ctx context.Context) (int, error) {
	reachable := make(map[store.Digest]bool)

	collect := func(p *profile.Profile) error {
		resolved, err := profile.Resolve(ctx, s.registry, s.store, p, s.cfg.Concurrency)
		if err != nil {
			return err
		}
		for _, r := range resolved {
			if r.Err == nil {
				reachable[r.Artifact.Digest] = true
			}
		}
		return nil
	}

	names, err := s.ListProfiles()
	if err != nil {
		return 0, err
	}
	saved := make(map[string]bool, len(names))
	for _, name := range names {
		saved[name] = true
		p, err := profile.Load(s.profilesDir(), name)
		if err != nil {
			return 0, err
		}
		if err := collect(p); err != nil {
			return 0, err
		}
	}
	if s.profile != nil && !saved[s.profile.Name] {
		if err := collect(s.profile); err != nil {
			return 0, err
		}
	}

	return s.store.GC(reachable)
}
