// Package profile implements the ordered, user-managed mod list: CRUD
// over entries, and resolution into the ordered (ResolvedMod, Artifact)
// pairs the integrator consumes.
package profile

import (
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"mint/internal/mint"
	"mint/internal/provider"
)

// Entry is one line of a Profile: a mod spec plus its enable/pin state.
type Entry struct {
	Spec          string `yaml:"spec"`
	Enabled       bool   `yaml:"enabled"`
	PinnedVersion string `yaml:"pinned_version,omitempty"` // "" means "latest"
}

// Profile is an ordered, named list of Entry. Ordering is total and
// user-controlled; it is the precedence order the integrator walks
// top-to-bottom (highest precedence first).
type Profile struct {
	Name    string  `yaml:"name"`
	Entries []Entry `yaml:"entries"`
}

// New returns an empty profile with the given name.
func New(name string) *Profile {
	return &Profile{Name: name}
}

// Duplicate returns a deep copy of p under a new name, including every
// entry's enable/pin state.
func (p *Profile) Duplicate(newName string) *Profile {
	dup := &Profile{Name: newName, Entries: make([]Entry, len(p.Entries))}
	copy(dup.Entries, p.Entries)
	return dup
}

// Rename changes the profile's name in place.
func (p *Profile) Rename(name string) {
	p.Name = name
}

// AddEntry appends a new entry for raw, validating that it parses as a
// mod spec before accepting it; a profile never holds an ambiguous line.
func (p *Profile) AddEntry(raw string) (Entry, error) {
	if _, err := provider.Parse(raw); err != nil {
		return Entry{}, err
	}
	e := Entry{Spec: raw, Enabled: true}
	p.Entries = append(p.Entries, e)
	return e, nil
}

// RemoveEntry removes the entry at idx.
func (p *Profile) RemoveEntry(idx int) error {
	if idx < 0 || idx >= len(p.Entries) {
		return mint.New(mint.KindSpecParse, "entry index %d out of range", idx)
	}
	p.Entries = append(p.Entries[:idx], p.Entries[idx+1:]...)
	return nil
}

// Reorder moves the entry at from to position to, shifting the entries
// between them; this is what a drag handle in a UI maps onto.
func (p *Profile) Reorder(from, to int) error {
	if from < 0 || from >= len(p.Entries) || to < 0 || to >= len(p.Entries) {
		return mint.New(mint.KindSpecParse, "reorder index out of range (from=%d to=%d len=%d)", from, to, len(p.Entries))
	}
	e := p.Entries[from]
	p.Entries = append(p.Entries[:from], p.Entries[from+1:]...)
	tail := append([]Entry{e}, p.Entries[to:]...)
	p.Entries = append(p.Entries[:to], tail...)
	return nil
}

// ToggleEnabled flips the enable flag for the entry at idx.
func (p *Profile) ToggleEnabled(idx int) error {
	if idx < 0 || idx >= len(p.Entries) {
		return mint.New(mint.KindSpecParse, "entry index %d out of range", idx)
	}
	p.Entries[idx].Enabled = !p.Entries[idx].Enabled
	return nil
}

// SetPinned sets (or clears, when version == "") the pinned version for
// the entry at idx.
func (p *Profile) SetPinned(idx int, version string) error {
	if idx < 0 || idx >= len(p.Entries) {
		return mint.New(mint.KindSpecParse, "entry index %d out of range", idx)
	}
	p.Entries[idx].PinnedVersion = version
	return nil
}

// CopyURL returns the shareable string for entry e, dispatching
// through the provider that owns its spec kind.
func CopyURL(reg *provider.Registry, e Entry) (string, error) {
	spec, err := provider.Parse(e.Spec)
	if err != nil {
		return "", err
	}
	p := reg.ByKind(spec.Kind)
	if p == nil {
		return "", mint.New(mint.KindSpecParse, "no provider registered for kind %q", spec.Kind)
	}
	return p.CopyURL(spec), nil
}

// CopyAllURLs returns the shareable string for every entry, in order,
// skipping (not failing on) entries whose spec no longer parses.
func CopyAllURLs(reg *provider.Registry, p *Profile) []string {
	urls := make([]string, 0, len(p.Entries))
	for _, e := range p.Entries {
		u, err := CopyURL(reg, e)
		if err != nil {
			continue
		}
		urls = append(urls, u)
	}
	return urls
}

func fileName(name string) string {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', ' ':
			return '_'
		}
		return r
	}, name)
	return clean + ".yaml"
}

// Load reads the named profile from dir.
func Load(dir, name string) (*Profile, error) {
	path := filepath.Join(dir, fileName(name))
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, mint.Wrap(mint.KindIO, err, "reading profile %q", name)
	}
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, mint.Wrap(mint.KindIO, err, "parsing profile %q", name)
	}
	return &p, nil
}

// Save persists p to dir via temp-file + rename, matching the rest of the
// core's atomic-write convention.
func Save(dir string, p *Profile) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return mint.Wrap(mint.KindIO, err, "creating profile dir")
	}
	data, err := yaml.Marshal(p)
	if err != nil {
		return mint.Wrap(mint.KindIO, err, "marshalling profile %q", p.Name)
	}
	path := filepath.Join(dir, fileName(p.Name))
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return mint.Wrap(mint.KindIO, err, "writing profile temp file")
	}
	if err := os.Rename(tmp, path); err != nil {
		return mint.Wrap(mint.KindIO, err, "renaming profile into place")
	}
	return nil
}

// Delete removes the named profile's persisted file from dir.
func Delete(dir, name string) error {
	path := filepath.Join(dir, fileName(name))
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return mint.Wrap(mint.KindIO, err, "deleting profile %q", name)
	}
	return nil
}

// List returns the names of every profile persisted under dir.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, mint.Wrap(mint.KindIO, err, "listing profiles dir")
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	return names, nil
}
