package provider

import (
	"context"
	"io"
)

// ModRelease is one fetchable version of a resolved mod.
type ModRelease struct {
	Version     string
	DownloadURL string // opaque to callers; only the owning provider dereferences it
	Size        int64  // advisory; 0 or -1 when unknown until fetch
}

// ResolvedMod is a provider's view of a mod spec: stable identity plus
// whatever metadata the provider's API exposes.
type ResolvedMod struct {
	ProviderKey string // stable identity, provider-namespaced
	Kind        Kind
	DisplayName string
	Labels      []string
	Approval    string // modio approval/category tag; empty for http/file
	Versions    []ModRelease
	Current     string // "latest", or a pinned version string
	Deprecated  bool
}

// Latest returns the most recent entry in Versions, or the zero value and
// false if there are none.
func (r ResolvedMod) Latest() (ModRelease, bool) {
	if len(r.Versions) == 0 {
		return ModRelease{}, false
	}
	return r.Versions[len(r.Versions)-1], true
}

// SelectVersion returns the release matching r.Current, falling back to
// Latest when Current is "" or "latest".
func (r ResolvedMod) SelectVersion() (ModRelease, bool) {
	if r.Current == "" || r.Current == "latest" {
		return r.Latest()
	}
	for _, v := range r.Versions {
		if v.Version == r.Current {
			return v, true
		}
	}
	return ModRelease{}, false
}

// MediaKind says whether a fetched payload is a raw pak or an archive the
// caller must unwrap.
type MediaKind string

const (
	MediaRawPak  MediaKind = "pak"
	MediaArchive MediaKind = "archive"
)

// FetchResult is what Fetch hands back: the payload stream plus its
// MediaKind.
type FetchResult struct {
	Media MediaKind
	Body  io.ReadCloser
	Size  int64 // -1 when unknown
}

// Provider is the capability set every built-in resolver implements.
// There is no base type: the registry dispatches by trying each
// provider's Match in turn.
type Provider interface {
	Kind() Kind

	// Match reports whether raw belongs to this provider's spec syntax.
	Match(raw string) (Spec, bool)

	// Resolve obtains metadata and available versions for spec.
	Resolve(ctx context.Context, spec Spec) (ResolvedMod, error)

	// Fetch streams the payload for the given version of a resolved mod.
	Fetch(ctx context.Context, mod ResolvedMod, version string) (FetchResult, error)

	// CopyURL returns a shareable string identifying spec, for the
	// profile engine's copy-URL operation.
	CopyURL(spec Spec) string
}

// Registry dispatches a raw spec string to the provider whose syntax
// matches it, trying them in fixed precedence order (modio, then http,
// then file).
type Registry struct {
	providers []Provider
}

// NewRegistry returns a registry with the three built-in providers,
// highest-precedence first.
func NewRegistry(modio, http, file Provider) *Registry {
	return &Registry{providers: []Provider{modio, http, file}}
}

// Resolve parses raw against each registered provider in precedence order
// and returns the first match's Spec along with the provider that should
// handle it.
func (reg *Registry) Resolve(raw string) (Provider, Spec, error) {
	for _, p := range reg.providers {
		if spec, ok := p.Match(raw); ok {
			return p, spec, nil
		}
	}
	spec, err := Parse(raw)
	if err != nil {
		return nil, Spec{}, err
	}
	// Parse succeeded but no registered provider claimed it (e.g. the
	// registry was built without one of the built-ins); surface as
	// unrecognized rather than silently dropping the mod.
	for _, p := range reg.providers {
		if p.Kind() == spec.Kind {
			return p, spec, nil
		}
	}
	return nil, Spec{}, nil
}

// ByKind returns the registered provider for k, or nil.
func (reg *Registry) ByKind(k Kind) Provider {
	for _, p := range reg.providers {
		if p.Kind() == k {
			return p
		}
	}
	return nil
}
