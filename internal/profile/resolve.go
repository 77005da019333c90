package profile

import (
	"context"

	"golang.org/x/sync/errgroup"

	"mint/internal/mint"
	"mint/internal/provider"
	"mint/internal/store"
)

// ResolvedEntry is one slot of a resolved profile: either a fully resolved
// (ResolvedMod, Artifact) pair, or an Err marking why this entry couldn't
// be resolved. Unresolved entries are kept in place rather than dropped
// so the rest of the profile still resolves.
type ResolvedEntry struct {
	Entry    Entry
	Resolved provider.ResolvedMod
	Artifact store.Artifact
	Err      error
}

// Resolve turns p into the ordered list of ResolvedEntry the integrator
// consumes, skipping disabled entries entirely (they produce no slot at
// all, not an error marker) and resolving the rest concurrently with a
// bounded fan-out.
func Resolve(ctx context.Context, reg *provider.Registry, s *store.Store, p *Profile, concurrency int) ([]ResolvedEntry, error) {
	type slot struct {
		idx   int
		entry Entry
	}

	var active []slot
	for _, e := range p.Entries {
		if !e.Enabled {
			continue
		}
		active = append(active, slot{idx: len(active), entry: e})
	}

	results := make([]ResolvedEntry, len(active))

	eg, ctx := errgroup.WithContext(ctx)
	if concurrency > 0 {
		eg.SetLimit(concurrency)
	}

	for _, sl := range active {
		sl := sl
		eg.Go(func() error {
			re := resolveOne(ctx, reg, s, sl.entry)
			results[sl.idx] = re
			return nil // per-entry errors are carried in ResolvedEntry.Err, not escalated
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}

func resolveOne(ctx context.Context, reg *provider.Registry, s *store.Store, e Entry) ResolvedEntry {
	spec, err := provider.Parse(e.Spec)
	if err != nil {
		return ResolvedEntry{Entry: e, Err: err}
	}

	prov, spec, err := reg.Resolve(spec.Raw)
	if err != nil {
		return ResolvedEntry{Entry: e, Err: err}
	}
	if prov == nil {
		return ResolvedEntry{Entry: e, Err: mint.New(mint.KindSpecParse, "no provider registered for %q", e.Spec)}
	}

	resolved, err := s.Resolve(ctx, prov, spec)
	if err != nil {
		return ResolvedEntry{Entry: e, Err: err}
	}

	_, artifact, err := s.GetOrFetch(ctx, prov, resolved, e.PinnedVersion)
	if err != nil {
		return ResolvedEntry{Entry: e, Resolved: resolved, Err: err}
	}

	return ResolvedEntry{Entry: e, Resolved: resolved, Artifact: artifact}
}

// EnabledCount reports how many entries in p are enabled, used by CLI
// summaries before a potentially slow resolve.
func EnabledCount(p *Profile) int {
	n := 0
	for _, e := range p.Entries {
		if e.Enabled {
			n++
		}
	}
	return n
}
