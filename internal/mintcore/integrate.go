package mintcore

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"mint/internal/integrator"
	"mint/internal/pak"
	"mint/internal/profile"
)

// Integrate resolves the active profile, opens every fetched pak from the
// cache store and merges them into a single pak written to w, in profile
// order (index 0 highest precedence). Entries that failed to resolve,
// fetch, or parse as a pak are skipped and returned separately rather
// than aborting the whole integration; only cache I/O faults are fatal.
func (s *Session) Integrate(ctx context.Context, w io.Writer) (integrator.Result, []profile.ResolvedEntry, error) {
	if s.profile == nil {
		return integrator.Result{}, nil, fmt.Errorf("no active profile")
	}

	resolved, err := s.ResolveActive(ctx)
	if err != nil {
		return integrator.Result{}, nil, err
	}

	var inputs []integrator.ModInput
	var failures []profile.ResolvedEntry
	for _, r := range resolved {
		if r.Err != nil {
			failures = append(failures, r)
			continue
		}

		blob, err := s.store.OpenBlob(r.Artifact.Digest)
		if err != nil {
			return integrator.Result{}, nil, fmt.Errorf("opening cached blob for %s: %w", r.Entry.Spec, err)
		}
		data, err := io.ReadAll(blob)
		blob.Close()
		if err != nil {
			return integrator.Result{}, nil, fmt.Errorf("reading cached blob for %s: %w", r.Entry.Spec, err)
		}

		reader, err := pak.Open(bytes.NewReader(data), int64(len(data)))
		if err != nil {
			// A corrupt or unsupported pak is a per-mod failure like any
			// resolve error; the rest of the profile still integrates.
			r.Err = err
			failures = append(failures, r)
			continue
		}

		version := r.Resolved.Current
		if r.Entry.PinnedVersion != "" {
			version = r.Entry.PinnedVersion
		}
		inputs = append(inputs, integrator.ModInput{
			Name:    r.Resolved.DisplayName,
			Source:  r.Entry.Spec,
			Digest:  string(r.Artifact.Digest),
			Version: version,
			Reader:  reader,
		})
	}

	result, err := integrator.Integrate(w, inputs)
	if err != nil {
		return integrator.Result{}, nil, err
	}
	return result, failures, nil
}
