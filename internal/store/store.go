// Package store implements the content-addressed mod cache: blobs keyed
// by SHA-256 digest, a JSON CacheIndex mapping provider identities to
// resolved metadata and artifact digests, and coordination of concurrent
// fetches: GetOrFetch calls within one process for the same key+version
// share a single download, and a per-digest advisory lock serializes blob
// writes. Separate processes are not coalesced and may each download the
// same bytes.
package store

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/singleflight"

	"mint/internal/mint"
	"mint/internal/provider"
)

// Store is the on-disk content-addressed cache rooted at a single
// directory (cache/{blobs,locks,index.json}).
type Store struct {
	root string

	mu    sync.Mutex // protects index in-process; cross-process safety is the index flock
	index *Index

	fetchGroup singleflight.Group // coalesces concurrent GetOrFetch calls for the same key+version

	// Degraded is invoked whenever an implicit resolve falls back to a
	// cached ResolvedMod after a network failure. Tests and headless runs
	// may leave it nil.
	Degraded func(spec provider.Spec, err error)

	// ArchiveExtras is invoked when a fetched archive carries more than
	// one pak; only the first becomes the Artifact, the rest are surfaced
	// here as advisories. May be nil.
	ArchiveExtras func(mod provider.ResolvedMod, extras []provider.ArchivedPak)
}

// Open loads (or creates) the cache rooted at dir.
func Open(dir string) (*Store, error) {
	idx, err := loadIndex(indexPath(dir))
	if err != nil {
		return nil, err
	}
	return &Store{root: dir, index: idx}, nil
}

func indexPath(root string) string { return filepath.Join(root, "index.json") }

func blobPath(root string, d Digest) string {
	return filepath.Join(root, "blobs", d.shard(), string(d))
}

// Resolve obtains ResolvedMod metadata for spec, trying the network first
// and falling back to a cached resolution on failure so prior fetches
// keep working offline. Only RefreshAll surfaces network failure directly.
func (s *Store) Resolve(ctx context.Context, prov provider.Provider, spec provider.Spec) (provider.ResolvedMod, error) {
	resolved, err := prov.Resolve(ctx, spec)
	if err == nil {
		s.mu.Lock()
		s.index.Resolved[spec.Raw] = resolved
		s.mu.Unlock()
		return resolved, nil
	}

	if mint.IsKind(err, mint.KindCancelled) {
		return provider.ResolvedMod{}, err
	}

	s.mu.Lock()
	cached, ok := s.index.Resolved[spec.Raw]
	s.mu.Unlock()
	if !ok {
		return provider.ResolvedMod{}, err
	}

	if s.Degraded != nil {
		s.Degraded(spec, err)
	}
	return cached, nil
}

// RefreshAll re-resolves spec against the network unconditionally,
// surfacing ProviderUnavailable rather than falling back to cache; an
// explicit cache update is the one operation that must not mask outages.
func (s *Store) RefreshAll(ctx context.Context, prov provider.Provider, spec provider.Spec) (provider.ResolvedMod, error) {
	resolved, err := prov.Resolve(ctx, spec)
	if err != nil {
		if mint.IsKind(err, mint.KindCancelled) {
			return provider.ResolvedMod{}, err
		}
		return provider.ResolvedMod{}, mint.Wrap(mint.KindProviderUnavailable, err, "refreshing %s", spec.Raw)
	}
	s.mu.Lock()
	s.index.Resolved[spec.Raw] = resolved
	s.mu.Unlock()
	return resolved, nil
}

// GetOrFetch returns the digest for resolved's version (pinned, or
// resolved.Current if pinned is empty), fetching and caching it if it
// isn't already present. Concurrent callers for the same ProviderKey+
// version are coalesced onto a single fetch.
func (s *Store) GetOrFetch(ctx context.Context, prov provider.Provider, resolved provider.ResolvedMod, pinned string) (Digest, Artifact, error) {
	version := pinned
	if version == "" {
		version = resolved.Current
	}
	rel, ok := releaseFor(resolved, version)
	if !ok {
		return "", Artifact{}, mint.New(mint.KindProviderUnavailable, "no release %q for %s", version, resolved.DisplayName)
	}
	effectiveVersion := rel.Version
	if effectiveVersion == "" {
		effectiveVersion = version
	}

	vk := versionKey{ProviderKey: resolved.ProviderKey, Version: effectiveVersion}
	key := vk.marshal()

	s.mu.Lock()
	if existing, ok := s.index.Artifacts[key]; ok {
		s.mu.Unlock()
		return existing.Digest, existing, nil
	}
	s.mu.Unlock()

	v, err, _ := s.fetchGroup.Do(key, func() (any, error) {
		return s.fetchAndStore(ctx, prov, resolved, rel)
	})
	if err != nil {
		return "", Artifact{}, err
	}
	result := v.(fetchOutcome)

	s.mu.Lock()
	s.index.Artifacts[key] = result.artifact
	err = s.saveIndexLocked()
	s.mu.Unlock()
	if err != nil {
		return "", Artifact{}, err
	}

	return result.artifact.Digest, result.artifact, nil
}

type fetchOutcome struct {
	artifact Artifact
}

func releaseFor(mod provider.ResolvedMod, version string) (provider.ModRelease, bool) {
	if version == "" || version == "latest" {
		return mod.Latest()
	}
	for _, v := range mod.Versions {
		if v.Version == version {
			return v, true
		}
	}
	return provider.ModRelease{}, false
}

// fetchAndStore performs the actual network fetch, writes the blob
// atomically under an advisory per-digest lock, and returns its Artifact.
// Archive payloads are unwrapped to their primary pak before hashing, so
// the digest always addresses the pak bytes the integrator will read.
func (s *Store) fetchAndStore(ctx context.Context, prov provider.Provider, resolved provider.ResolvedMod, rel provider.ModRelease) (any, error) {
	result, err := prov.Fetch(ctx, resolved, rel.Version)
	if err != nil {
		return nil, err
	}
	defer result.Body.Close()

	var payload []byte
	media := result.Media
	switch result.Media {
	case provider.MediaArchive:
		unwrapped, err := provider.UnwrapZip(ctx, result.Body, result.Size)
		if err != nil {
			return nil, err
		}
		payload = unwrapped.Primary
		media = provider.MediaRawPak
		if len(unwrapped.Extras) > 0 && s.ArchiveExtras != nil {
			s.ArchiveExtras(resolved, unwrapped.Extras)
		}
	default:
		payload, err = io.ReadAll(result.Body)
		if err != nil {
			return nil, mint.Wrap(mint.KindIO, err, "reading fetched payload for %s", resolved.DisplayName)
		}
	}

	digest := hashBytes(payload)

	path := blobPath(s.root, digest)
	if _, err := os.Stat(path); err == nil {
		// Another process already persisted this exact content; nothing
		// left to do, the digest is already globally correct.
		return fetchOutcome{artifact: Artifact{Digest: digest, Size: int64(len(payload)), Media: media}}, nil
	}

	lockPath := lockPathFor(s.root, digest)
	fl, err := acquireLock(ctx, lockPath)
	if err != nil {
		return nil, err
	}
	defer releaseLock(fl)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, mint.Wrap(mint.KindIO, err, "creating blob shard dir")
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return nil, mint.Wrap(mint.KindIO, err, "creating blob temp file")
	}
	if _, err := f.Write(payload); err != nil {
		f.Close()
		os.Remove(tmp)
		return nil, mint.Wrap(mint.KindIO, err, "writing blob")
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return nil, mint.Wrap(mint.KindIO, err, "fsyncing blob")
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return nil, mint.Wrap(mint.KindIO, err, "closing blob temp file")
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return nil, mint.Wrap(mint.KindIO, err, "renaming blob into place")
	}

	return fetchOutcome{artifact: Artifact{Digest: digest, Size: int64(len(payload)), Media: media}}, nil
}

// saveIndexLocked persists the index under the whole-file writer lock;
// callers must already hold s.mu.
func (s *Store) saveIndexLocked() error {
	fl, err := acquireLock(context.Background(), indexLockPath(s.root))
	if err != nil {
		return err
	}
	defer releaseLock(fl)
	return s.index.save(indexPath(s.root))
}

// OpenBlob returns a read handle to digest's bytes.
func (s *Store) OpenBlob(digest Digest) (io.ReadCloser, error) {
	path := blobPath(s.root, digest)
	f, err := os.Open(path)
	if err != nil {
		return nil, mint.Wrap(mint.KindIO, err, "opening blob %s", digest)
	}
	return f, nil
}

// VerifyBlob reports whether the on-disk bytes for digest actually hash
// to it.
func (s *Store) VerifyBlob(digest Digest) error {
	f, err := s.OpenBlob(digest)
	if err != nil {
		return err
	}
	defer f.Close()

	got, _, err := hashReader(f, io.Discard)
	if err != nil {
		return mint.Wrap(mint.KindIO, err, "hashing blob %s", digest)
	}
	if got != digest {
		return mint.New(mint.KindIntegrityMismatch, "blob %s hashes to %s on disk", digest, got)
	}
	return nil
}

// GC removes every blob not present in reachable, and prunes the
// CacheIndex artifact entries whose digest is not in reachable. The
// caller computes reachability across profile snapshots; GC just enforces
// the resulting set.
func (s *Store) GC(reachable map[Digest]bool) (removed int, err error) {
	blobsDir := filepath.Join(s.root, "blobs")
	shards, err := os.ReadDir(blobsDir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, mint.Wrap(mint.KindIO, err, "reading blobs dir")
	}

	for _, shard := range shards {
		if !shard.IsDir() {
			continue
		}
		shardPath := filepath.Join(blobsDir, shard.Name())
		entries, err := os.ReadDir(shardPath)
		if err != nil {
			return removed, mint.Wrap(mint.KindIO, err, "reading shard %s", shardPath)
		}
		for _, entry := range entries {
			d := Digest(entry.Name())
			if reachable[d] {
				continue
			}
			if err := os.Remove(filepath.Join(shardPath, entry.Name())); err != nil {
				return removed, mint.Wrap(mint.KindIO, err, "removing unreferenced blob %s", d)
			}
			removed++
		}
	}

	s.mu.Lock()
	for key, art := range s.index.Artifacts {
		if !reachable[art.Digest] {
			delete(s.index.Artifacts, key)
		}
	}
	saveErr := s.saveIndexLocked()
	s.mu.Unlock()
	if saveErr != nil {
		return removed, saveErr
	}
	return removed, nil
}

// SelfCheck validates the invariant that every digest referenced by the
// CacheIndex has a corresponding blob on disk, returning the missing ones.
func (s *Store) SelfCheck() []Digest {
	s.mu.Lock()
	defer s.mu.Unlock()

	var missing []Digest
	seen := make(map[Digest]bool)
	for _, art := range s.index.Artifacts {
		if seen[art.Digest] {
			continue
		}
		seen[art.Digest] = true
		if _, err := os.Stat(blobPath(s.root, art.Digest)); err != nil {
			missing = append(missing, art.Digest)
		}
	}
	return missing
}

// String renders a short human summary, used by CLI status output.
func (s *Store) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fmt.Sprintf("store(%s): %d resolved mods, %d cached artifacts", s.root, len(s.index.Resolved), len(s.index.Artifacts))
}
