package store

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"mint/internal/mint"
	"mint/internal/provider"
)

// fakeProvider lets tests control Resolve/Fetch behavior and count calls.
type fakeProvider struct {
	mu         sync.Mutex
	fetchCalls int32
	resolveErr error
	resolved   provider.ResolvedMod
	body       []byte
	fetchDelay chan struct{} // if non-nil, Fetch blocks until closed
}

func (f *fakeProvider) Kind() provider.Kind { return provider.KindModio }

func (f *fakeProvider) Match(string) (provider.Spec, bool) { return provider.Spec{}, false }

func (f *fakeProvider) Resolve(ctx context.Context, spec provider.Spec) (provider.ResolvedMod, error) {
	if f.resolveErr != nil {
		return provider.ResolvedMod{}, f.resolveErr
	}
	return f.resolved, nil
}

func (f *fakeProvider) Fetch(ctx context.Context, mod provider.ResolvedMod, version string) (provider.FetchResult, error) {
	atomic.AddInt32(&f.fetchCalls, 1)
	if f.fetchDelay != nil {
		<-f.fetchDelay
	}
	return provider.FetchResult{
		Media: provider.MediaRawPak,
		Body:  io.NopCloser(newBytesReader(f.body)),
		Size:  int64(len(f.body)),
	}, nil
}

func (f *fakeProvider) CopyURL(provider.Spec) string { return "" }

type bytesReader struct {
	b   []byte
	pos int
}

func newBytesReader(b []byte) *bytesReader { return &bytesReader{b: b} }

func (r *bytesReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.b) {
		return 0, io.EOF
	}
	n := copy(p, r.b[r.pos:])
	r.pos += n
	return n, nil
}

func testMod() provider.ResolvedMod {
	return provider.ResolvedMod{
		ProviderKey: "modio:12345",
		Kind:        provider.KindModio,
		DisplayName: "Test Mod",
		Current:     "1.0.0",
		Versions: []provider.ModRelease{
			{Version: "1.0.0", DownloadURL: "https://example.test/a.pak", Size: 9},
		},
	}
}

func TestGetOrFetchContentAddressing(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	fp := &fakeProvider{resolved: testMod(), body: []byte("pak-bytes")}
	mod := testMod()

	digest, art, err := s.GetOrFetch(context.Background(), fp, mod, "")
	if err != nil {
		t.Fatalf("GetOrFetch: %v", err)
	}
	if digest == "" {
		t.Fatal("expected non-empty digest")
	}
	if art.Size != 9 {
		t.Fatalf("Size = %d, want 9", art.Size)
	}

	if err := s.VerifyBlob(digest); err != nil {
		t.Fatalf("VerifyBlob: %v", err)
	}

	// Same inputs a second time must reuse the cached artifact without refetching.
	digest2, _, err := s.GetOrFetch(context.Background(), fp, mod, "")
	if err != nil {
		t.Fatalf("second GetOrFetch: %v", err)
	}
	if digest2 != digest {
		t.Fatalf("digest changed across calls: %s vs %s", digest, digest2)
	}
	if atomic.LoadInt32(&fp.fetchCalls) != 1 {
		t.Fatalf("fetchCalls = %d, want 1 (cached)", fp.fetchCalls)
	}
}

func TestGetOrFetchCoalescesConcurrentCallers(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	fp := &fakeProvider{resolved: testMod(), body: []byte("coalesced-bytes"), fetchDelay: make(chan struct{})}
	mod := testMod()

	const n = 8
	var wg sync.WaitGroup
	results := make([]Digest, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			d, _, err := s.GetOrFetch(context.Background(), fp, mod, "")
			results[i] = d
			errs[i] = err
		}(i)
	}
	close(fp.fetchDelay)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("GetOrFetch[%d]: %v", i, err)
		}
	}
	for i := 1; i < n; i++ {
		if results[i] != results[0] {
			t.Fatalf("result[%d] = %s, want %s", i, results[i], results[0])
		}
	}
	if atomic.LoadInt32(&fp.fetchCalls) != 1 {
		t.Fatalf("fetchCalls = %d, want exactly 1 coalesced fetch", fp.fetchCalls)
	}
}

func TestResolveFallsBackToCacheOnNetworkError(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	spec := provider.Spec{Raw: "12345", Kind: provider.KindModio, Locator: "12345"}
	fp := &fakeProvider{resolved: testMod()}

	if _, err := s.Resolve(context.Background(), fp, spec); err != nil {
		t.Fatalf("initial Resolve: %v", err)
	}

	fp.resolveErr = mint.Wrap(mint.KindProviderUnavailable, errors.New("network down"), "dial failed")
	var degraded bool
	s.Degraded = func(provider.Spec, error) { degraded = true }

	resolved, err := s.Resolve(context.Background(), fp, spec)
	if err != nil {
		t.Fatalf("fallback Resolve returned error, want cached success: %v", err)
	}
	if resolved.ProviderKey != testMod().ProviderKey {
		t.Fatalf("fallback resolved mismatch: %+v", resolved)
	}
	if !degraded {
		t.Fatal("expected Degraded callback to fire on fallback")
	}
}

func TestRefreshAllSurfacesNetworkFailure(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	spec := provider.Spec{Raw: "12345", Kind: provider.KindModio, Locator: "12345"}
	fp := &fakeProvider{resolveErr: errors.New("network down")}

	if _, err := s.RefreshAll(context.Background(), fp, spec); err == nil {
		t.Fatal("RefreshAll succeeded, want network failure surfaced")
	} else if mint.KindOf(err) != mint.KindProviderUnavailable {
		t.Fatalf("Kind = %v, want ProviderUnavailable", mint.KindOf(err))
	}
}

func TestGCRemovesUnreferencedBlobs(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	fp := &fakeProvider{resolved: testMod(), body: []byte("keep-me")}
	keepDigest, _, err := s.GetOrFetch(context.Background(), fp, testMod(), "1.0.0")
	if err != nil {
		t.Fatalf("GetOrFetch keep: %v", err)
	}

	fp2 := &fakeProvider{body: []byte("drop-me")}
	dropMod := testMod()
	dropMod.ProviderKey = "modio:99999"
	dropMod.Versions = []provider.ModRelease{{Version: "2.0.0", Size: 7}}
	dropDigest, _, err := s.GetOrFetch(context.Background(), fp2, dropMod, "2.0.0")
	if err != nil {
		t.Fatalf("GetOrFetch drop: %v", err)
	}

	removed, err := s.GC(map[Digest]bool{keepDigest: true})
	if err != nil {
		t.Fatalf("GC: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}

	if err := s.VerifyBlob(keepDigest); err != nil {
		t.Fatalf("kept blob failed verification: %v", err)
	}
	if _, err := s.OpenBlob(dropDigest); err == nil {
		t.Fatal("dropped blob still present after GC")
	}

	missing := s.SelfCheck()
	if len(missing) != 0 {
		t.Fatalf("SelfCheck reported missing after GC pruned its index entry: %v", missing)
	}
}

func TestIndexPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	fp := &fakeProvider{resolved: testMod(), body: []byte("persisted")}
	digest, _, err := s.GetOrFetch(context.Background(), fp, testMod(), "")
	if err != nil {
		t.Fatalf("GetOrFetch: %v", err)
	}

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	digest2, _, err := s2.GetOrFetch(context.Background(), fp, testMod(), "")
	if err != nil {
		t.Fatalf("GetOrFetch on reopened store: %v", err)
	}
	if digest2 != digest {
		t.Fatalf("digest not persisted across reopen: %s vs %s", digest, digest2)
	}
	if atomic.LoadInt32(&fp.fetchCalls) != 1 {
		t.Fatalf("fetchCalls = %d, want 1 (no refetch after reopen)", fp.fetchCalls)
	}

	if _, err := filepath.Abs(dir); err != nil {
		t.Fatalf("unexpected path error: %v", err)
	}
}

func TestVerifyBlobDetectsTamperedContent(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	fp := &fakeProvider{resolved: testMod(), body: []byte("original")}
	digest, _, err := s.GetOrFetch(context.Background(), fp, testMod(), "")
	if err != nil {
		t.Fatalf("GetOrFetch: %v", err)
	}

	path := blobPath(dir, digest)
	if err := os.WriteFile(path, []byte("tampered!!"), 0o644); err != nil {
		t.Fatalf("tamper write: %v", err)
	}

	if err := s.VerifyBlob(digest); err == nil {
		t.Fatal("VerifyBlob succeeded on tampered content, want error")
	} else if mint.KindOf(err) != mint.KindIntegrityMismatch {
		t.Fatalf("Kind = %v, want IntegrityMismatch", mint.KindOf(err))
	}
}
