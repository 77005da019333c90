package profile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"mint/internal/provider"
	"mint/internal/store"
)

func newTestRegistry() *provider.Registry {
	return provider.NewRegistry(provider.NewModioProvider(""), provider.NewHTTPProvider(), provider.NewFileProvider())
}

func TestResolveSkipsDisabledAndMarksUnresolved(t *testing.T) {
	cacheDir := t.TempDir()
	s, err := store.Open(cacheDir)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}

	modsDir := t.TempDir()
	goodPath := filepath.Join(modsDir, "good.pak")
	if err := os.WriteFile(goodPath, []byte("good-pak-bytes"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	p := New("default")
	p.Entries = []Entry{
		{Spec: goodPath, Enabled: true},
		{Spec: filepath.Join(modsDir, "missing.pak"), Enabled: true},
		{Spec: filepath.Join(modsDir, "ignored.pak"), Enabled: false},
	}

	reg := newTestRegistry()
	results, err := Resolve(context.Background(), reg, s, p, 4)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	// The disabled entry produces no slot at all.
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2 (disabled entry skipped)", len(results))
	}

	var gotGood, gotMissing bool
	for _, r := range results {
		switch r.Entry.Spec {
		case goodPath:
			gotGood = true
			if r.Err != nil {
				t.Fatalf("good entry resolved with error: %v", r.Err)
			}
			if r.Artifact.Digest == "" {
				t.Fatal("good entry has empty digest")
			}
		default:
			gotMissing = true
			if r.Err == nil {
				t.Fatal("missing-file entry resolved without error")
			}
		}
	}
	if !gotGood || !gotMissing {
		t.Fatalf("did not see both expected entries in results: %+v", results)
	}
}

func TestEnabledCount(t *testing.T) {
	p := New("default")
	p.Entries = []Entry{
		{Spec: "a", Enabled: true},
		{Spec: "b", Enabled: false},
		{Spec: "c", Enabled: true},
	}
	if got := EnabledCount(p); got != 2 {
		t.Fatalf("EnabledCount = %d, want 2", got)
	}
}

func TestCopyURLDispatchesToOwningProvider(t *testing.T) {
	reg := newTestRegistry()
	dir := t.TempDir()
	path := filepath.Join(dir, "local.pak")
	os.WriteFile(path, []byte("x"), 0o644)

	url, err := CopyURL(reg, Entry{Spec: path})
	if err != nil {
		t.Fatalf("CopyURL: %v", err)
	}
	want := "file://" + path
	if url != want {
		t.Fatalf("CopyURL = %q, want %q", url, want)
	}
}
