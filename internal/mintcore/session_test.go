package mintcore

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"mint/internal/config"
	"mint/internal/pak"
)

func newTestSession(t *testing.T, gameRoot string) *Session {
	t.Helper()
	dirs := config.Dirs{
		Config: filepath.Join(t.TempDir(), "config"),
		Cache:  filepath.Join(t.TempDir(), "cache"),
		Data:   filepath.Join(t.TempDir(), "data"),
	}
	s, err := NewSession(SessionConfig{Dirs: dirs, GameRoot: gameRoot})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	return s
}

func writeTestPak(t *testing.T, path string, files map[string]string) {
	t.Helper()
	inputs := make([]pak.Input, 0, len(files))
	for p, content := range files {
		inputs = append(inputs, pak.Input{Path: p, Bytes: []byte(content), Compression: pak.CompressionNone})
	}
	var buf bytes.Buffer
	if err := pak.Write(&buf, pak.VersionV9, inputs); err != nil {
		t.Fatalf("pak.Write: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestProfileSaveLoadRoundTripThroughSession(t *testing.T) {
	s := newTestSession(t, "")

	p := s.NewProfile("default")
	modPath := filepath.Join(t.TempDir(), "a.pak")
	writeTestPak(t, modPath, map[string]string{"Content/A.uasset": "hello"})
	if _, err := p.AddEntry(modPath); err != nil {
		t.Fatalf("AddEntry: %v", err)
	}
	if err := s.SaveActiveProfile(); err != nil {
		t.Fatalf("SaveActiveProfile: %v", err)
	}

	reloaded, err := s.LoadProfile("default")
	if err != nil {
		t.Fatalf("LoadProfile: %v", err)
	}
	if len(reloaded.Entries) != 1 || reloaded.Entries[0].Spec != modPath {
		t.Fatalf("reloaded entries = %+v", reloaded.Entries)
	}
}

func TestIntegrateFromLocalFileEntries(t *testing.T) {
	s := newTestSession(t, "")

	p := s.NewProfile("default")
	a := filepath.Join(t.TempDir(), "a.pak")
	writeTestPak(t, a, map[string]string{"Content/A.uasset": "from-a"})
	if _, err := p.AddEntry(a); err != nil {
		t.Fatalf("AddEntry(a): %v", err)
	}

	var out bytes.Buffer
	result, failures, err := s.Integrate(context.Background(), &out)
	if err != nil {
		t.Fatalf("Integrate: %v", err)
	}
	if len(failures) != 0 {
		t.Fatalf("failures = %+v, want none", failures)
	}
	if len(result.Manifest.Mods) != 1 {
		t.Fatalf("Mods = %+v, want 1", result.Manifest.Mods)
	}

	outR, err := pak.Open(bytes.NewReader(out.Bytes()), int64(out.Len()))
	if err != nil {
		t.Fatalf("pak.Open(output): %v", err)
	}
	if _, ok := outR.Lookup("Content/A.uasset"); !ok {
		t.Fatal("merged pak missing expected entry")
	}
}

func TestIntegrateSkipsUnresolvableEntryAndReportsFailure(t *testing.T) {
	s := newTestSession(t, "")

	p := s.NewProfile("default")
	missing := filepath.Join(t.TempDir(), "missing.pak")
	if _, err := p.AddEntry(missing); err != nil {
		t.Fatalf("AddEntry: %v", err)
	}

	var out bytes.Buffer
	_, failures, err := s.Integrate(context.Background(), &out)
	if err != nil {
		t.Fatalf("Integrate: %v", err)
	}
	if len(failures) != 1 {
		t.Fatalf("failures = %+v, want exactly 1", failures)
	}
}

func TestInstallRequiresGameRootConfigured(t *testing.T) {
	s := newTestSession(t, "")
	s.NewProfile("default")

	if _, _, err := s.Install(context.Background()); err == nil {
		t.Fatal("Install succeeded without a configured game root, want error")
	}
}

func TestInstallProceedsWithRemainderDespiteUnresolvableEntry(t *testing.T) {
	gameRoot := t.TempDir()
	s := newTestSession(t, gameRoot)

	p := s.NewProfile("default")
	good := filepath.Join(t.TempDir(), "a.pak")
	writeTestPak(t, good, map[string]string{"Content/A.uasset": "from-a"})
	if _, err := p.AddEntry(good); err != nil {
		t.Fatalf("AddEntry(good): %v", err)
	}
	missing := filepath.Join(t.TempDir(), "missing.pak")
	if _, err := p.AddEntry(missing); err != nil {
		t.Fatalf("AddEntry(missing): %v", err)
	}

	record, failures, err := s.Install(context.Background())
	if err != nil {
		t.Fatalf("Install: %v", err)
	}
	if len(failures) != 1 {
		t.Fatalf("failures = %+v, want exactly 1", failures)
	}
	if record == nil {
		t.Fatal("Install returned nil record despite succeeding on the remainder")
	}
	if _, err := os.Stat(s.GamePaths().PakFile()); err != nil {
		t.Fatalf("expected mod_P.pak written despite skipped entry: %v", err)
	}
}

func TestIntegrateIsolatesCorruptPak(t *testing.T) {
	s := newTestSession(t, "")

	p := s.NewProfile("default")
	good := filepath.Join(t.TempDir(), "good.pak")
	writeTestPak(t, good, map[string]string{"Content/A.uasset": "from-good"})
	if _, err := p.AddEntry(good); err != nil {
		t.Fatalf("AddEntry(good): %v", err)
	}
	bad := filepath.Join(t.TempDir(), "bad.pak")
	if err := os.WriteFile(bad, []byte("not a pak container"), 0o644); err != nil {
		t.Fatalf("WriteFile(bad): %v", err)
	}
	if _, err := p.AddEntry(bad); err != nil {
		t.Fatalf("AddEntry(bad): %v", err)
	}

	var out bytes.Buffer
	result, failures, err := s.Integrate(context.Background(), &out)
	if err != nil {
		t.Fatalf("Integrate aborted on a corrupt pak, want isolation: %v", err)
	}
	if len(failures) != 1 || failures[0].Entry.Spec != bad {
		t.Fatalf("failures = %+v, want exactly the corrupt entry", failures)
	}
	if failures[0].Err == nil {
		t.Fatal("corrupt entry carries no error")
	}
	if len(result.Manifest.Mods) != 1 {
		t.Fatalf("Mods = %+v, want only the good pak", result.Manifest.Mods)
	}

	outR, err := pak.Open(bytes.NewReader(out.Bytes()), int64(out.Len()))
	if err != nil {
		t.Fatalf("pak.Open(output): %v", err)
	}
	if _, ok := outR.Lookup("Content/A.uasset"); !ok {
		t.Fatal("good pak's entry missing from output")
	}
}

func TestGCWithNoProfilesOnEmptyStoreRemovesNothing(t *testing.T) {
	s := newTestSession(t, "")
	removed, err := s.GC(context.Background())
	if err != nil {
		t.Fatalf("GC: %v", err)
	}
	if removed != 0 {
		t.Fatalf("removed = %d, want 0 on an empty store", removed)
	}
}

func TestGCKeepsBlobsReferencedByOtherProfiles(t *testing.T) {
	s := newTestSession(t, "")

	other := filepath.Join(t.TempDir(), "other.pak")
	writeTestPak(t, other, map[string]string{"Content/B.uasset": "from-other"})
	pb := s.NewProfile("other")
	if _, err := pb.AddEntry(other); err != nil {
		t.Fatalf("AddEntry(other): %v", err)
	}
	if err := s.SaveActiveProfile(); err != nil {
		t.Fatalf("SaveActiveProfile(other): %v", err)
	}
	resolvedB, err := s.ResolveActive(context.Background())
	if err != nil {
		t.Fatalf("ResolveActive(other): %v", err)
	}
	if len(resolvedB) != 1 || resolvedB[0].Err != nil {
		t.Fatalf("resolvedB = %+v", resolvedB)
	}
	otherDigest := resolvedB[0].Artifact.Digest

	active := filepath.Join(t.TempDir(), "active.pak")
	writeTestPak(t, active, map[string]string{"Content/A.uasset": "from-active"})
	pa := s.NewProfile("default")
	if _, err := pa.AddEntry(active); err != nil {
		t.Fatalf("AddEntry(active): %v", err)
	}
	if err := s.SaveActiveProfile(); err != nil {
		t.Fatalf("SaveActiveProfile(default): %v", err)
	}
	if _, err := s.ResolveActive(context.Background()); err != nil {
		t.Fatalf("ResolveActive(default): %v", err)
	}

	// GC while "default" is active must not collect "other"'s blob.
	removed, err := s.GC(context.Background())
	if err != nil {
		t.Fatalf("GC: %v", err)
	}
	if removed != 0 {
		t.Fatalf("removed = %d, want 0 (both blobs referenced by saved profiles)", removed)
	}

	blob, err := s.Store().OpenBlob(otherDigest)
	if err != nil {
		t.Fatalf("other profile's blob was collected: %v", err)
	}
	blob.Close()
}
