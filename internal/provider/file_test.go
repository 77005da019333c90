package provider

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestFileProviderResolveAndFetch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cool.pak")
	content := []byte("pak-bytes")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	fp := NewFileProvider()
	spec, ok := fp.Match(path)
	if !ok {
		t.Fatalf("Match(%q) = false, want true", path)
	}

	mod, err := fp.Resolve(context.Background(), spec)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if mod.DisplayName != "cool.pak" {
		t.Fatalf("DisplayName = %q, want cool.pak", mod.DisplayName)
	}
	if len(mod.Versions) != 1 {
		t.Fatalf("Versions = %v, want exactly one", mod.Versions)
	}

	result, err := fp.Fetch(context.Background(), mod, "latest")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	defer result.Body.Close()

	got, err := io.ReadAll(result.Body)
	if err != nil {
		t.Fatalf("reading fetched body: %v", err)
	}
	if string(got) != string(content) {
		t.Fatalf("fetched content = %q, want %q", got, content)
	}
	if result.Media != MediaRawPak {
		t.Fatalf("Media = %v, want MediaRawPak", result.Media)
	}
}

func TestFileProviderRejectsMissingFile(t *testing.T) {
	fp := NewFileProvider()
	spec := Spec{Kind: KindFile, Locator: "/nonexistent/path/mod.pak"}
	if _, err := fp.Resolve(context.Background(), spec); err == nil {
		t.Fatal("Resolve succeeded for missing file, want error")
	}
}

func TestFileProviderVersionChangesWhenFileRewritten(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.pak")
	os.WriteFile(path, []byte("v1"), 0o644)

	fp := NewFileProvider()
	spec, _ := fp.Match(path)
	mod1, err := fp.Resolve(context.Background(), spec)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	os.WriteFile(path, []byte("v2-longer"), 0o644)
	mod2, err := fp.Resolve(context.Background(), spec)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if mod1.Current == mod2.Current {
		t.Fatalf("version did not change after content changed: %q == %q", mod1.Current, mod2.Current)
	}
}
