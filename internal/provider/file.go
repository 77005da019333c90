package provider

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"mint/internal/mint"
)

// FileProvider resolves absolute local .pak/.zip paths. Identity is the
// canonicalized path; version is (size, mtime).
type FileProvider struct{}

func NewFileProvider() *FileProvider { return &FileProvider{} }

func (f *FileProvider) Kind() Kind { return KindFile }

func (f *FileProvider) Match(raw string) (Spec, bool) {
	trimmed := strings.TrimSpace(raw)
	if !filepath.IsAbs(trimmed) {
		return Spec{}, false
	}
	ext := strings.ToLower(filepath.Ext(trimmed))
	if ext != ".pak" && ext != ".zip" {
		return Spec{}, false
	}
	return Spec{Raw: raw, Kind: KindFile, Locator: trimmed}, true
}

func (f *FileProvider) Resolve(_ context.Context, spec Spec) (ResolvedMod, error) {
	canon, err := filepath.Abs(spec.Locator)
	if err != nil {
		return ResolvedMod{}, mint.Wrap(mint.KindIO, err, "canonicalizing %q", spec.Locator)
	}
	canon = filepath.Clean(canon)

	info, err := os.Stat(canon)
	if os.IsNotExist(err) {
		return ResolvedMod{}, mint.New(mint.KindProviderUnavailable, "local mod %q does not exist", canon)
	}
	if err != nil {
		return ResolvedMod{}, mint.Wrap(mint.KindIO, err, "stat %q", canon)
	}

	version := fmt.Sprintf("%d-%d", info.Size(), info.ModTime().UnixNano())

	return ResolvedMod{
		ProviderKey: "file:" + canon,
		Kind:        KindFile,
		DisplayName: filepath.Base(canon),
		Versions:    []ModRelease{{Version: version, DownloadURL: canon, Size: info.Size()}},
		Current:     version,
	}, nil
}

func (f *FileProvider) Fetch(_ context.Context, mod ResolvedMod, version string) (FetchResult, error) {
	rel, ok := releaseFor(mod, version)
	if !ok {
		return FetchResult{}, mint.New(mint.KindProviderUnavailable, "version %q not found for %q", version, mod.DisplayName)
	}

	file, err := os.Open(rel.DownloadURL)
	if err != nil {
		return FetchResult{}, mint.Wrap(mint.KindIO, err, "opening local mod %q", rel.DownloadURL)
	}

	media := MediaRawPak
	if strings.EqualFold(filepath.Ext(rel.DownloadURL), ".zip") {
		media = MediaArchive
	}

	return FetchResult{Media: media, Body: file, Size: rel.Size}, nil
}

func (f *FileProvider) CopyURL(spec Spec) string {
	return "file://" + spec.Locator
}

func releaseFor(mod ResolvedMod, version string) (ModRelease, bool) {
	if version == "" || version == "latest" {
		return mod.Latest()
	}
	for _, v := range mod.Versions {
		if v.Version == version {
			return v, true
		}
	}
	return ModRelease{}, false
}
