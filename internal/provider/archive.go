package provider

import (
	"context"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mholt/archives"

	"mint/internal/mint"
)

// UnwrapResult holds every pak found inside a fetched .zip payload. Only
// Primary becomes the mod's Artifact; Extras are reported as advisories
// by the caller, not silently dropped.
type UnwrapResult struct {
	Primary []byte
	Extras  []ArchivedPak
}

// ArchivedPak names one extra pak found alongside the primary.
type ArchivedPak struct {
	Name string
	Size int64
}

// UnwrapZip extracts every *.pak entry from a zip-format archive, sorts
// them by their path inside the archive, and returns the first as Primary
// and the rest as advisory Extras. It uses mholt/archives rather than hand-rolling a second zip
// reader alongside the pak codec's own footer parser.
func UnwrapZip(ctx context.Context, body io.Reader, sizeHint int64) (UnwrapResult, error) {
	format, input, err := archives.Identify(ctx, "", body)
	if err != nil {
		return UnwrapResult{}, mint.Wrap(mint.KindCorruptPak, err, "identifying archive format")
	}

	extractor, ok := format.(archives.Extractor)
	if !ok {
		return UnwrapResult{}, mint.New(mint.KindCorruptPak, "archive format %s does not support extraction", format.Extension())
	}

	type found struct {
		name string
		data []byte
	}
	var paks []found

	walkErr := extractor.Extract(ctx, input, func(_ context.Context, f archives.FileInfo) error {
		if f.IsDir() {
			return nil
		}
		if !strings.EqualFold(filepath.Ext(f.NameInArchive), ".pak") {
			return nil
		}
		rc, err := f.Open()
		if err != nil {
			return mint.Wrap(mint.KindCorruptPak, err, "opening archived entry %q", f.NameInArchive)
		}
		defer rc.Close()

		data, err := io.ReadAll(rc)
		if err != nil {
			return mint.Wrap(mint.KindCorruptPak, err, "reading archived entry %q", f.NameInArchive)
		}
		paks = append(paks, found{name: f.NameInArchive, data: data})
		return nil
	})
	if walkErr != nil {
		return UnwrapResult{}, walkErr
	}
	if len(paks) == 0 {
		return UnwrapResult{}, mint.New(mint.KindCorruptPak, "archive contains no .pak entries")
	}

	sort.SliceStable(paks, func(i, j int) bool { return paks[i].name < paks[j].name })

	result := UnwrapResult{Primary: paks[0].data}
	for _, extra := range paks[1:] {
		result.Extras = append(result.Extras, ArchivedPak{Name: extra.name, Size: int64(len(extra.data))})
	}
	return result, nil
}
