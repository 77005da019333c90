package store

import (
	"encoding/json"
	"os"
	"path/filepath"

	"mint/internal/mint"
	"mint/internal/provider"
)

// indexSchemaVersion is bumped whenever the on-disk CacheIndex shape
// changes in a way old readers can't tolerate.
const indexSchemaVersion = 1

// Artifact is the immutable, content-addressed record of one fetched mod
// payload.
type Artifact struct {
	Digest Digest             `json:"digest"`
	Size   int64              `json:"size"`
	Media  provider.MediaKind `json:"media"`
}

// versionKey namespaces Artifacts by ProviderKey + Version, since the same
// mod can have multiple cached versions simultaneously.
type versionKey struct {
	ProviderKey string
	Version     string
}

func (k versionKey) marshal() string { return k.ProviderKey + "@" + k.Version }

// Index is the persisted CacheIndex: ProviderKey -> ResolvedMod, and
// ProviderKey+Version -> Artifact digest.
type Index struct {
	SchemaVersion int                             `json:"schema_version"`
	Resolved      map[string]provider.ResolvedMod `json:"resolved"`
	Artifacts     map[string]Artifact             `json:"artifacts"` // keyed by versionKey.marshal()
}

func newIndex() *Index {
	return &Index{
		SchemaVersion: indexSchemaVersion,
		Resolved:      make(map[string]provider.ResolvedMod),
		Artifacts:     make(map[string]Artifact),
	}
}

func loadIndex(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return newIndex(), nil
	}
	if err != nil {
		return nil, mint.Wrap(mint.KindIO, err, "reading cache index %s", path)
	}

	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, mint.Wrap(mint.KindIO, err, "parsing cache index %s", path)
	}
	if idx.Resolved == nil {
		idx.Resolved = make(map[string]provider.ResolvedMod)
	}
	if idx.Artifacts == nil {
		idx.Artifacts = make(map[string]Artifact)
	}
	return &idx, nil
}

// save publishes the index via temp-file + rename so readers never see a
// half-written file.
func (idx *Index) save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return mint.Wrap(mint.KindIO, err, "creating cache dir")
	}

	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return mint.Wrap(mint.KindIO, err, "marshalling cache index")
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return mint.Wrap(mint.KindIO, err, "writing cache index temp file")
	}
	if err := os.Rename(tmp, path); err != nil {
		return mint.Wrap(mint.KindIO, err, "renaming cache index into place")
	}
	return nil
}
