// Package integrator implements the merge core: per-pak normalization,
// cross-pak conflict resolution, best-effort asset registry merge, and
// deterministic emission of a single output pak plus its embedded manifest.
package integrator

import "mint/internal/pak"

// ManifestSchema is the schema version stamped into every emitted Manifest.
const ManifestSchema = 1

// ManifestPath is the known internal path the hook reads the manifest
// from, embedded inside every emitted pak.
const ManifestPath = "Mint/manifest.json"

// ManifestEntry describes one mod that contributed to an IntegratedPak.
type ManifestEntry struct {
	Name    string  `json:"name"`
	Source  string  `json:"source"`
	Digest  string  `json:"digest"`
	Version *string `json:"version"`
}

// Conflict records one internal path contested by more than one mod, and
// who won.
type Conflict struct {
	Path   string   `json:"path"`
	Winner string   `json:"winner"`
	Losers []string `json:"losers"`
}

// Manifest is the JSON document embedded at ManifestPath inside M.
type Manifest struct {
	Schema    int             `json:"schema"`
	Mods      []ManifestEntry `json:"mods"`
	Conflicts []Conflict      `json:"conflicts"`
}

// AdvisoryKind classifies a lint finding surfaced to the status bar. Only
// Conflicts (above) are embedded in the manifest; Advisories are reported
// out-of-band as per-mod warnings.
type AdvisoryKind string

const (
	AdvisoryNonAssetRoot   AdvisoryKind = "non_asset_root"
	AdvisorySplitAssetPair AdvisoryKind = "split_asset_pair"
	AdvisoryCaseCollision  AdvisoryKind = "case_collision"
	AdvisoryAssetRegistry  AdvisoryKind = "asset_registry_fallback"
)

// Advisory is one lint finding. Path is the internal pak path it concerns;
// Mod is the display name of the contributing mod, when known.
type Advisory struct {
	Kind AdvisoryKind
	Mod  string
	Path string
	Note string
}

// ModInput is one pak in the merge, in display order: index 0 is the top
// of the displayed list and has the highest precedence, so earlier paks
// win on conflict.
type ModInput struct {
	Name    string // display name, for manifest + advisories
	Source  string // the spec string that produced this pak, for manifest
	Digest  string // content digest, for manifest
	Version string // pinned/resolved version, empty for "latest"
	Reader  *pak.Reader
}
