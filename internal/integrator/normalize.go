package integrator

import (
	"path"
	"strings"

	"mint/internal/pak"
)

// assetRootPrefix is the lower-cased internal path prefix every legitimate
// asset lives under for this title's pak layout. Anything else is a DLL,
// script, or stray file a mod author packaged by mistake.
const assetRootPrefix = "content/"

// shaderBytecodeExts are extensions known to crash the game when supplied
// by a mod pak rather than baked in at ship time.
var shaderBytecodeExts = map[string]bool{
	".ushaderbytecode": true,
	".shaderbytecode":  true,
}

// splitAssetExts names extensions that are only meaningful alongside a
// sibling .uasset; a lone one without its .uasset is an orphan.
var splitAssetExts = map[string]bool{
	".uexp":  true,
	".ubulk": true,
}

// normalizedEntry is one surviving, emit-ready file from a single pak.
type normalizedEntry struct {
	path  string // original case, used both for the emitted entry and as the map key's origin
	lower string
	entry pak.Entry
}

// normalizePak applies the entry filters in order to one contributing
// pak, returning the entries that survive (in their original on-disk
// order, with in-pak case collisions already resolved) plus any lint
// advisories.
func normalizePak(modName string, r *pak.Reader) ([]normalizedEntry, []Advisory) {
	raw := r.Entries()

	// First pass: asset-root and shader-bytecode filters. Rejected entries
	// are dropped outright; non-asset-root rejection carries an advisory,
	// shader bytecode rejection does not.
	survivors := make([]pak.Entry, 0, len(raw))
	var advisories []Advisory
	for _, e := range raw {
		if !strings.HasPrefix(e.LowerPath, assetRootPrefix) {
			advisories = append(advisories, Advisory{
				Kind: AdvisoryNonAssetRoot, Mod: modName, Path: e.Path,
				Note: "outside the asset root, dropped",
			})
			continue
		}
		if shaderBytecodeExts[strings.ToLower(path.Ext(e.LowerPath))] {
			continue
		}
		survivors = append(survivors, e)
	}

	// Split-asset-pair lint: a lone .uexp/.ubulk without its .uasset sibling
	// is flagged, but still emitted.
	present := make(map[string]bool, len(survivors))
	for _, e := range survivors {
		present[e.LowerPath] = true
	}
	for _, e := range survivors {
		ext := strings.ToLower(path.Ext(e.LowerPath))
		if !splitAssetExts[ext] {
			continue
		}
		base := strings.TrimSuffix(e.LowerPath, ext)
		if !present[base+".uasset"] {
			advisories = append(advisories, Advisory{
				Kind: AdvisorySplitAssetPair, Mod: modName, Path: e.Path,
				Note: "no matching .uasset found in the same pak",
			})
		}
	}

	// In-pak case-collision resolution: the later occurrence shadows the
	// earlier one, in on-disk order.
	byLower := make(map[string]pak.Entry, len(survivors))
	order := make([]string, 0, len(survivors))
	for _, e := range survivors {
		if prior, ok := byLower[e.LowerPath]; ok && prior.Path != e.Path {
			advisories = append(advisories, Advisory{
				Kind: AdvisoryCaseCollision, Mod: modName, Path: e.Path,
				Note: "shadows earlier entry " + prior.Path + " within the same pak (case-only difference)",
			})
		} else if !ok {
			order = append(order, e.LowerPath)
		}
		byLower[e.LowerPath] = e
	}

	out := make([]normalizedEntry, 0, len(order))
	for _, lp := range order {
		e := byLower[lp]
		out = append(out, normalizedEntry{path: e.Path, lower: e.LowerPath, entry: e})
	}
	return out, advisories
}
