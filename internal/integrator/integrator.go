package integrator

import (
	"encoding/json"
	"io"
	"sort"
	"strings"

	"mint/internal/mint"
	"mint/internal/pak"
)

// Result is everything Integrate produces: the manifest it embedded, every
// lint advisory collected along the way, and the set of mods actually
// contributing at least one surviving entry.
type Result struct {
	Manifest       Manifest
	Advisories     []Advisory
	ContributorSet map[string]bool // mod names with >=1 emitted entry
}

var assetRegistryLower = strings.ToLower(assetRegistryPath)

// Integrate normalizes, merges, and emits inputs (highest precedence
// first) to w as a single pak container, returning the manifest it
// embedded and the advisories collected during normalization and merge.
// It never mutates any input Reader; output is deterministic for a given
// input set.
func Integrate(w io.Writer, inputs []ModInput) (Result, error) {
	targetVersion := pak.VersionV8A
	for _, in := range inputs {
		if in.Reader.Version > targetVersion {
			targetVersion = in.Reader.Version
		}
	}

	perMod := make([][]normalizedEntry, len(inputs))
	var allAdvisories []Advisory
	var registryCopies []assetRegistryCopy

	for idx, in := range inputs {
		entries, advisories := normalizePak(in.Name, in.Reader)
		allAdvisories = append(allAdvisories, advisories...)

		kept := entries[:0]
		for _, e := range entries {
			if e.lower == assetRegistryLower {
				if data := mustOpen(in.Reader, e.entry); data != nil {
					registryCopies = append(registryCopies, assetRegistryCopy{modIdx: idx, modName: in.Name, data: data})
				}
				continue
			}
			kept = append(kept, e)
		}
		perMod[idx] = kept
	}

	claims, conflicts, conflictAdvisories := resolveConflicts(inputs, perMod)
	allAdvisories = append(allAdvisories, conflictAdvisories...)

	var registryBytes []byte
	if len(registryCopies) > 0 {
		merged, advisories := mergeAssetRegistries(registryCopies)
		registryBytes = merged
		allAdvisories = append(allAdvisories, advisories...)
	}

	pakInputs := make([]pak.Input, 0, len(claims)+2)
	contributors := make(map[string]bool)
	lowers := make([]string, 0, len(claims))
	for lp := range claims {
		lowers = append(lowers, lp)
	}
	sort.Strings(lowers)
	for _, lp := range lowers {
		c := claims[lp]
		src, err := inputs[c.winnerIdx].Reader.CopySourceFor(c.entry.entry)
		if err != nil {
			return Result{}, err
		}
		pakInputs = append(pakInputs, pak.Input{Path: c.entry.path, Copy: src})
		contributors[inputs[c.winnerIdx].Name] = true
	}

	if registryBytes != nil {
		pakInputs = append(pakInputs, pak.Input{
			Path:        assetRegistryPath,
			Bytes:       registryBytes,
			Compression: pak.CompressionNone,
		})
	}

	manifest := buildManifest(inputs, conflicts)
	manifestBytes, err := json.Marshal(manifest)
	if err != nil {
		return Result{}, mint.Wrap(mint.KindIO, err, "marshalling manifest")
	}
	pakInputs = append(pakInputs, pak.Input{
		Path:        ManifestPath,
		Bytes:       manifestBytes,
		Compression: pak.CompressionNone,
	})

	if err := pak.Write(w, targetVersion, pakInputs); err != nil {
		return Result{}, err
	}

	return Result{Manifest: manifest, Advisories: allAdvisories, ContributorSet: contributors}, nil
}

func mustOpen(r *pak.Reader, e pak.Entry) []byte {
	data, err := r.OpenEntry(e)
	if err != nil {
		// AssetRegistry.bin is itself subject to the same integrity checks
		// as any other entry; a corrupt copy is excluded from the merge
		// rather than crashing the whole integrate run.
		return nil
	}
	return data
}

func buildManifest(inputs []ModInput, conflicts []Conflict) Manifest {
	mods := make([]ManifestEntry, 0, len(inputs))
	for _, in := range inputs {
		var version *string
		if in.Version != "" {
			v := in.Version
			version = &v
		}
		mods = append(mods, ManifestEntry{
			Name:    in.Name,
			Source:  in.Source,
			Digest:  in.Digest,
			Version: version,
		})
	}
	if conflicts == nil {
		conflicts = []Conflict{}
	}
	return Manifest{Schema: ManifestSchema, Mods: mods, Conflicts: conflicts}
}
