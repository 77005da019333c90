package integrator

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// assetRegistryPath is the conventional internal path of the asset
// registry summary inside a DRG content pak.
const assetRegistryPath = "Content/AssetRegistry.bin"

// assetRegistryMagic tags the simplified length-prefixed-path-list layout
// this package reads and writes. It does not attempt to parse the game's
// actual internal AssetRegistry format (undocumented, version-specific);
// an unparseable or absent registry just falls back to the precedence
// rule with a prominent advisory.
const assetRegistryMagic = "MNTR"

// mergeAssetRegistries performs a best-effort union: parse each
// contributing copy, union entries by primary asset path, and tie-break
// duplicates by precedence (the earliest, i.e. highest-precedence,
// ModInput wins). Any parse failure degrades to "use the
// highest-precedence pak's copy verbatim" plus an advisory.
func mergeAssetRegistries(copies []assetRegistryCopy) ([]byte, []Advisory) {
	if len(copies) == 0 {
		return nil, nil
	}
	if len(copies) == 1 {
		return copies[0].data, nil
	}

	type owned struct {
		path      string
		ownerName string
		ownerIdx  int
	}
	byPath := make(map[string]owned)
	order := make([]string, 0)

	for _, c := range copies {
		paths, err := decodeAssetRegistry(c.data)
		if err != nil {
			return fallbackRegistry(copies)
		}
		for _, p := range paths {
			if existing, ok := byPath[p]; ok {
				if c.modIdx < existing.ownerIdx {
					byPath[p] = owned{path: p, ownerName: c.modName, ownerIdx: c.modIdx}
				}
				continue
			}
			byPath[p] = owned{path: p, ownerName: c.modName, ownerIdx: c.modIdx}
			order = append(order, p)
		}
	}

	merged := make([]string, 0, len(order))
	for _, p := range order {
		merged = append(merged, p)
	}
	return encodeAssetRegistry(merged), nil
}

func fallbackRegistry(copies []assetRegistryCopy) ([]byte, []Advisory) {
	best := copies[0]
	for _, c := range copies[1:] {
		if c.modIdx < best.modIdx {
			best = c
		}
	}
	return best.data, []Advisory{{
		Kind: AdvisoryAssetRegistry,
		Mod:  best.modName,
		Path: assetRegistryPath,
		Note: "one or more contributing AssetRegistry.bin copies were unparseable; used " + best.modName + "'s copy verbatim",
	}}
}

// assetRegistryCopy is one mod's contribution to the merge, with modIdx
// recording its precedence position (lower wins ties).
type assetRegistryCopy struct {
	modIdx  int
	modName string
	data    []byte
}

func decodeAssetRegistry(b []byte) ([]string, error) {
	r := bytes.NewReader(b)
	magic := make([]byte, len(assetRegistryMagic))
	if _, err := r.Read(magic); err != nil || string(magic) != assetRegistryMagic {
		return nil, fmt.Errorf("bad asset registry magic")
	}
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, err
	}
	paths := make([]string, 0, count)
	for i := uint32(0); i < count; i++ {
		var n uint32
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return nil, err
		}
		buf := make([]byte, n)
		if _, err := r.Read(buf); err != nil {
			return nil, err
		}
		paths = append(paths, string(buf))
	}
	return paths, nil
}

func encodeAssetRegistry(paths []string) []byte {
	var buf bytes.Buffer
	buf.WriteString(assetRegistryMagic)
	binary.Write(&buf, binary.LittleEndian, uint32(len(paths)))
	for _, p := range paths {
		binary.Write(&buf, binary.LittleEndian, uint32(len(p)))
		buf.WriteString(p)
	}
	return buf.Bytes()
}
