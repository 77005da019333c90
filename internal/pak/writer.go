package pak

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sort"

	"github.com/klauspost/compress/zlib"

	"mint/internal/mint"
)

// CopySource carries an entry's bytes exactly as they sit on disk in a
// source pak, letting Write stream-copy them verbatim instead of
// decompressing and recompressing when compression and version align.
type CopySource struct {
	Raw              []byte
	CompressedSize   uint64
	UncompressedSize uint64
	Method           CompressionMethod
	Hash             [20]byte
	Blocks           []CompressionBlock
}

// Input is one entry to emit. Exactly one of Bytes or Copy must be set:
// Bytes is fresh uncompressed payload to be compressed per Compression;
// Copy is a verbatim stream-copy from an already-packaged pak.
type Input struct {
	Path        string
	Bytes       []byte
	Compression CompressionMethod
	Copy        *CopySource
}

// Write emits a pak container to w containing inputs, targeting version.
// Output is deterministic: inputs are sorted lexicographically by
// lower-cased path regardless of caller order, compression is a pure
// function of the input bytes, and no timestamp fields exist to vary
// between runs. Two calls with identical inputs and version produce
// byte-identical output.
func Write(w io.Writer, version Version, inputs []Input) error {
	if !version.Supported() {
		return unsupportedVersion(uint32(version))
	}

	sorted := make([]Input, len(inputs))
	copy(sorted, inputs)
	sort.Slice(sorted, func(i, j int) bool {
		return toLowerPath(sorted[i].Path) < toLowerPath(sorted[j].Path)
	})

	seen := make(map[string]string, len(sorted))
	for _, in := range sorted {
		lp := toLowerPath(in.Path)
		if prior, ok := seen[lp]; ok {
			return mint.New(mint.KindMergeCaseCollision, "duplicate conflict key %q from %q and %q", lp, prior, in.Path)
		}
		seen[lp] = in.Path
	}

	cw := &countingWriter{w: w}

	entries := make([]Entry, 0, len(sorted))
	for _, in := range sorted {
		entry, payload, err := buildEntry(in)
		if err != nil {
			return err
		}
		entry.Offset = uint64(cw.n)
		if _, err := cw.Write(payload); err != nil {
			return fmt.Errorf("writing entry %q: %w", in.Path, err)
		}
		entries = append(entries, entry)
	}

	indexOffset := uint64(cw.n)
	indexBytes := encodeIndexBytes(entries)
	if _, err := cw.Write(indexBytes); err != nil {
		return fmt.Errorf("writing index: %w", err)
	}

	footer := Footer{
		Magic:       Magic,
		Version:     version,
		IndexOffset: indexOffset,
		IndexSize:   uint64(len(indexBytes)),
		IndexHash:   hashIndexBytes(indexBytes),
	}
	footerBytes := encodeFooter(footer)
	if _, err := cw.Write(footerBytes); err != nil {
		return fmt.Errorf("writing footer: %w", err)
	}
	return nil
}

func buildEntry(in Input) (Entry, []byte, error) {
	if in.Copy != nil {
		return Entry{
			Path:              in.Path,
			LowerPath:         toLowerPath(in.Path),
			CompressedSize:    in.Copy.CompressedSize,
			UncompressedSize:  in.Copy.UncompressedSize,
			CompressionMethod: in.Copy.Method,
			Hash:              in.Copy.Hash,
			CompressionBlocks: in.Copy.Blocks,
		}, in.Copy.Raw, nil
	}

	switch in.Compression {
	case CompressionNone:
		return Entry{
			Path:              in.Path,
			LowerPath:         toLowerPath(in.Path),
			CompressedSize:    uint64(len(in.Bytes)),
			UncompressedSize:  uint64(len(in.Bytes)),
			CompressionMethod: CompressionNone,
			Hash:              sha1Sum(in.Bytes),
		}, in.Bytes, nil
	case CompressionZlib:
		var buf bytes.Buffer
		zw := zlib.NewWriter(&buf)
		if _, err := zw.Write(in.Bytes); err != nil {
			return Entry{}, nil, fmt.Errorf("compressing %q: %w", in.Path, err)
		}
		if err := zw.Close(); err != nil {
			return Entry{}, nil, fmt.Errorf("finalizing compression for %q: %w", in.Path, err)
		}
		compressed := buf.Bytes()
		return Entry{
			Path:              in.Path,
			LowerPath:         toLowerPath(in.Path),
			CompressedSize:    uint64(len(compressed)),
			UncompressedSize:  uint64(len(in.Bytes)),
			CompressionMethod: CompressionZlib,
			Hash:              sha1Sum(in.Bytes),
			CompressionBlocks: []CompressionBlock{{Start: 0, End: uint64(len(compressed))}},
		}, compressed, nil
	default:
		return Entry{}, nil, mint.New(mint.KindUnsupportedPakVer, "unsupported desired compression method %d for %q", in.Compression, in.Path)
	}
}

func encodeIndexBytes(entries []Entry) []byte {
	var buf bytes.Buffer
	encodeString(&buf, "../../../")

	var countBuf [4]byte
	binary.LittleEndian.PutUint32(countBuf[:], uint32(len(entries)))
	buf.Write(countBuf[:])

	for _, e := range entries {
		encodeEntryRecord(&buf, e)
	}
	return buf.Bytes()
}

func encodeFooter(f Footer) []byte {
	b := make([]byte, footerSize)
	binary.LittleEndian.PutUint32(b[0:4], f.Magic)
	binary.LittleEndian.PutUint32(b[4:8], uint32(f.Version))
	binary.LittleEndian.PutUint64(b[8:16], f.IndexOffset)
	binary.LittleEndian.PutUint64(b[16:24], f.IndexSize)
	copy(b[24:44], f.IndexHash[:])
	return b
}

// countingWriter tracks bytes written so entry offsets can be computed
// without a Seek-capable destination, so Write can target an output
// os.File, stdout, or an in-memory buffer (as Install and the tests do).
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
