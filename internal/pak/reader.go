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

// Reader provides lazy, read-only access to one pak container. Index
// parsing never touches entry payload bytes; payloads are only read when
// a caller asks for a specific entry.
type Reader struct {
	src        io.ReaderAt
	size       int64
	Version    Version
	MountPoint string
	entries    []Entry
	byLower    map[string]*Entry
}

// Open parses the footer and index of src (a seekable, sized byte source)
// and returns a Reader. It does not read any entry payload.
func Open(src io.ReaderAt, size int64) (*Reader, error) {
	if size < footerSize {
		return nil, corruptIndex("file too small (%d bytes) to contain a pak footer", size)
	}

	footerBuf := make([]byte, footerSize)
	if _, err := src.ReadAt(footerBuf, size-footerSize); err != nil {
		return nil, fmt.Errorf("reading footer: %w", err)
	}

	footer, err := decodeFooter(footerBuf)
	if err != nil {
		return nil, err
	}
	if !footer.Version.Supported() {
		return nil, unsupportedVersion(uint32(footer.Version))
	}

	if footer.IndexOffset+footer.IndexSize > uint64(size-footerSize) {
		return nil, corruptIndex("index region (offset %d size %d) overruns file", footer.IndexOffset, footer.IndexSize)
	}

	indexBuf := make([]byte, footer.IndexSize)
	if _, err := src.ReadAt(indexBuf, int64(footer.IndexOffset)); err != nil {
		return nil, fmt.Errorf("reading index: %w", err)
	}

	if hashIndexBytes(indexBuf) != footer.IndexHash {
		return nil, mint.New(mint.KindIntegrityMismatch, "pak index hash mismatch")
	}

	mountPoint, entries, err := decodeIndex(indexBuf)
	if err != nil {
		return nil, err
	}

	r := &Reader{
		src:        src,
		size:       size,
		Version:    footer.Version,
		MountPoint: mountPoint,
		entries:    entries,
		byLower:    make(map[string]*Entry, len(entries)),
	}
	for i := range r.entries {
		r.byLower[r.entries[i].LowerPath] = &r.entries[i]
	}
	return r, nil
}

func decodeFooter(b []byte) (Footer, error) {
	var f Footer
	if len(b) != footerSize {
		return f, corruptIndex("short footer")
	}
	f.Magic = binary.LittleEndian.Uint32(b[0:4])
	if f.Magic != Magic {
		return f, corruptIndex("bad footer magic 0x%X", f.Magic)
	}
	f.Version = Version(binary.LittleEndian.Uint32(b[4:8]))
	f.IndexOffset = binary.LittleEndian.Uint64(b[8:16])
	f.IndexSize = binary.LittleEndian.Uint64(b[16:24])
	copy(f.IndexHash[:], b[24:44])
	return f, nil
}

func decodeIndex(b []byte) (mountPoint string, entries []Entry, err error) {
	r := bytes.NewReader(b)
	mountPoint, err = decodeString(r)
	if err != nil {
		return "", nil, fmt.Errorf("decoding mount point: %w", err)
	}

	var countBuf [4]byte
	if _, err := readFull(r, countBuf[:]); err != nil {
		return "", nil, corruptIndex("reading entry count: %v", err)
	}
	count := binary.LittleEndian.Uint32(countBuf[:])
	if int64(count) > int64(len(b)) {
		return "", nil, corruptIndex("implausible entry count %d", count)
	}

	entries = make([]Entry, 0, count)
	for i := uint32(0); i < count; i++ {
		e, err := decodeEntryRecord(r)
		if err != nil {
			return "", nil, err
		}
		entries = append(entries, e)
	}
	return mountPoint, entries, nil
}

// Entries returns the index in on-disk order (not sorted). Callers that
// need deterministic iteration should use SortedEntries.
func (r *Reader) Entries() []Entry {
	return r.entries
}

// SortedEntries returns a copy of the index sorted lexicographically by
// LowerPath, the ordering the integrator's writer emits.
func (r *Reader) SortedEntries() []Entry {
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	sort.Slice(out, func(i, j int) bool { return out[i].LowerPath < out[j].LowerPath })
	return out
}

// Lookup returns the entry for the given internal path (case-insensitive),
// or false if absent.
func (r *Reader) Lookup(path string) (Entry, bool) {
	e, ok := r.byLower[toLowerPath(path)]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Raw returns the entry's bytes exactly as stored on disk (still
// compressed, if compressed). Used by the writer's stream-copy path so
// bundling already-packaged mods never triggers recompression.
func (r *Reader) Raw(e Entry) ([]byte, error) {
	buf := make([]byte, e.CompressedSize)
	n, err := r.src.ReadAt(buf, int64(e.Offset))
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("reading raw entry %q: %w", e.Path, err)
	}
	if uint64(n) != e.CompressedSize {
		return nil, truncatedEntry(e.Path)
	}
	return buf, nil
}

// CopySourceFor builds a CopySource for e, letting the integrator
// stream-copy the entry's on-disk bytes verbatim into the output pak
// without decompressing, as long as the target version's compression
// support matches. Bundling already-packaged mods takes this path.
func (r *Reader) CopySourceFor(e Entry) (*CopySource, error) {
	raw, err := r.Raw(e)
	if err != nil {
		return nil, err
	}
	return &CopySource{
		Raw:              raw,
		CompressedSize:   e.CompressedSize,
		UncompressedSize: e.UncompressedSize,
		Method:           e.CompressionMethod,
		Hash:             e.Hash,
		Blocks:           e.CompressionBlocks,
	}, nil
}

// OpenEntry reads and decompresses entry e's full payload, verifying its hash
// against the index's recorded value.
func (r *Reader) OpenEntry(e Entry) ([]byte, error) {
	raw, err := r.Raw(e)
	if err != nil {
		return nil, err
	}

	var plain []byte
	switch e.CompressionMethod {
	case CompressionNone:
		plain = raw
	case CompressionZlib:
		zr, err := zlib.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, mint.Wrap(mint.KindCorruptPak, err, "opening zlib stream for %q", e.Path)
		}
		defer zr.Close()
		plain, err = io.ReadAll(zr)
		if err != nil {
			return nil, mint.Wrap(mint.KindCorruptPak, err, "decompressing %q", e.Path)
		}
	default:
		return nil, corruptIndex("entry %q has unknown compression method %d", e.Path, e.CompressionMethod)
	}

	if uint64(len(plain)) != e.UncompressedSize {
		return nil, truncatedEntry(e.Path)
	}
	if sha1Sum(plain) != e.Hash {
		return nil, badHash(e.Path)
	}
	return plain, nil
}
