package pak

import (
	"bytes"
	"crypto/sha1" //nolint:gosec // mandated by the pak footer/index hash fields, not used for anything security-sensitive
	"encoding/binary"
	"fmt"
)

// encodeString writes a length-prefixed (int32 byte length) UTF-8 string.
func encodeString(buf *bytes.Buffer, s string) {
	b := []byte(s)
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(b)))
	buf.Write(lenBuf[:])
	buf.Write(b)
}

func decodeString(r *bytes.Reader) (string, error) {
	var lenBuf [4]byte
	if _, err := r.Read(lenBuf[:]); err != nil {
		return "", fmt.Errorf("reading string length: %w", err)
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	if n > 1<<20 {
		return "", corruptIndex("implausible string length %d", n)
	}
	b := make([]byte, n)
	if _, err := readFull(r, b); err != nil {
		return "", fmt.Errorf("reading string bytes: %w", err)
	}
	return string(b), nil
}

func readFull(r *bytes.Reader, b []byte) (int, error) {
	total := 0
	for total < len(b) {
		n, err := r.Read(b[total:])
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, fmt.Errorf("short read")
		}
	}
	return total, nil
}

// encodeEntryRecord writes the index's per-entry record: path, offset,
// sizes, compression method, hash, flags, and compression blocks.
func encodeEntryRecord(buf *bytes.Buffer, e Entry) {
	encodeString(buf, e.Path)

	var fixed [8 + 8 + 8 + 1 + 20 + 1 + 4]byte
	off := 0
	binary.LittleEndian.PutUint64(fixed[off:], e.Offset)
	off += 8
	binary.LittleEndian.PutUint64(fixed[off:], e.CompressedSize)
	off += 8
	binary.LittleEndian.PutUint64(fixed[off:], e.UncompressedSize)
	off += 8
	fixed[off] = byte(e.CompressionMethod)
	off++
	copy(fixed[off:off+20], e.Hash[:])
	off += 20
	fixed[off] = byte(e.Flags)
	off++
	binary.LittleEndian.PutUint32(fixed[off:], uint32(len(e.CompressionBlocks)))
	buf.Write(fixed[:])

	for _, blk := range e.CompressionBlocks {
		var b [16]byte
		binary.LittleEndian.PutUint64(b[0:], blk.Start)
		binary.LittleEndian.PutUint64(b[8:], blk.End)
		buf.Write(b[:])
	}
}

func decodeEntryRecord(r *bytes.Reader) (Entry, error) {
	var e Entry
	path, err := decodeString(r)
	if err != nil {
		return e, err
	}
	e.Path = path
	e.LowerPath = toLowerPath(path)

	var fixed [8 + 8 + 8 + 1 + 20 + 1 + 4]byte
	if _, err := readFull(r, fixed[:]); err != nil {
		return e, truncatedEntry(path)
	}
	off := 0
	e.Offset = binary.LittleEndian.Uint64(fixed[off:])
	off += 8
	e.CompressedSize = binary.LittleEndian.Uint64(fixed[off:])
	off += 8
	e.UncompressedSize = binary.LittleEndian.Uint64(fixed[off:])
	off += 8
	e.CompressionMethod = CompressionMethod(fixed[off])
	off++
	copy(e.Hash[:], fixed[off:off+20])
	off += 20
	e.Flags = EntryFlags(fixed[off])
	off++
	numBlocks := binary.LittleEndian.Uint32(fixed[off:])

	if !e.CompressionMethod.valid() {
		return e, corruptIndex("entry %q declares unknown compression method %d", path, e.CompressionMethod)
	}
	if e.Flags&FlagEncrypted != 0 {
		return e, corruptIndex("entry %q is encrypted", path)
	}

	if numBlocks > 1<<16 {
		return e, corruptIndex("entry %q declares implausible block count %d", path, numBlocks)
	}
	e.CompressionBlocks = make([]CompressionBlock, numBlocks)
	for i := range e.CompressionBlocks {
		var b [16]byte
		if _, err := readFull(r, b[:]); err != nil {
			return e, truncatedEntry(path)
		}
		e.CompressionBlocks[i] = CompressionBlock{
			Start: binary.LittleEndian.Uint64(b[0:]),
			End:   binary.LittleEndian.Uint64(b[8:]),
		}
	}
	return e, nil
}

// hashIndexBytes computes the SHA-1 the footer's IndexHash field must match.
func hashIndexBytes(b []byte) [20]byte {
	return sha1.Sum(b) //nolint:gosec
}
