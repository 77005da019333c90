package store

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
)

// Digest is the content address of an Artifact: SHA-256 over the fetched
// payload bytes.
type Digest string

// hashReader copies r into dst while also computing its SHA-256 digest.
func hashReader(r io.Reader, dst io.Writer) (Digest, int64, error) {
	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(dst, h), r)
	if err != nil {
		return "", n, err
	}
	return Digest(hex.EncodeToString(h.Sum(nil))), n, nil
}

func hashBytes(b []byte) Digest {
	sum := sha256.Sum256(b)
	return Digest(hex.EncodeToString(sum[:]))
}

// shard returns the two-character directory prefix used to keep
// cache/blobs from putting every artifact in one flat directory.
func (d Digest) shard() string {
	if len(d) < 2 {
		return "00"
	}
	return string(d[:2])
}
