package pak

import "crypto/sha1" //nolint:gosec // entry integrity hash is mandated by the pak format, not a security boundary

// sha1Sum hashes uncompressed entry payload bytes, matching the SHA-1
// field the index stores per entry.
func sha1Sum(b []byte) [20]byte {
	return sha1.Sum(b) //nolint:gosec
}
