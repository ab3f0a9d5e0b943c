// Package checksum fingerprints file contents. The digest of the ledger
// file's exact bytes serves as the store revision for optimistic
// concurrency checks.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex-encoded SHA-256 digest of data. Equal digests mean
// byte-identical contents; any rewrite of the file yields a new revision.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
