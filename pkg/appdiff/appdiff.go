// Package appdiff compares two zipped app bundles and reports which files
// changed, after canonicalizing the entries whose bytes vary across
// otherwise-identical builds: code-signed Mach-O executables and compiled
// asset catalogs.
package appdiff

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hash is a 64-character hex-encoded SHA-256 digest.
type Hash string

// PathHashes maps archive-relative paths to the digest of their canonical
// content.
type PathHashes map[string]Hash

// HashBytes computes the SHA-256 hash of data and returns it as a lowercase
// hex-encoded Hash.
func HashBytes(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}
