// Package manifest persists archive hash manifests so repeated diffs against
// the same build skip the canonicalization work. Manifests are stored
// content-addressed under a cache root with a 2-character fan-out layout:
// <root>/ab/cdef0123...
package manifest

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/adrg/xdg"
)

// Manifest maps archive-relative paths to hex-encoded content digests.
type Manifest map[string]string

// ErrNotCached is returned by Load when no manifest exists under a key.
var ErrNotCached = errors.New("manifest not cached")

// Key derives a cache key from the given parts. Any part changing yields an
// unrelated key.
func Key(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// DefaultRoot is the per-user manifest cache location.
func DefaultRoot() string {
	return filepath.Join(xdg.CacheHome, "drydock", "manifests")
}

// Marshal renders m in sha256sum style: one "hash  path" line per entry,
// sorted by path, preceded by an envelope line carrying the entry count.
func Marshal(m Manifest) []byte {
	paths := make([]string, 0, len(m))
	for p := range m {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var b strings.Builder
	fmt.Fprintf(&b, "manifest %d\n", len(paths))
	for _, p := range paths {
		fmt.Fprintf(&b, "%s  %s\n", m[p], p)
	}
	return []byte(b.String())
}

// Unmarshal parses the Marshal format, validating the envelope count.
func Unmarshal(data []byte) (Manifest, error) {
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	if len(lines) == 0 {
		return nil, fmt.Errorf("manifest parse: empty payload")
	}

	var count int
	if _, err := fmt.Sscanf(lines[0], "manifest %d", &count); err != nil {
		return nil, fmt.Errorf("manifest parse: invalid envelope %q", lines[0])
	}
	entries := lines[1:]
	if len(entries) != count {
		return nil, fmt.Errorf("manifest parse: envelope says %d entries, found %d", count, len(entries))
	}

	m := make(Manifest, count)
	for i, line := range entries {
		hash, path, ok := strings.Cut(line, "  ")
		if !ok || hash == "" || path == "" {
			return nil, fmt.Errorf("manifest parse: invalid entry on line %d", i+2)
		}
		m[path] = hash
	}
	return m, nil
}
