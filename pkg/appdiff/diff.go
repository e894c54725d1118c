package appdiff

import "sort"

// FileSetDiff is the three-way comparison of two path→hash maps. Each list
// holds archive-relative paths, sorted.
type FileSetDiff struct {
	Added   []string // present in new only
	Removed []string // present in old only
	Changed []string // present in both with different hashes
}

// Diff compares two hash maps and buckets every path into added, removed, or
// changed. Paths present in both sides with equal hashes are dropped.
func Diff(oldHashes, newHashes PathHashes) FileSetDiff {
	var d FileSetDiff

	for path, newHash := range newHashes {
		oldHash, ok := oldHashes[path]
		switch {
		case !ok:
			d.Added = append(d.Added, path)
		case oldHash != newHash:
			d.Changed = append(d.Changed, path)
		}
	}
	for path := range oldHashes {
		if _, ok := newHashes[path]; !ok {
			d.Removed = append(d.Removed, path)
		}
	}

	sort.Strings(d.Added)
	sort.Strings(d.Removed)
	sort.Strings(d.Changed)
	return d
}

// Empty reports whether the two sides were identical.
func (d FileSetDiff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

// Paths returns every path the diff touches, sorted and de-duplicated.
func (d FileSetDiff) Paths() []string {
	seen := make(map[string]bool, len(d.Added)+len(d.Removed)+len(d.Changed))
	var paths []string
	for _, list := range [][]string{d.Added, d.Removed, d.Changed} {
		for _, p := range list {
			if !seen[p] {
				seen[p] = true
				paths = append(paths, p)
			}
		}
	}
	sort.Strings(paths)
	return paths
}

// Filter returns the sub-diff of paths matching pred, preserving which list
// each path came from.
func (d FileSetDiff) Filter(pred func(string) bool) FileSetDiff {
	keep := func(paths []string) []string {
		var out []string
		for _, p := range paths {
			if pred(p) {
				out = append(out, p)
			}
		}
		return out
	}
	return FileSetDiff{
		Added:   keep(d.Added),
		Removed: keep(d.Removed),
		Changed: keep(d.Changed),
	}
}
