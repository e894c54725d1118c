package appdiff

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"github.com/odvcencio/drydock/pkg/archive"
	"github.com/odvcencio/drydock/pkg/logging"
	"github.com/odvcencio/drydock/pkg/manifest"
)

// cacheSchema versions the manifest cache payload. Bump when the canonical
// form of any entry kind changes, so stale hashes never satisfy a lookup.
const cacheSchema = "1"

// Differ hashes archives entry by entry and compares the results. Hashing
// applies the canonicalizer to the entries whose raw bytes are
// build-dependent.
type Differ struct {
	canon *Canonicalizer
	cache *manifest.Store
	log   zerolog.Logger
}

func NewDiffer(canon *Canonicalizer) *Differ {
	return &Differ{
		canon: canon,
		log:   logging.GetLogger("differ"),
	}
}

// WithCache makes HashArchive consult and fill a manifest store. Lookups are
// keyed by the archive digest and the canonicalizer fingerprint, so a cache
// written on a host with different tooling is never trusted.
func (d *Differ) WithCache(s *manifest.Store) *Differ {
	d.cache = s
	return d
}

// HashArchive computes the canonical digest of every file entry in a.
//
// A baseline pass hashes raw bytes. Entries needing canonicalization are
// rehashed in two overlay passes, executables and asset catalogs, which run
// concurrently since each may shell out per entry. Overlay results replace
// baseline hashes on merge.
func (d *Differ) HashArchive(ctx context.Context, a *archive.Archive) (PathHashes, error) {
	var key string
	if d.cache != nil {
		var err error
		key, err = d.cacheKey(a)
		if err != nil {
			return nil, err
		}
		if m, err := d.cache.Load(key); err == nil {
			d.log.Debug().Str("archive", a.Path()).Msg("manifest cache hit")
			return fromManifest(m), nil
		}
	}

	hashes := make(PathHashes)
	var execPaths, catalogPaths []string
	for _, e := range a.Entries() {
		if !e.IsFile {
			continue
		}
		data, err := e.Bytes()
		if err != nil {
			return nil, fmt.Errorf("hash %s: %w", a.Path(), err)
		}
		hashes[e.Path] = HashBytes(data)

		// An Assets.car at an app bundle root also matches the executable
		// pattern; the catalog transform wins.
		switch {
		case d.canon.NormalizesAssetCatalog(e.Path):
			catalogPaths = append(catalogPaths, e.Path)
		case d.canon.NormalizesExecutable(e.Path):
			execPaths = append(execPaths, e.Path)
		}
	}

	var wg sync.WaitGroup
	var execOverlay, catalogOverlay PathHashes
	var execErr, catalogErr error

	wg.Add(2)
	go func() {
		defer wg.Done()
		execOverlay, execErr = d.hashOverlay(ctx, a, execPaths, d.canon.CanonicalizeExecutable)
	}()
	go func() {
		defer wg.Done()
		catalogOverlay, catalogErr = d.hashOverlay(ctx, a, catalogPaths, d.canon.CanonicalizeAssetCatalog)
	}()
	wg.Wait()

	if execErr != nil {
		return nil, fmt.Errorf("hash %s: %w", a.Path(), execErr)
	}
	if catalogErr != nil {
		return nil, fmt.Errorf("hash %s: %w", a.Path(), catalogErr)
	}
	for p, h := range execOverlay {
		hashes[p] = h
	}
	for p, h := range catalogOverlay {
		hashes[p] = h
	}

	if d.cache != nil {
		if err := d.cache.Save(key, toManifest(hashes)); err != nil {
			d.log.Warn().Err(err).Str("archive", a.Path()).Msg("manifest cache write failed")
		}
	}
	return hashes, nil
}

type canonicalize func(ctx context.Context, entryPath string, data []byte) ([]byte, error)

func (d *Differ) hashOverlay(ctx context.Context, a *archive.Archive, paths []string, canon canonicalize) (PathHashes, error) {
	overlay := make(PathHashes, len(paths))
	for _, p := range paths {
		data, err := a.ReadFile(p)
		if err != nil {
			return nil, err
		}
		canonical, err := canon(ctx, p, data)
		if err != nil {
			return nil, err
		}
		overlay[p] = HashBytes(canonical)
	}
	return overlay, nil
}

// DiffArchives opens both archives, hashes them concurrently, and returns
// the resulting diff.
func (d *Differ) DiffArchives(ctx context.Context, oldPath, newPath string) (FileSetDiff, error) {
	oldArch, err := archive.Open(oldPath)
	if err != nil {
		return FileSetDiff{}, err
	}
	defer oldArch.Close()

	newArch, err := archive.Open(newPath)
	if err != nil {
		return FileSetDiff{}, err
	}
	defer newArch.Close()

	var wg sync.WaitGroup
	var oldHashes, newHashes PathHashes
	var oldErr, newErr error

	wg.Add(2)
	go func() {
		defer wg.Done()
		oldHashes, oldErr = d.HashArchive(ctx, oldArch)
	}()
	go func() {
		defer wg.Done()
		newHashes, newErr = d.HashArchive(ctx, newArch)
	}()
	wg.Wait()

	if oldErr != nil {
		return FileSetDiff{}, oldErr
	}
	if newErr != nil {
		return FileSetDiff{}, newErr
	}
	return Diff(oldHashes, newHashes), nil
}

// CanonicalEntryBytes returns the canonical form of a single entry, as the
// hasher would have seen it.
func (d *Differ) CanonicalEntryBytes(ctx context.Context, a *archive.Archive, entryPath string) ([]byte, error) {
	data, err := a.ReadFile(entryPath)
	if err != nil {
		return nil, err
	}
	switch {
	case d.canon.NormalizesAssetCatalog(entryPath):
		return d.canon.CanonicalizeAssetCatalog(ctx, entryPath, data)
	case d.canon.NormalizesExecutable(entryPath):
		return d.canon.CanonicalizeExecutable(ctx, entryPath, data)
	}
	return data, nil
}

func (d *Differ) cacheKey(a *archive.Archive) (string, error) {
	raw, err := os.ReadFile(a.Path())
	if err != nil {
		return "", fmt.Errorf("cache key for %s: %w", a.Path(), err)
	}
	return manifest.Key(cacheSchema, d.canon.Fingerprint(), string(HashBytes(raw))), nil
}

func toManifest(h PathHashes) manifest.Manifest {
	m := make(manifest.Manifest, len(h))
	for p, hash := range h {
		m[p] = string(hash)
	}
	return m
}

func fromManifest(m manifest.Manifest) PathHashes {
	h := make(PathHashes, len(m))
	for p, hash := range m {
		h[p] = Hash(hash)
	}
	return h
}
