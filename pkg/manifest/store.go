package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// Store reads and writes manifests under a cache root. Writes are atomic:
// payloads land in a temp file and are renamed into place, so a concurrent
// reader never sees a partial manifest.
type Store struct {
	root string
}

// NewStore creates a Store rooted at dir. Fan-out directories are created
// lazily on first write.
func NewStore(dir string) *Store {
	return &Store{root: dir}
}

func (s *Store) manifestPath(key string) (string, error) {
	if len(key) < 3 {
		return "", fmt.Errorf("manifest key %q too short", key)
	}
	return filepath.Join(s.root, key[:2], key[2:]), nil
}

// Has reports whether the store contains a manifest for key.
func (s *Store) Has(key string) bool {
	path, err := s.manifestPath(key)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// Save stores a manifest under key, zstd-compressed.
func (s *Store) Save(key string, m Manifest) error {
	path, err := s.manifestPath(key)
	if err != nil {
		return fmt.Errorf("manifest save: %w", err)
	}

	payload, err := compressZstd(Marshal(m))
	if err != nil {
		return fmt.Errorf("manifest save compress: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("manifest save mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("manifest save tmpfile: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("manifest save: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("manifest save close: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("manifest save rename: %w", err)
	}
	return nil
}

// Load retrieves the manifest stored under key. Missing keys return an error
// satisfying errors.Is(err, ErrNotCached).
func (s *Store) Load(key string) (Manifest, error) {
	path, err := s.manifestPath(key)
	if err != nil {
		return nil, fmt.Errorf("manifest load: %w", err)
	}

	payload, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("manifest load %s: %w", key, ErrNotCached)
	}
	if err != nil {
		return nil, fmt.Errorf("manifest load %s: %w", key, err)
	}

	raw, err := decompressZstd(payload)
	if err != nil {
		return nil, fmt.Errorf("manifest load %s: %w", key, err)
	}
	m, err := Unmarshal(raw)
	if err != nil {
		return nil, fmt.Errorf("manifest load %s: %w", key, err)
	}
	return m, nil
}

func compressZstd(data []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(data, nil), nil
}

func decompressZstd(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(data, nil)
}
