// Package archive reads and writes the zip containers that packaged
// application bundles ship as. Reading preserves central-directory order and
// supports multiple independent passes over the same archive; writing
// produces deterministic zips with fixed timestamps.
package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"path"
	"strings"
)

// FormatError reports a file that exists but cannot be read as a zip
// container. It is fatal: callers do not retry.
type FormatError struct {
	Path string
	Err  error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("archive %s: not a valid zip container: %v", e.Path, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// Entry is one entry of an opened archive. Content is read lazily; the entry
// stays valid until the owning Archive is closed.
type Entry struct {
	Path   string // archive-relative, forward-slash separated
	IsFile bool
	Size   int64 // uncompressed size

	file *zip.File
}

// Open returns a fresh reader over the entry's content. Each call re-decodes
// the compressed stream, so separate passes never share state.
func (e *Entry) Open() (io.ReadCloser, error) {
	if !e.IsFile {
		return nil, fmt.Errorf("archive entry %s: is a directory", e.Path)
	}
	rc, err := e.file.Open()
	if err != nil {
		return nil, fmt.Errorf("archive entry %s: %w", e.Path, err)
	}
	return rc, nil
}

// Bytes reads the entry's full content.
func (e *Entry) Bytes() ([]byte, error) {
	rc, err := e.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("archive entry %s: read: %w", e.Path, err)
	}
	return data, nil
}

// Archive is an opened zip container.
type Archive struct {
	path    string
	reader  *zip.ReadCloser
	entries []Entry
	byPath  map[string]*Entry
}

// Open opens a zip archive for reading. A missing or malformed file yields a
// *FormatError.
func Open(archivePath string) (*Archive, error) {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, &FormatError{Path: archivePath, Err: err}
	}

	a := &Archive{
		path:    archivePath,
		reader:  reader,
		entries: make([]Entry, 0, len(reader.File)),
		byPath:  make(map[string]*Entry, len(reader.File)),
	}
	for _, f := range reader.File {
		name := path.Clean(strings.TrimSuffix(f.Name, "/"))
		isDir := f.FileInfo().IsDir()
		a.entries = append(a.entries, Entry{
			Path:   name,
			IsFile: !isDir,
			Size:   int64(f.UncompressedSize64),
			file:   f,
		})
	}
	for i := range a.entries {
		a.byPath[a.entries[i].Path] = &a.entries[i]
	}
	return a, nil
}

// Path returns the filesystem path the archive was opened from.
func (a *Archive) Path() string { return a.path }

// Close releases the underlying reader. Entries must not be used afterwards.
func (a *Archive) Close() error {
	return a.reader.Close()
}

// Entries returns every entry in central-directory order.
func (a *Archive) Entries() []Entry {
	return a.entries
}

// Entry looks up a single entry by its archive-relative path.
func (a *Archive) Entry(entryPath string) (*Entry, bool) {
	e, ok := a.byPath[entryPath]
	return e, ok
}

// ReadFile reads the content of one named entry.
func (a *Archive) ReadFile(entryPath string) ([]byte, error) {
	e, ok := a.byPath[entryPath]
	if !ok {
		return nil, fmt.Errorf("archive %s: no entry %s", a.path, entryPath)
	}
	return e.Bytes()
}
