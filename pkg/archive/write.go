package archive

import (
	"archive/zip"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// fixedZipTime keeps written archives byte-for-byte reproducible
// (1980-01-01 UTC, the zip epoch).
var fixedZipTime = time.Unix(315532800, 0).UTC()

// File is one entry to be written into a new archive.
type File struct {
	Path string
	Data []byte
	Mode fs.FileMode
}

// Create writes a new zip archive containing the given files, in order, with
// fixed timestamps. The destination is written atomically via temp + rename.
func Create(zipPath string, files []File) error {
	tmp, err := os.CreateTemp(filepath.Dir(zipPath), ".zip-tmp-*")
	if err != nil {
		return fmt.Errorf("archive create: tmpfile: %w", err)
	}
	tmpName := tmp.Name()

	zw := zip.NewWriter(tmp)
	for _, f := range files {
		if err := writeEntry(zw, f); err != nil {
			zw.Close()
			tmp.Close()
			os.Remove(tmpName)
			return fmt.Errorf("archive create %s: %w", zipPath, err)
		}
	}
	if err := zw.Close(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("archive create %s: close: %w", zipPath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("archive create %s: close: %w", zipPath, err)
	}
	if err := os.Rename(tmpName, zipPath); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("archive create %s: rename: %w", zipPath, err)
	}
	return nil
}

// CreateFromDir zips the contents of dir (recursively, paths relative to dir)
// into a new archive at zipPath.
func CreateFromDir(zipPath, dir string) error {
	var files []File
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		files = append(files, File{
			Path: filepath.ToSlash(rel),
			Data: data,
			Mode: info.Mode().Perm(),
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("archive create from dir %s: %w", dir, err)
	}
	return Create(zipPath, files)
}

func writeEntry(zw *zip.Writer, f File) error {
	mode := f.Mode
	if mode == 0 {
		mode = 0o644
	}
	hdr := &zip.FileHeader{Name: f.Path, Method: zip.Deflate}
	hdr.SetMode(mode)
	hdr.Modified = fixedZipTime

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("entry %s: %w", f.Path, err)
	}
	if _, err := w.Write(f.Data); err != nil {
		return fmt.Errorf("entry %s: write: %w", f.Path, err)
	}
	return nil
}
