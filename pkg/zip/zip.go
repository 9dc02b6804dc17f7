// Package zip bundles files from disk into a single zip archive.
package zip

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
)

// Entry names a file on disk and the path it gets inside the archive.
type Entry struct {
	Name string
	Path string
}

// Archive streams every entry into w. Files keep their modification time.
func Archive(w io.Writer, entries []Entry) error {
	zw := zip.NewWriter(w)
	for _, e := range entries {
		if err := addFile(zw, e); err != nil {
			_ = zw.Close()
			return err
		}
	}
	return zw.Close()
}

func addFile(zw *zip.Writer, e Entry) error {
	f, err := os.Open(e.Path)
	if err != nil {
		return fmt.Errorf("zip: open %s: %w", e.Path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("zip: stat %s: %w", e.Path, err)
	}
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("zip: header %s: %w", e.Path, err)
	}
	hdr.Name = e.Name
	hdr.Method = zip.Deflate

	dst, err := zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("zip: add %s: %w", e.Name, err)
	}
	if _, err := io.Copy(dst, f); err != nil {
		return fmt.Errorf("zip: write %s: %w", e.Name, err)
	}
	return nil
}
