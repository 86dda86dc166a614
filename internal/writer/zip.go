package writer

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

const ArchiveName = "ocr_output.zip"

// ArchiveEntry is either a file on disk (Path) or in-memory content (Data).
type ArchiveEntry struct {
	Name string
	Path string
	Data []byte
}

// WriteArchive deflates entries into w in the given order.
func WriteArchive(w io.Writer, entries []ArchiveEntry) error {
	zw := zip.NewWriter(w)
	for _, entry := range entries {
		if err := addEntry(zw, entry); err != nil {
			zw.Close()
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalising archive: %w", err)
	}
	return nil
}

// WriteArchiveFile writes the archive to path.
func WriteArchiveFile(path string, entries []ArchiveEntry) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating archive directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating archive %s: %w", path, err)
	}
	if err := WriteArchive(f, entries); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func addEntry(zw *zip.Writer, entry ArchiveEntry) error {
	header := &zip.FileHeader{
		Name:   entry.Name,
		Method: zip.Deflate,
	}
	header.Modified = time.Now()

	var src io.Reader
	if entry.Path != "" {
		f, err := os.Open(entry.Path)
		if err != nil {
			return fmt.Errorf("opening %s: %w", entry.Path, err)
		}
		defer f.Close()
		if info, err := f.Stat(); err == nil {
			header.Modified = info.ModTime()
		}
		src = f
	} else {
		src = bytes.NewReader(entry.Data)
	}

	dst, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("adding %s to archive: %w", entry.Name, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("writing %s to archive: %w", entry.Name, err)
	}
	return nil
}
