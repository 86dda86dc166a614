package writer

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
)

const OutputSuffix = "_ocr.txt"

// OutputName is the text file name for a document stem.
func OutputName(stem string) string {
	return stem + OutputSuffix
}

// WriteText writes one line per recognised region. Zero lines still produce an
// (empty) file so every document has an output.
func WriteText(path string, lines []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".ocr-*.tmp")
	if err != nil {
		return fmt.Errorf("creating text file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	for _, line := range lines {
		if _, err := w.WriteString(line + "\n"); err != nil {
			tmp.Close()
			return fmt.Errorf("writing text file: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("writing text file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing text file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("setting text file mode: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("moving text file into place: %w", err)
	}
	return nil
}

// TextBytes renders lines the same way WriteText does.
func TextBytes(lines []string) []byte {
	size := 0
	for _, l := range lines {
		size += len(l) + 1
	}
	buf := make([]byte, 0, size)
	for _, l := range lines {
		buf = append(buf, l...)
		buf = append(buf, '\n')
	}
	return buf
}
