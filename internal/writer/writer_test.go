package writer

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onkej/ocr-playground/internal/text"
)

func TestCSVWriter_AppendMode(t *testing.T) {
	// Arrange
	tempDir := t.TempDir()
	outputPath := filepath.Join(tempDir, "report.csv")
	writer := NewCSVWriter(text.MapCSVRecord, text.GetCSVHeader)
	defer writer.Close()

	data1 := []text.DocumentResult{{Document: "pdfs/henan.pdf", Pages: 3, Lines: 40, Output: "output/henan_ocr.txt"}}
	data2 := []text.DocumentResult{{Document: "pdfs/hubei.pdf", Pages: 5, Lines: 61, Output: "output/hubei_ocr.txt"}}

	// Act
	err1 := writer.Append(data1, outputPath)
	err2 := writer.Append(data2, outputPath)

	// Assert
	require.NoError(t, err1)
	require.NoError(t, err2)

	records := readCSVFile(t, outputPath)
	require.Len(t, records, 3, "header + 2 data rows")
	assert.Equal(t, text.GetCSVHeader(), records[0])
	assert.Equal(t, "pdfs/henan.pdf", records[1][0])
	assert.Equal(t, "pdfs/hubei.pdf", records[2][0])
}

func TestCSVWriter_ReplaceMode(t *testing.T) {
	// Arrange
	outputPath := filepath.Join(t.TempDir(), "report.csv")
	writer := NewCSVWriter(text.MapCSVRecord, text.GetCSVHeader)
	defer writer.Close()

	// Act
	err1 := writer.Append([]text.DocumentResult{{Document: "original.pdf"}}, outputPath)
	err2 := writer.Replace([]text.DocumentResult{{Document: "replaced.pdf"}}, outputPath)

	// Assert
	require.NoError(t, err1)
	require.NoError(t, err2)

	records := readCSVFile(t, outputPath)
	require.Len(t, records, 2)
	assert.Equal(t, "replaced.pdf", records[1][0])
}

func TestCSVWriter_ExistingFileIsTruncatedOnFirstWrite(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "report.csv")
	require.NoError(t, os.WriteFile(outputPath, []byte("stale,row\n"), 0644))
	writer := NewCSVWriter(text.MapCSVRecord, text.GetCSVHeader)
	defer writer.Close()

	require.NoError(t, writer.Append([]text.DocumentResult{{Document: "a.pdf"}}, outputPath))

	records := readCSVFile(t, outputPath)
	require.Len(t, records, 2)
	assert.Equal(t, text.GetCSVHeader(), records[0])
}

func TestCSVWriter_ConcurrentWrites(t *testing.T) {
	// Arrange
	outputPath := filepath.Join(t.TempDir(), "report.csv")
	writer := NewCSVWriter(text.MapCSVRecord, text.GetCSVHeader)
	defer writer.Close()

	numGoroutines := 5
	var wg sync.WaitGroup

	// Act
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			row := []text.DocumentResult{{Document: fmt.Sprintf("doc_%d.pdf", id), Pages: id}}
			if err := writer.Append(row, outputPath); err != nil {
				t.Errorf("Goroutine %d failed: %v", id, err)
			}
		}(i)
	}
	wg.Wait()

	// Assert
	records := readCSVFile(t, outputPath)
	assert.Len(t, records, 1+numGoroutines)
}

func TestCSVWriter_EmptyDataWritesHeaderOnly(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "report.csv")
	writer := NewCSVWriter(text.MapCSVRecord, text.GetCSVHeader)
	defer writer.Close()

	require.NoError(t, writer.Append(nil, outputPath))

	records := readCSVFile(t, outputPath)
	assert.Len(t, records, 1)
}

func TestCSVWriter_ClosedWriterRejects(t *testing.T) {
	writer := NewCSVWriter(text.MapCSVRecord, text.GetCSVHeader)
	writer.Close()

	err := writer.Append([]text.DocumentResult{{Document: "a.pdf"}}, filepath.Join(t.TempDir(), "r.csv"))
	assert.Error(t, err)
}

func TestWriteText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", OutputName("henan"))

	require.NoError(t, WriteText(path, []string{"一般公共预算", "收入合计"}))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "一般公共预算\n收入合计\n", string(content))
	assert.Equal(t, "henan_ocr.txt", filepath.Base(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0644), info.Mode().Perm())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestWriteText_EmptyDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), OutputName("blank"))

	require.NoError(t, WriteText(path, nil))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Zero(t, info.Size())
	assert.Equal(t, "a\nb\n", string(TextBytes([]string{"a", "b"})))
	assert.Empty(t, TextBytes(nil))
}

func TestWriteArchive(t *testing.T) {
	// Arrange
	onDisk := filepath.Join(t.TempDir(), "hubei_ocr.txt")
	require.NoError(t, os.WriteFile(onDisk, []byte("湖北\n"), 0644))
	entries := []ArchiveEntry{
		{Name: "henan_ocr.txt", Data: []byte("河南\n")},
		{Name: "hubei_ocr.txt", Path: onDisk},
	}
	var buf bytes.Buffer

	// Act
	require.NoError(t, WriteArchive(&buf, entries))

	// Assert
	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.Len(t, zr.File, 2)
	got := map[string]string{}
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		b, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		got[f.Name] = string(b)
	}
	assert.Equal(t, map[string]string{"henan_ocr.txt": "河南\n", "hubei_ocr.txt": "湖北\n"}, got)
}

func TestWriteArchiveFile_MissingSource(t *testing.T) {
	err := WriteArchiveFile(filepath.Join(t.TempDir(), ArchiveName), []ArchiveEntry{{Name: "x", Path: "/does/not/exist"}})
	assert.Error(t, err)
}

// Helper functions
func readCSVFile(t *testing.T, path string) [][]string {
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("failed to open CSV file: %v", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	records, err := reader.ReadAll()
	if err != nil {
		t.Fatalf("failed to read CSV: %v", err)
	}
	return records
}
