package raster

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onkej/ocr-playground/internal/config"
)

type fakeOpener struct {
	pages   map[string]int
	failOn  int
	opened  []string
	renders int
}

func (f *fakeOpener) Name() string { return "fake" }

func (f *fakeOpener) Open(ctx context.Context, pdfPath string) (Document, error) {
	f.opened = append(f.opened, pdfPath)
	n, ok := f.pages[filepath.Base(pdfPath)]
	if !ok {
		return nil, fmt.Errorf("opening PDF %s: not a PDF", pdfPath)
	}
	return &fakeDocument{opener: f, pages: n}, nil
}

type fakeDocument struct {
	opener *fakeOpener
	pages  int
	closed bool
}

func (d *fakeDocument) PageCount() int { return d.pages }

func (d *fakeDocument) Render(ctx context.Context, page int, dpi int) (image.Image, error) {
	if d.opener.failOn == page {
		return nil, fmt.Errorf("rendering page %d: broken", page)
	}
	d.opener.renders++
	img := image.NewGray(image.Rect(0, 0, 8, 8))
	img.Set(page%8, 0, color.White)
	return img, nil
}

func (d *fakeDocument) Close() error {
	d.closed = true
	return nil
}

func TestPadWidth(t *testing.T) {
	testCases := []struct {
		total    int
		expected int
	}{
		{0, 2},
		{1, 2},
		{99, 2},
		{100, 3},
		{999, 3},
		{1000, 4},
	}

	for _, tc := range testCases {
		t.Run(fmt.Sprintf("total=%d", tc.total), func(t *testing.T) {
			assert.Equal(t, tc.expected, PadWidth(tc.total))
		})
	}
}

func TestPageName(t *testing.T) {
	assert.Equal(t, "henan_01.png", PageName("henan", 1, 12, "png"))
	assert.Equal(t, "henan_012.jpg", PageName("henan", 12, 150, "jpg"))
	assert.Equal(t, "henan_100.png", PageName("henan", 100, 100, "png"))
}

func TestStemAndIsPDF(t *testing.T) {
	assert.Equal(t, "report.v2", Stem("/tmp/in/report.v2.pdf"))
	assert.True(t, IsPDF("A.PDF"))
	assert.False(t, IsPDF("a.pdf.txt"))
}

func TestListPDFs(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.pdf", "a.PDF", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.pdf"), 0755))

	pdfs, err := ListPDFs(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.PDF"), filepath.Join(dir, "b.pdf")}, pdfs)

	_, err = ListPDFs(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestConvertDocument(t *testing.T) {
	// Arrange
	imagesDir := t.TempDir()
	opener := &fakeOpener{pages: map[string]int{"guangdong.pdf": 3}}
	var progress []int

	// Act
	paths, err := ConvertDocument(context.Background(), opener, "/in/guangdong.pdf", imagesDir, ConvertOptions{
		DPI:    300,
		Ext:    "png",
		OnPage: func(done, total int) { progress = append(progress, done) },
	})

	// Assert
	require.NoError(t, err)
	expected := []string{
		filepath.Join(imagesDir, "guangdong", "guangdong_01.png"),
		filepath.Join(imagesDir, "guangdong", "guangdong_02.png"),
		filepath.Join(imagesDir, "guangdong", "guangdong_03.png"),
	}
	assert.Equal(t, expected, paths)
	for _, p := range expected {
		assert.FileExists(t, p)
	}
	assert.Equal(t, []int{1, 2, 3}, progress)
}

func TestConvertDocument_RemovesStalePages(t *testing.T) {
	// Arrange
	imagesDir := t.TempDir()
	docDir := filepath.Join(imagesDir, "report")
	require.NoError(t, os.MkdirAll(docDir, 0755))
	stale := filepath.Join(docDir, "report_03.png")
	require.NoError(t, os.WriteFile(stale, []byte("old page"), 0644))
	opener := &fakeOpener{pages: map[string]int{"report.pdf": 2}}

	// Act
	paths, err := ConvertDocument(context.Background(), opener, "report.pdf", imagesDir, ConvertOptions{DPI: 72, Ext: "png"})

	// Assert
	require.NoError(t, err)
	assert.Len(t, paths, 2)
	assert.NoFileExists(t, stale)
	entries, err := os.ReadDir(docDir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestConvertDocument_ZeroPagesStillCreatesDirectory(t *testing.T) {
	imagesDir := t.TempDir()
	opener := &fakeOpener{pages: map[string]int{"empty.pdf": 0}}

	paths, err := ConvertDocument(context.Background(), opener, "empty.pdf", imagesDir, ConvertOptions{DPI: 72})

	require.NoError(t, err)
	assert.Empty(t, paths)
	assert.DirExists(t, filepath.Join(imagesDir, "empty"))
}

func TestConvertDocument_RenderErrorPropagates(t *testing.T) {
	opener := &fakeOpener{pages: map[string]int{"x.pdf": 3}, failOn: 2}

	paths, err := ConvertDocument(context.Background(), opener, "x.pdf", t.TempDir(), ConvertOptions{DPI: 72})

	assert.Error(t, err)
	assert.Len(t, paths, 1)
}

func TestConvertDocument_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	opener := &fakeOpener{pages: map[string]int{"x.pdf": 3}}

	_, err := ConvertDocument(ctx, opener, "x.pdf", t.TempDir(), ConvertOptions{DPI: 72})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, opener.renders)
}

func TestFitz_CorruptPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.pdf")
	require.NoError(t, os.WriteFile(path, []byte("this is not a pdf"), 0644))

	_, err := NewFitz().Open(context.Background(), path)
	assert.Error(t, err)
}

func TestPoppler_ToolPath(t *testing.T) {
	assert.Equal(t, filepath.Join("/opt/poppler/bin", "pdftoppm"), NewPoppler("/opt/poppler/bin").Tool("pdftoppm"))
	assert.Equal(t, "pdfinfo", NewPoppler("").Tool("pdfinfo"))

	err := NewPoppler(t.TempDir()).Available()
	assert.Error(t, err)
}

func TestParsePdfinfoPages(t *testing.T) {
	output := []byte("Title:          budget\nPages:          42\nEncrypted:      no\n")
	n, err := parsePdfinfoPages(output)
	require.NoError(t, err)
	assert.Equal(t, 42, n)

	_, err = parsePdfinfoPages([]byte("Title: x\n"))
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	cfg := config.Default()
	assert.Equal(t, "fitz", New(cfg).Name())
	cfg.Renderer = config.RendererPoppler
	assert.Equal(t, "poppler", New(cfg).Name())
}
