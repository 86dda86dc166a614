package image

import (
	stdimage "image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnhanceQuality(t *testing.T) {
	// Arrange
	src := filepath.Join(t.TempDir(), "page_01.png")
	img := imaging.New(120, 80, color.White)
	require.NoError(t, imaging.Save(img, src))
	ip := NewImageProcessor()

	// Act
	processed, err := ip.EnhanceQuality(src)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(filepath.Dir(src), "page_01_processed.png"), processed)
	out, err := imaging.Open(processed)
	require.NoError(t, err)
	assert.Equal(t, 240, out.Bounds().Dx(), "small pages are upscaled")
	assert.Equal(t, 160, out.Bounds().Dy())

	require.NoError(t, ip.Cleanup(processed))
	assert.NoFileExists(t, processed)
	assert.FileExists(t, src)
}

func TestEnhanceQuality_MissingFile(t *testing.T) {
	_, err := NewImageProcessor().EnhanceQuality(filepath.Join(t.TempDir(), "nope.png"))
	assert.Error(t, err)
}

func TestCleanup_LeavesOriginals(t *testing.T) {
	src := filepath.Join(t.TempDir(), "page_02.png")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0644))

	require.NoError(t, NewImageProcessor().Cleanup(src))
	assert.FileExists(t, src)
}

func TestIsProcessed(t *testing.T) {
	assert.True(t, IsProcessed("/a/b/page_01_processed.png"))
	assert.False(t, IsProcessed("/a/b_processed/page_01.png"))
}

func TestExpandBox(t *testing.T) {
	bounds := stdimage.Rect(0, 0, 100, 100)

	testCases := []struct {
		name     string
		box      stdimage.Rectangle
		ratio    float64
		expected stdimage.Rectangle
	}{
		{"ratio one", stdimage.Rect(10, 10, 50, 30), 1, stdimage.Rect(10, 10, 50, 30)},
		{"ratio two", stdimage.Rect(10, 10, 50, 30), 2, stdimage.Rect(0, 0, 60, 40)},
		{"clipped", stdimage.Rect(80, 90, 100, 100), 2, stdimage.Rect(75, 85, 100, 100)},
		{"empty", stdimage.Rectangle{}, 2, stdimage.Rectangle{}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, ExpandBox(tc.box, tc.ratio, bounds))
		})
	}
}

func TestIsImageFile(t *testing.T) {
	assert.True(t, IsImageFile("a.PNG"))
	assert.True(t, IsImageFile("a.jpeg"))
	assert.False(t, IsImageFile("a.pdf"))
	assert.False(t, IsImageFile("noext"))
}
