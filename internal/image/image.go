package image

import (
	"fmt"
	stdimage "image"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
)

const processedSuffix = "_processed"

type ImageProcessor struct {
	// MinSide is the smallest page side left alone; smaller pages are upscaled 2x.
	MinSide  int
	Contrast float64
	Sharpen  float64
}

func NewImageProcessor() *ImageProcessor {
	return &ImageProcessor{
		MinSide:  300,
		Contrast: 10,
		Sharpen:  1.1,
	}
}

// EnhanceQuality writes a grayscale, contrast-boosted copy of the page next to
// the original and returns its path. Callers remove it with Cleanup.
func (ip *ImageProcessor) EnhanceQuality(path string) (string, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening image %s: %w", path, err)
	}

	bounds := img.Bounds()
	if bounds.Dx() < ip.MinSide || bounds.Dy() < ip.MinSide {
		img = imaging.Resize(img, bounds.Dx()*2, bounds.Dy()*2, imaging.Lanczos)
	}

	gray := imaging.Grayscale(img)
	contrast := imaging.AdjustContrast(gray, ip.Contrast)
	sharp := imaging.Sharpen(contrast, ip.Sharpen)

	tempPath := ProcessedPath(path)
	if err := imaging.Save(sharp, tempPath); err != nil {
		return "", fmt.Errorf("saving processed image: %w", err)
	}
	return tempPath, nil
}

// Cleanup removes a file produced by EnhanceQuality. Originals are never removed.
func (ip *ImageProcessor) Cleanup(path string) error {
	if !IsProcessed(path) {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing %s: %w", path, err)
	}
	return nil
}

func ProcessedPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + processedSuffix + ext
}

func IsProcessed(path string) bool {
	base := filepath.Base(path)
	return strings.HasSuffix(strings.TrimSuffix(base, filepath.Ext(base)), processedSuffix)
}

// ExpandBox grows r around its centre. The height gains (ratio-1) times itself
// and the width the same absolute amount, which keeps short CJK lines from
// being clipped at the ends. The result is clipped to bounds.
func ExpandBox(r stdimage.Rectangle, ratio float64, bounds stdimage.Rectangle) stdimage.Rectangle {
	if ratio <= 1 || r.Empty() {
		return r.Intersect(bounds)
	}
	pad := int(math.Round(float64(r.Dy()) * (ratio - 1) / 2))
	grown := stdimage.Rect(r.Min.X-pad, r.Min.Y-pad, r.Max.X+pad, r.Max.Y+pad)
	return grown.Intersect(bounds)
}

// IsImageFile reports whether name has an extension the OCR stage reads.
func IsImageFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".jpg", ".jpeg", ".tif", ".tiff", ".bmp":
		return true
	}
	return false
}
