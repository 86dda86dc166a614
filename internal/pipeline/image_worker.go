package pipeline

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/onkej/ocr-playground/internal/image"
	"github.com/onkej/ocr-playground/internal/logger"
	"github.com/onkej/ocr-playground/internal/ocr"
	"github.com/onkej/ocr-playground/internal/raster"
)

// rasterizeDocument renders pdfPath into <imagesDir>/<stem>/ and reports
// per-page progress.
func rasterizeDocument(ctx context.Context, c *Clients, pdfPath string) ([]string, error) {
	return rasterizeInto(ctx, c, pdfPath, c.cfg.ImagesDir)
}

func rasterizeInto(ctx context.Context, c *Clients, pdfPath, imagesDir string) ([]string, error) {
	name := filepath.Base(pdfPath)
	logger.DebugLog("[rasterize]: converting %s with %s", pdfPath, c.raster.Name())

	pages, err := raster.ConvertDocument(ctx, c.raster, pdfPath, imagesDir, raster.ConvertOptions{
		DPI:     c.cfg.DPI,
		Ext:     c.cfg.ImageExt(),
		OnStart: func(total int) { c.progress.Start(name, "Converting", total) },
		OnPage:  func(done, total int) { c.progress.Step(name, done, total) },
	})
	if err != nil {
		return nil, fmt.Errorf("converting %s: %w", pdfPath, err)
	}
	return pages, nil
}

// enhancingEngine preprocesses each page before handing it to the wrapped
// engine and removes the temporary copy afterwards.
type enhancingEngine struct {
	ocr.OCREngine
	proc *image.ImageProcessor
}

func (e enhancingEngine) Recognize(ctx context.Context, imagePath string) ([]ocr.Line, error) {
	processed, err := e.proc.EnhanceQuality(imagePath)
	if err != nil {
		return nil, fmt.Errorf("preprocessing image %s: %w", imagePath, err)
	}
	defer func() {
		if err := e.proc.Cleanup(processed); err != nil {
			logger.DebugLog("[enhance]: error cleaning up %s: %v", processed, err)
		}
	}()
	return e.OCREngine.Recognize(ctx, processed)
}

func (c *Clients) ocrEngine() ocr.OCREngine {
	if c.image == nil {
		return c.engine
	}
	return enhancingEngine{OCREngine: c.engine, proc: c.image}
}
