// Package raster turns PDF pages into bitmap images. Rendering itself is left
// to MuPDF (through go-fitz) or to poppler's pdftoppm helper.
package raster

import (
	"context"
	"image"

	"github.com/onkej/ocr-playground/internal/config"
)

// Document is an opened PDF. Pages are numbered from 1.
type Document interface {
	PageCount() int
	Render(ctx context.Context, page int, dpi int) (image.Image, error)
	Close() error
}

type Opener interface {
	Name() string
	Open(ctx context.Context, pdfPath string) (Document, error)
}

func New(cfg *config.Config) Opener {
	if cfg.Renderer == config.RendererPoppler {
		return NewPoppler(cfg.PopplerPath)
	}
	return NewFitz()
}
