package raster

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/gen2brain/go-fitz"
)

type FitzRasterizer struct{}

func NewFitz() *FitzRasterizer {
	return &FitzRasterizer{}
}

func (f *FitzRasterizer) Name() string { return "fitz" }

func (f *FitzRasterizer) Open(ctx context.Context, pdfPath string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := fitz.New(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("opening PDF %s: %w", pdfPath, err)
	}
	return &fitzDocument{doc: doc, path: pdfPath}, nil
}

// fitzDocument serialises access; a MuPDF context is not safe for concurrent use.
type fitzDocument struct {
	mu   sync.Mutex
	doc  *fitz.Document
	path string
}

func (d *fitzDocument) PageCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.doc.NumPage()
}

func (d *fitzDocument) Render(ctx context.Context, page int, dpi int) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if page < 1 || page > d.doc.NumPage() {
		return nil, fmt.Errorf("page %d out of range for %s (%d pages)", page, d.path, d.doc.NumPage())
	}
	img, err := d.doc.ImageDPI(page-1, float64(dpi))
	if err != nil {
		return nil, fmt.Errorf("rendering page %d of %s: %w", page, d.path, err)
	}
	return img, nil
}

func (d *fitzDocument) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.doc.Close()
}
