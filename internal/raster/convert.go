package raster

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/onkej/ocr-playground/internal/logger"
)

type ConvertOptions struct {
	DPI int
	Ext string // png or jpg
	// OnStart receives the page count once the document is open.
	OnStart func(total int)
	// OnPage is called after each page is saved.
	OnPage func(done, total int)
}

// PadWidth is the number of digits used for page numbers: two below 100 pages,
// otherwise as many as the page count needs.
func PadWidth(total int) int {
	if total < 100 {
		return 2
	}
	return len(strconv.Itoa(total))
}

// PageName builds <stem>_<page>.<ext> with the page zero padded.
func PageName(stem string, page, total int, ext string) string {
	return fmt.Sprintf("%s_%0*d.%s", stem, PadWidth(total), page, ext)
}

func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func IsPDF(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".pdf")
}

// ListPDFs returns the PDFs directly under dir in name order.
func ListPDFs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading directory %s: %w", dir, err)
	}

	var pdfs []string
	for _, entry := range entries {
		if entry.IsDir() || !IsPDF(entry.Name()) {
			continue
		}
		pdfs = append(pdfs, filepath.Join(dir, entry.Name()))
	}
	return pdfs, nil
}

// ConvertDocument renders every page of pdfPath into imagesDir/<stem>/ and
// returns the image paths in page order. Pages left from an earlier conversion
// are removed first. The document directory is created even for a page-less PDF
// so the OCR stage still emits an (empty) output for it.
func ConvertDocument(ctx context.Context, opener Opener, pdfPath, imagesDir string, opts ConvertOptions) ([]string, error) {
	stem := Stem(pdfPath)
	docDir := filepath.Join(imagesDir, stem)
	if err := os.RemoveAll(docDir); err != nil {
		return nil, fmt.Errorf("clearing image directory %s: %w", docDir, err)
	}
	if err := os.MkdirAll(docDir, 0755); err != nil {
		return nil, fmt.Errorf("creating image directory %s: %w", docDir, err)
	}

	doc, err := opener.Open(ctx, pdfPath)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	ext := opts.Ext
	if ext == "" {
		ext = "png"
	}

	total := doc.PageCount()
	if opts.OnStart != nil {
		opts.OnStart(total)
	}
	paths := make([]string, 0, total)
	for page := 1; page <= total; page++ {
		if err := ctx.Err(); err != nil {
			return paths, err
		}

		img, err := doc.Render(ctx, page, opts.DPI)
		if err != nil {
			return paths, err
		}

		imgPath := filepath.Join(docDir, PageName(stem, page, total, ext))
		if err := imaging.Save(img, imgPath); err != nil {
			return paths, fmt.Errorf("saving page image %s: %w", imgPath, err)
		}
		paths = append(paths, imgPath)
		logger.DebugLog("[convert]: saved %s (%d/%d)", imgPath, page, total)

		if opts.OnPage != nil {
			opts.OnPage(page, total)
		}
	}
	return paths, nil
}
