package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/onkej/ocr-playground/internal/image"
	"github.com/onkej/ocr-playground/internal/logger"
	"github.com/onkej/ocr-playground/internal/raster"
	"github.com/onkej/ocr-playground/internal/text"
	"github.com/onkej/ocr-playground/internal/writer"
)

func walkFiles(ctx context.Context, files []string, results chan<- string) {
	for _, file := range files {
		logger.DebugLog("[walkFiles]: sending file %s", file)
		select {
		case results <- file:
		case <-ctx.Done():
			logger.DebugLog("[walkFiles]: context done while sending file %s", file)
			return
		}
	}
}

// listDocumentDirs returns the per-document image directories, in name order.
func listDocumentDirs(imagesDir string) ([]string, error) {
	entries, err := os.ReadDir(imagesDir)
	if err != nil {
		return nil, fmt.Errorf("reading directory %s: %w", imagesDir, err)
	}

	var dirs []string
	for _, entry := range entries {
		if entry.IsDir() {
			dirs = append(dirs, filepath.Join(imagesDir, entry.Name()))
		}
	}
	return dirs, nil
}

// listPageImages returns the page images of one document, sorted by name so
// the zero-padded page numbers keep page order.
func listPageImages(docDir string) ([]string, error) {
	entries, err := os.ReadDir(docDir)
	if err != nil {
		return nil, fmt.Errorf("reading directory %s: %w", docDir, err)
	}

	var pages []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || image.IsProcessed(name) || !image.IsImageFile(name) {
			continue
		}
		pages = append(pages, filepath.Join(docDir, name))
	}
	return pages, nil
}

// claimStems keeps the first PDF for each output stem. Later PDFs with the same
// stem (a.pdf next to a.PDF) would overwrite its page images and text file, so
// they are recorded as failures instead. Stems compare case-insensitively to
// match case-insensitive filesystems.
func claimStems(c *Clients, pdfs []string, results *writeResult[text.DocumentResult]) []string {
	owners := make(map[string]string, len(pdfs))
	kept := make([]string, 0, len(pdfs))
	for _, pdf := range pdfs {
		stem := raster.Stem(pdf)
		key := strings.ToLower(stem)
		if owner, ok := owners[key]; ok {
			err := fmt.Errorf("output %s already claimed by %s", writer.OutputName(stem), filepath.Base(owner))
			c.progress.Error(pdf, err)
			results.addFailure(pdf, err)
			continue
		}
		owners[key] = pdf
		kept = append(kept, pdf)
	}
	return kept
}
