package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/onkej/ocr-playground/internal/logger"
	"github.com/onkej/ocr-playground/internal/ocr"
	"github.com/onkej/ocr-playground/internal/raster"
	"github.com/onkej/ocr-playground/internal/state"
	"github.com/onkej/ocr-playground/internal/text"
	"github.com/onkej/ocr-playground/internal/writer"
)

func processDocuments(ctx context.Context, c *Clients, files <-chan string, results chan<- result[text.DocumentResult]) {
	for pdf := range files {
		if ctx.Err() != nil {
			logger.DebugLog("[processDocuments]: context cancelled")
			return
		}

		res := processDocument(ctx, c, pdf)
		select {
		case results <- res:
		case <-ctx.Done():
			logger.DebugLog("[processDocuments]: context done while sending result for %s", pdf)
			return
		}
	}
}

// processDocument takes one PDF through rasterization, OCR and output.
func processDocument(ctx context.Context, c *Clients, pdfPath string) result[text.DocumentResult] {
	start := time.Now()
	cfg := c.cfg
	stem := raster.Stem(pdfPath)
	fail := func(err error) result[text.DocumentResult] {
		return result[text.DocumentResult]{path: pdfPath, err: err}
	}

	output := filepath.Join(cfg.OutputDir, writer.OutputName(stem))
	var key string
	if c.ledger != nil {
		digest, err := state.Digest(pdfPath)
		if err != nil {
			return fail(err)
		}
		key = state.Key(pdfPath, digest)
		entry, done, err := c.ledger.Done(key, output)
		if err != nil {
			return fail(err)
		}
		if done {
			logger.DebugLog("[processDocument]: %s unchanged since %s, skipping", pdfPath, entry.Processed)
			return result[text.DocumentResult]{path: pdfPath, data: text.DocumentResult{
				Document: pdfPath,
				Pages:    entry.Pages,
				Lines:    entry.Lines,
				Output:   entry.Output,
				Skipped:  true,
			}}
		}
	}

	pages, err := rasterizeDocument(ctx, c, pdfPath)
	if err != nil {
		return fail(err)
	}

	lines, err := recognizePages(ctx, c, filepath.Base(pdfPath), pages)
	if err != nil {
		return fail(err)
	}

	if _, err := writeDocument(c, stem, lines); err != nil {
		return fail(err)
	}

	if !cfg.KeepImages {
		docDir := filepath.Join(cfg.ImagesDir, stem)
		if err := os.RemoveAll(docDir); err != nil {
			logger.DebugLog("[processDocument]: error removing %s: %v", docDir, err)
		}
	}

	res := text.DocumentResult{
		Document: pdfPath,
		Pages:    len(pages),
		Lines:    len(lines),
		Output:   output,
		Duration: time.Since(start),
	}

	if c.ledger != nil {
		err := c.ledger.Record(key, state.Entry{
			Document:  pdfPath,
			Output:    output,
			Lines:     res.Lines,
			Pages:     res.Pages,
			Processed: time.Now(),
		})
		if err != nil {
			logger.DebugLog("[processDocument]: error recording %s: %v", pdfPath, err)
		}
	}
	return result[text.DocumentResult]{path: pdfPath, data: res}
}

// recognizeDirectory OCRs an already rasterized document directory.
func recognizeDirectory(ctx context.Context, c *Clients, docDir string) result[text.DocumentResult] {
	start := time.Now()
	stem := filepath.Base(docDir)

	pages, err := listPageImages(docDir)
	if err != nil {
		return result[text.DocumentResult]{path: docDir, err: err}
	}

	lines, err := recognizePages(ctx, c, stem, pages)
	if err != nil {
		return result[text.DocumentResult]{path: docDir, err: err}
	}

	output, err := writeDocument(c, stem, lines)
	if err != nil {
		return result[text.DocumentResult]{path: docDir, err: err}
	}

	return result[text.DocumentResult]{path: docDir, data: text.DocumentResult{
		Document: docDir,
		Pages:    len(pages),
		Lines:    len(lines),
		Output:   output,
		Duration: time.Since(start),
	}}
}

func recognizePages(ctx context.Context, c *Clients, name string, pages []string) ([]string, error) {
	c.progress.Start(name, "OCR", len(pages))
	lines, err := ocr.RecognizeDocument(ctx, c.ocrEngine(), pages, func(done, total int) {
		c.progress.Step(name, done, total)
	})
	if err != nil {
		return nil, fmt.Errorf("ocr %s: %w", name, err)
	}
	return ocr.Texts(lines), nil
}
