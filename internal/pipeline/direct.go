package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/onkej/ocr-playground/internal/logger"
	"github.com/onkej/ocr-playground/internal/raster"
	"github.com/onkej/ocr-playground/internal/text"
)

// ProcessPDF recognises a PDF read from r without keeping page images. name is
// the uploaded file name and only used for its stem and progress labels.
func ProcessPDF(ctx context.Context, c *Clients, name string, r io.Reader) ([]string, error) {
	lines, _, err := processPDF(ctx, c, name, r)
	return lines, err
}

// processPDF is ProcessPDF that also reports how many pages were rendered.
func processPDF(ctx context.Context, c *Clients, name string, r io.Reader) ([]string, int, error) {
	workDir, err := os.MkdirTemp("", "ocr-direct-*")
	if err != nil {
		return nil, 0, fmt.Errorf("creating work directory: %w", err)
	}
	defer os.RemoveAll(workDir)

	pdfPath := filepath.Join(workDir, filepath.Base(name))
	f, err := os.Create(pdfPath)
	if err != nil {
		return nil, 0, fmt.Errorf("creating %s: %w", pdfPath, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("storing %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return nil, 0, fmt.Errorf("storing %s: %w", name, err)
	}

	pages, err := rasterizeInto(ctx, c, pdfPath, filepath.Join(workDir, "pages"))
	if err != nil {
		return nil, 0, err
	}
	logger.DebugLog("[ProcessPDF]: %s rendered to %d pages", name, len(pages))

	lines, err := recognizePages(ctx, c, filepath.Base(name), pages)
	if err != nil {
		return nil, 0, err
	}
	return lines, len(pages), nil
}

// DirectStage recognises every PDF in pdf_dir straight to text, without
// leaving page images behind.
func DirectStage(ctx context.Context, c *Clients) (*Summary, error) {
	cfg := c.cfg
	pdfs, err := raster.ListPDFs(cfg.PDFDir)
	if err != nil {
		return nil, err
	}
	results := newWriteResult[text.DocumentResult]()
	if len(pdfs) == 0 {
		warnEmpty(c, fmt.Sprintf("no PDF files found in %s", cfg.PDFDir))
		return newSummary(results), nil
	}
	pdfs = claimStems(c, pdfs, results)

	docChan := make(chan result[text.DocumentResult])
	go func() {
		defer close(docChan)
		for _, pdf := range pdfs {
			res := processDirect(ctx, c, pdf)
			select {
			case docChan <- res:
			case <-ctx.Done():
				return
			}
		}
	}()

	summary := writeOutput(ctx, c, docChan, results, len(pdfs))
	if err := finish(c, summary); err != nil {
		return summary, err
	}
	return summary, ctx.Err()
}

func processDirect(ctx context.Context, c *Clients, pdfPath string) result[text.DocumentResult] {
	f, err := os.Open(pdfPath)
	if err != nil {
		return result[text.DocumentResult]{path: pdfPath, err: fmt.Errorf("opening %s: %w", pdfPath, err)}
	}
	defer f.Close()

	start := time.Now()
	lines, pages, err := processPDF(ctx, c, filepath.Base(pdfPath), f)
	if err != nil {
		return result[text.DocumentResult]{path: pdfPath, err: err}
	}

	output, err := writeDocument(c, raster.Stem(pdfPath), lines)
	if err != nil {
		return result[text.DocumentResult]{path: pdfPath, err: err}
	}
	return result[text.DocumentResult]{path: pdfPath, data: text.DocumentResult{
		Document: pdfPath,
		Pages:    pages,
		Lines:    len(lines),
		Output:   output,
		Duration: time.Since(start),
	}}
}

// ProcessFile runs one PDF through the full pipeline; the watcher uses it for
// files that show up after start.
func ProcessFile(ctx context.Context, c *Clients, pdfPath string) (text.DocumentResult, error) {
	res := processDocument(ctx, c, pdfPath)
	if res.err != nil {
		c.progress.Error(pdfPath, res.err)
		return text.DocumentResult{}, res.err
	}
	reportPath := filepath.Join(c.cfg.OutputDir, ReportName)
	if err := c.report.Append([]text.DocumentResult{res.data}, reportPath); err != nil {
		return res.data, fmt.Errorf("writing report %s: %w", reportPath, err)
	}
	c.progress.Done(filepath.Base(pdfPath), res.data.Output)
	return res.data, nil
}
