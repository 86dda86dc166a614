package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/onkej/ocr-playground/internal/config"
	"github.com/onkej/ocr-playground/internal/image"
	"github.com/onkej/ocr-playground/internal/logger"
	"github.com/onkej/ocr-playground/internal/ocr"
	"github.com/onkej/ocr-playground/internal/progress"
	"github.com/onkej/ocr-playground/internal/raster"
	"github.com/onkej/ocr-playground/internal/state"
	"github.com/onkej/ocr-playground/internal/text"
	"github.com/onkej/ocr-playground/internal/writer"
)

const ReportName = "report.csv"

type result[T any] struct {
	path string
	data T
	err  error
}

type writeResult[T any] struct {
	mu       sync.Mutex
	writes   map[string]T
	failures map[string]error
}

func newWriteResult[T any]() *writeResult[T] {
	return &writeResult[T]{
		writes:   make(map[string]T),
		failures: make(map[string]error),
	}
}

func (r *writeResult[T]) addWrite(path string, data T) {
	r.mu.Lock()
	r.writes[path] = data
	r.mu.Unlock()
}

func (r *writeResult[T]) addFailure(path string, err error) {
	r.mu.Lock()
	r.failures[path] = err
	r.mu.Unlock()
}

// Summary is what a stage produced, keyed by input document path.
type Summary struct {
	Written  map[string]text.DocumentResult
	Failures map[string]error
	Report   string
	Archive  string
}

// Outputs lists the written text files in document order.
func (s *Summary) Outputs() []string {
	docs := make([]string, 0, len(s.Written))
	for doc := range s.Written {
		docs = append(docs, doc)
	}
	sort.Strings(docs)
	out := make([]string, len(docs))
	for i, doc := range docs {
		out[i] = s.Written[doc].Output
	}
	return out
}

// Err joins the per-document failures, nil when every document succeeded.
func (s *Summary) Err() error {
	if len(s.Failures) == 0 {
		return nil
	}
	docs := make([]string, 0, len(s.Failures))
	for doc := range s.Failures {
		docs = append(docs, doc)
	}
	sort.Strings(docs)
	errs := make([]error, len(docs))
	for i, doc := range docs {
		errs[i] = fmt.Errorf("%s: %w", doc, s.Failures[doc])
	}
	return errors.Join(errs...)
}

func newSummary(r *writeResult[text.DocumentResult]) *Summary {
	return &Summary{Written: r.writes, Failures: r.failures}
}

// Clients bundles everything the stages call out to.
type Clients struct {
	cfg      *config.Config
	raster   raster.Opener
	engine   ocr.OCREngine
	image    *image.ImageProcessor
	report   *writer.CSVWriter[text.DocumentResult]
	ledger   *state.Ledger
	progress progress.Reporter
}

type Option func(*Clients)

func WithRasterizer(r raster.Opener) Option {
	return func(c *Clients) { c.raster = r }
}

func WithEngine(e ocr.OCREngine) Option {
	return func(c *Clients) { c.engine = e }
}

func WithReporter(r progress.Reporter) Option {
	return func(c *Clients) { c.progress = r }
}

// ConvertOnly skips loading OCR models; only ConvertStage may be used.
func ConvertOnly() Option {
	return func(c *Clients) { c.engine = noEngine{} }
}

type noEngine struct{}

func (noEngine) Name() string { return "none" }
func (noEngine) Close() error { return nil }

func (noEngine) Recognize(ctx context.Context, imagePath string) ([]ocr.Line, error) {
	return nil, errors.New("no OCR engine configured")
}

// NewClients builds the rasterizer, OCR engine and ledger described by cfg,
// unless they were supplied as options.
func NewClients(cfg *config.Config, opts ...Option) (*Clients, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Clients{cfg: cfg, progress: progress.Nop{}}
	for _, opt := range opts {
		opt(c)
	}

	if c.raster == nil {
		c.raster = raster.New(cfg)
	}
	if c.engine == nil {
		e, err := ocr.NewEngine(cfg.OCR)
		if err != nil {
			return nil, fmt.Errorf("creating OCR engine: %w", err)
		}
		c.engine = e
	}
	if cfg.Enhance {
		c.image = image.NewImageProcessor()
	}
	if cfg.StateDB != "" {
		l, err := state.Open(cfg.StateDB)
		if err != nil {
			c.engine.Close()
			return nil, err
		}
		c.ledger = l
	}
	c.report = writer.NewCSVWriter(text.MapCSVRecord, text.GetCSVHeader)
	return c, nil
}

func (c *Clients) Config() *config.Config { return c.cfg }

func (c *Clients) Close() error {
	logger.DebugLog("Closing OCR engine")
	c.report.Close()
	err := c.engine.Close()
	if c.ledger != nil {
		err = errors.Join(err, c.ledger.Close())
	}
	return err
}

// Run converts and recognises every PDF in the configured directory, writing
// one <stem>_ocr.txt per document. Up to cfg.Workers documents are in flight;
// the default of one processes them strictly in order.
func Run(ctx context.Context, c *Clients) (*Summary, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cfg := c.cfg
	logger.L().Info("pipeline started",
		zap.String("pdf_dir", cfg.PDFDir),
		zap.String("renderer", c.raster.Name()),
		zap.String("engine", c.engine.Name()),
		zap.Int("workers", cfg.Workers))

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

	files := make(chan string)
	docChan := make(chan result[text.DocumentResult], cfg.Workers)

	go func() {
		defer close(files)
		logger.DebugLog("Starting [walkFiles] goroutine")
		walkFiles(ctx, pdfs, files)
		logger.DebugLog("[walkFiles] goroutine finished")
	}()

	var wg sync.WaitGroup
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			logger.DebugLog("Starting [processDocuments] worker #%d", worker+1)
			processDocuments(ctx, c, files, docChan)
			logger.DebugLog("[processDocuments] worker #%d finished", worker+1)
		}(i)
	}
	go func() {
		wg.Wait()
		close(docChan)
	}()

	summary := writeOutput(ctx, c, docChan, results, len(pdfs))
	if err := finish(c, summary); err != nil {
		return summary, err
	}

	logger.L().Info("pipeline finished",
		zap.Int("written", len(summary.Written)),
		zap.Int("failed", len(summary.Failures)))
	return summary, ctx.Err()
}

// ConvertStage only rasterizes: every PDF becomes <images_dir>/<stem>/ pages.
func ConvertStage(ctx context.Context, c *Clients) (*Summary, error) {
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

	for i, pdf := range pdfs {
		if err := ctx.Err(); err != nil {
			return newSummary(results), err
		}
		pages, err := rasterizeDocument(ctx, c, pdf)
		if err != nil {
			c.progress.Error(pdf, err)
			results.addFailure(pdf, err)
			continue
		}
		dir := filepath.Join(cfg.ImagesDir, raster.Stem(pdf))
		results.addWrite(pdf, text.DocumentResult{Document: pdf, Pages: len(pages), Output: dir})
		c.progress.Done(pdf, dir)
		c.progress.Overall(i+1, len(pdfs))
	}
	return newSummary(results), nil
}

// OCRStage recognises the page images of every document directory under
// images_dir, the second half of a two-step run.
func OCRStage(ctx context.Context, c *Clients) (*Summary, error) {
	cfg := c.cfg
	dirs, err := listDocumentDirs(cfg.ImagesDir)
	if err != nil {
		return nil, err
	}
	results := newWriteResult[text.DocumentResult]()
	if len(dirs) == 0 {
		warnEmpty(c, fmt.Sprintf("no document directories found in %s", cfg.ImagesDir))
		return newSummary(results), nil
	}

	docChan := make(chan result[text.DocumentResult])
	go func() {
		defer close(docChan)
		for _, dir := range dirs {
			res := recognizeDirectory(ctx, c, dir)
			select {
			case docChan <- res:
			case <-ctx.Done():
				return
			}
		}
	}()

	summary := writeOutput(ctx, c, docChan, results, len(dirs))
	if err := finish(c, summary); err != nil {
		return summary, err
	}
	return summary, ctx.Err()
}

func warnEmpty(c *Clients, msg string) {
	logger.L().Warn(msg)
	c.progress.Warn(msg)
}

// finish writes the optional zip bundle.
func finish(c *Clients, summary *Summary) error {
	if len(summary.Written) > 0 {
		summary.Report = filepath.Join(c.cfg.OutputDir, ReportName)
	}
	if !c.cfg.Zip || len(summary.Written) == 0 {
		return nil
	}

	var entries []writer.ArchiveEntry
	for _, out := range summary.Outputs() {
		entries = append(entries, writer.ArchiveEntry{Name: filepath.Base(out), Path: out})
	}
	archive := filepath.Join(c.cfg.OutputDir, writer.ArchiveName)
	if err := writer.WriteArchiveFile(archive, entries); err != nil {
		return fmt.Errorf("bundling outputs: %w", err)
	}
	summary.Archive = archive
	return nil
}
