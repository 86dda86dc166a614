package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/onkej/ocr-playground/internal/config"
	"github.com/onkej/ocr-playground/internal/logger"
	"github.com/onkej/ocr-playground/internal/ocr"
	"github.com/onkej/ocr-playground/internal/pipeline"
	"github.com/onkej/ocr-playground/internal/progress"
	"github.com/onkej/ocr-playground/internal/raster"
	"github.com/onkej/ocr-playground/internal/server"
	"github.com/onkej/ocr-playground/internal/watch"
)

const usage = `Usage: ocr-tool [command] [flags]

Commands:
  run      convert and recognise every PDF in -pdfs (default)
  convert  render PDFs to page images only
  ocr      recognise page images already under -images
  direct   recognise PDFs without keeping page images
  serve    start the HTTP upload server
  watch    process existing PDFs, then new ones as they appear
  doctor   check helpers, OCR models and input PDFs
`

var commands = map[string]bool{
	"run": true, "convert": true, "ocr": true, "direct": true,
	"serve": true, "watch": true, "doctor": true,
}

type CLI struct {
	stdout io.Writer
	stderr io.Writer

	configPath string
	pdfDir     string
	imagesDir  string
	outputDir  string
	engineType string
	renderer   string
	poppler    string
	lang       string
	angleCls   bool
	unclip     float64
	gpu        bool
	dpi        int
	workers    int
	zip        bool
	enhance    bool
	dropImages bool
	stateDB    string
	addr       string
	logLevel   string
	jsonEvents bool
	debounce   time.Duration
}

func NewCLI(stdout, stderr io.Writer) *CLI {
	d := config.Default()
	return &CLI{
		stdout:     stdout,
		stderr:     stderr,
		pdfDir:     d.PDFDir,
		imagesDir:  d.ImagesDir,
		outputDir:  d.OutputDir,
		engineType: d.OCR.Engine,
		renderer:   d.Renderer,
		poppler:    d.PopplerPath,
		lang:       d.OCR.Lang,
		angleCls:   d.OCR.UseAngleCls,
		unclip:     d.OCR.DetDBUnclipRatio,
		gpu:        d.OCR.UseGPU,
		dpi:        d.DPI,
		workers:    d.Workers,
		addr:       d.Server.Addr,
		logLevel:   d.Log.Level,
		debounce:   watch.DefaultDebounce,
	}
}

func (c *CLI) Run(ctx context.Context, args []string) error {
	cmd := "run"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}
	if !commands[cmd] {
		fmt.Fprint(c.stderr, usage)
		return fmt.Errorf("unknown command: %s", cmd)
	}

	fs := flag.NewFlagSet("ocr-tool "+cmd, flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	fs.Usage = func() {
		fmt.Fprint(c.stderr, usage)
		fmt.Fprintln(c.stderr, "\nFlags:")
		fs.PrintDefaults()
	}
	c.bindFlags(fs)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("parsing flags: %w", err)
	}

	cfg, err := c.loadConfig(fs)
	if err != nil {
		return err
	}
	if _, err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		return err
	}
	defer logger.Sync()

	if cmd == "doctor" {
		return c.doctor(ctx, cfg)
	}

	opts := []pipeline.Option{pipeline.WithReporter(c.reporter())}
	if cmd == "convert" {
		opts = append(opts, pipeline.ConvertOnly())
	}
	clients, err := pipeline.NewClients(cfg, opts...)
	if err != nil {
		return err
	}
	defer clients.Close()

	switch cmd {
	case "convert":
		return c.report(pipeline.ConvertStage(ctx, clients))
	case "ocr":
		return c.report(pipeline.OCRStage(ctx, clients))
	case "direct":
		return c.report(pipeline.DirectStage(ctx, clients))
	case "serve":
		return server.New(clients).Run(ctx)
	case "watch":
		if err := c.report(pipeline.Run(ctx, clients)); err != nil {
			fmt.Fprintf(c.stderr, "initial run: %v\n", err)
		}
		w := watch.New(cfg.PDFDir, c.debounce, func(ctx context.Context, pdfPath string) error {
			_, err := pipeline.ProcessFile(ctx, clients, pdfPath)
			return err
		})
		return w.Run(ctx)
	default:
		return c.report(pipeline.Run(ctx, clients))
	}
}

func (c *CLI) bindFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", c.configPath, "YAML config file")
	fs.StringVar(&c.pdfDir, "pdfs", c.pdfDir, "Directory containing PDFs to process")
	fs.StringVar(&c.imagesDir, "images", c.imagesDir, "Directory for rendered page images")
	fs.StringVar(&c.outputDir, "output", c.outputDir, "Output directory for results")
	fs.StringVar(&c.engineType, "engine", c.engineType, "OCR engine type (tesseract, ollama)")
	fs.StringVar(&c.renderer, "renderer", c.renderer, "PDF renderer (fitz, poppler)")
	fs.StringVar(&c.poppler, "poppler", c.poppler, "Directory holding pdftoppm and pdfinfo")
	fs.StringVar(&c.lang, "lang", c.lang, "Recognition language (ch, en, chi_sim+eng, ...)")
	fs.BoolVar(&c.angleCls, "angle-cls", c.angleCls, "Detect and correct rotated text")
	fs.Float64Var(&c.unclip, "unclip-ratio", c.unclip, "Scale factor applied to detected text boxes")
	fs.BoolVar(&c.gpu, "gpu", c.gpu, "Ask the OCR engine to use the GPU")
	fs.IntVar(&c.dpi, "dpi", c.dpi, "Rendering resolution")
	fs.IntVar(&c.workers, "workers", c.workers, "Documents processed concurrently")
	fs.BoolVar(&c.zip, "zip", c.zip, "Bundle outputs into ocr_output.zip")
	fs.BoolVar(&c.enhance, "enhance", c.enhance, "Preprocess page images before OCR")
	fs.BoolVar(&c.dropImages, "drop-images", c.dropImages, "Delete page images once a document is recognised")
	fs.StringVar(&c.stateDB, "state", c.stateDB, "Resume ledger path; unchanged PDFs are skipped")
	fs.StringVar(&c.addr, "addr", c.addr, "Listen address for serve")
	fs.StringVar(&c.logLevel, "log-level", c.logLevel, "Log level (debug, info, warn, error)")
	fs.BoolVar(&c.jsonEvents, "json", c.jsonEvents, "Emit progress as JSON lines on stdout")
	fs.DurationVar(&c.debounce, "debounce", c.debounce, "Quiet period before a watched PDF is processed")
}

// loadConfig reads -config and lets explicitly set flags override it.
func (c *CLI) loadConfig(fs *flag.FlagSet) (*config.Config, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "pdfs":
			cfg.PDFDir = c.pdfDir
		case "images":
			cfg.ImagesDir = c.imagesDir
		case "output":
			cfg.OutputDir = c.outputDir
		case "engine":
			cfg.OCR.Engine = c.engineType
		case "renderer":
			cfg.Renderer = c.renderer
		case "poppler":
			cfg.PopplerPath = c.poppler
		case "lang":
			cfg.OCR.Lang = c.lang
		case "angle-cls":
			cfg.OCR.UseAngleCls = c.angleCls
		case "unclip-ratio":
			cfg.OCR.DetDBUnclipRatio = c.unclip
		case "gpu":
			cfg.OCR.UseGPU = c.gpu
		case "dpi":
			cfg.DPI = c.dpi
		case "workers":
			cfg.Workers = c.workers
		case "zip":
			cfg.Zip = c.zip
		case "enhance":
			cfg.Enhance = c.enhance
		case "drop-images":
			cfg.KeepImages = !c.dropImages
		case "state":
			cfg.StateDB = c.stateDB
		case "addr":
			cfg.Server.Addr = c.addr
		case "log-level":
			cfg.Log.Level = c.logLevel
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *CLI) reporter() progress.Reporter {
	if c.jsonEvents {
		return progress.NewEvents(c.stdout)
	}
	return progress.NewConsole(c.stderr)
}

func (c *CLI) report(summary *pipeline.Summary, err error) error {
	if err != nil {
		return err
	}
	if c.jsonEvents {
		return summary.Err()
	}

	paths := make([]string, 0, len(summary.Failures))
	for path := range summary.Failures {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	for _, path := range paths {
		fmt.Fprintf(c.stdout, "Error processing %s: %v\n", path, summary.Failures[path])
	}

	fmt.Fprintf(c.stdout, "\nProcessing complete! %d written, %d failed\n", len(summary.Written), len(summary.Failures))
	if summary.Report != "" {
		fmt.Fprintf(c.stdout, "Report saved to: %s\n", summary.Report)
	}
	if summary.Archive != "" {
		fmt.Fprintf(c.stdout, "Archive saved to: %s\n", summary.Archive)
	}
	return summary.Err()
}

// doctor checks everything a run depends on and reports each result.
func (c *CLI) doctor(ctx context.Context, cfg *config.Config) error {
	ok := color.New(color.FgGreen)
	bad := color.New(color.FgRed)
	failed := 0
	check := func(name string, err error) {
		if err != nil {
			failed++
			bad.Fprintf(c.stdout, "✗ %s: %v\n", name, err)
			return
		}
		ok.Fprintf(c.stdout, "✓ %s\n", name)
	}

	poppler := raster.NewPoppler(cfg.PopplerPath)
	if cfg.Renderer == config.RendererPoppler {
		check("renderer poppler ("+poppler.Tool("pdftoppm")+")", poppler.Available())
	} else {
		check("renderer fitz", nil)
		if err := poppler.Available(); err != nil {
			fmt.Fprintf(c.stdout, "  poppler fallback unavailable: %v\n", err)
		}
	}

	e, err := ocr.NewEngine(cfg.OCR)
	check("OCR engine "+cfg.OCR.Engine, err)
	if err == nil {
		e.Close()
	}

	pdfs, err := raster.ListPDFs(cfg.PDFDir)
	check("input directory "+cfg.PDFDir, err)
	for _, pdf := range pdfs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		check(pdf, raster.Validate(pdf))
	}
	if err == nil && len(pdfs) == 0 {
		fmt.Fprintf(c.stdout, "  no PDF files found in %s\n", cfg.PDFDir)
	}

	if failed > 0 {
		return fmt.Errorf("%d checks failed", failed)
	}
	return nil
}
