package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/onkej/ocr-playground/internal/config"
	"github.com/onkej/ocr-playground/internal/logger"
	"github.com/onkej/ocr-playground/internal/ocr/engine"
	"github.com/onkej/ocr-playground/internal/text"
)

func NewEngine(cfg config.OCRConfig) (OCREngine, error) {
	switch cfg.Engine {
	case config.EngineOllama:
		return engine.NewOllamaEngine(cfg.OllamaURL, cfg.OllamaModel, cfg.UseGPU, cfg.UseSpaceChar), nil
	case config.EngineTesseract, "":
		if cfg.UseGPU {
			logger.DebugLog("tesseract has no GPU backend, use_gpu ignored")
		}
		opts := engine.TesseractOptions{
			Languages:      strings.Split(config.TesseractLang(cfg.Lang), "+"),
			TessdataPrefix: cfg.TessdataDir(),
			AngleCls:       cfg.UseAngleCls,
			UnclipRatio:    cfg.DetDBUnclipRatio,
			UseSpaceChar:   cfg.UseSpaceChar,
		}
		if cfg.RecCharDictPath != "" {
			charset, err := text.LoadCharset(cfg.RecCharDictPath)
			if err != nil {
				return nil, err
			}
			opts.Whitelist = charset
		}
		e, err := engine.NewGosseractEngine(opts)
		if err != nil {
			return nil, err
		}
		return e, nil
	default:
		return nil, fmt.Errorf("unknown engine type: %s", cfg.Engine)
	}
}

// RecognizeDocument runs the engine over pages in order and concatenates the
// lines. onPage, if set, is called after every page.
func RecognizeDocument(ctx context.Context, e OCREngine, pages []string, onPage func(done, total int)) ([]Line, error) {
	var lines []Line
	for i, page := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		logger.DebugLog("[ocr]: extracting from %s", page)
		pageLines, err := e.Recognize(ctx, page)
		if err != nil {
			return nil, fmt.Errorf("recognize %s: %w", page, err)
		}
		lines = append(lines, pageLines...)
		if onPage != nil {
			onPage(i+1, len(pages))
		}
	}
	return lines, nil
}
