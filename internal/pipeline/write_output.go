package pipeline

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/onkej/ocr-playground/internal/logger"
	"github.com/onkej/ocr-playground/internal/text"
	"github.com/onkej/ocr-playground/internal/writer"
)

func writeDocument(c *Clients, stem string, lines []string) (string, error) {
	output := filepath.Join(c.cfg.OutputDir, writer.OutputName(stem))
	if err := writer.WriteText(output, lines); err != nil {
		return "", fmt.Errorf("writing %s: %w", output, err)
	}
	logger.DebugLog("[writeDocument]: wrote %d lines to %s", len(lines), output)
	return output, nil
}

// writeOutput is the single consumer of document results: it appends report
// rows, reports progress and fills results.
func writeOutput(ctx context.Context,
	c *Clients,
	docChan <-chan result[text.DocumentResult],
	results *writeResult[text.DocumentResult],
	total int) *Summary {
	reportPath := filepath.Join(c.cfg.OutputDir, ReportName)
	done := 0

	for res := range docChan {
		if ctx.Err() != nil {
			logger.DebugLog("[writeOutput]: context cancelled")
			break
		}
		done++

		if res.err != nil {
			logger.DebugLog("[writeOutput]: failure for %s: %v", res.path, res.err)
			c.progress.Error(res.path, res.err)
			results.addFailure(res.path, res.err)
			c.progress.Overall(done, total)
			continue
		}

		if err := c.report.Append([]text.DocumentResult{res.data}, reportPath); err != nil {
			logger.DebugLog("[writeOutput]: error writing report %s: %v", reportPath, err)
			results.addFailure(res.path, fmt.Errorf("writing report %s: %w", reportPath, err))
			c.progress.Overall(done, total)
			continue
		}

		results.addWrite(res.path, res.data)
		c.progress.Done(filepath.Base(res.path), res.data.Output)
		c.progress.Overall(done, total)
	}

	return newSummary(results)
}
