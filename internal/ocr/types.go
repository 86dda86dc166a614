package ocr

import (
	"context"

	"github.com/onkej/ocr-playground/internal/ocr/engine"
)

type Line = engine.Line

type OCREngine interface {
	Name() string
	Recognize(ctx context.Context, imagePath string) ([]Line, error)
	Close() error
}

// Texts returns the text of each line, in order.
func Texts(lines []Line) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.Text
	}
	return out
}
