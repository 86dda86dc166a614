package progress

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"
)

const barWidth = 30

// Console draws a bar per document and coloured status lines.
type Console struct {
	mu      sync.Mutex
	w       io.Writer
	success *color.Color
	warn    *color.Color
	fail    *color.Color
	info    *color.Color
}

func NewConsole(w io.Writer) *Console {
	return &Console{
		w:       w,
		success: color.New(color.FgGreen),
		warn:    color.New(color.FgYellow),
		fail:    color.New(color.FgRed),
		info:    color.New(color.FgCyan),
	}
}

func (c *Console) Start(doc, stage string, total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.info.Fprintf(c.w, "==> %s %s (%d pages) ...\n", stage, doc, total)
}

func (c *Console) Step(doc string, done, total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, "\r    %s %3.0f%% %d/%d", Bar(Fraction(done, total), barWidth), Fraction(done, total)*100, done, total)
	if done >= total {
		fmt.Fprintln(c.w)
	}
}

func (c *Console) Done(doc, output string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.success.Fprintf(c.w, "✅ %s saved to %s\n", doc, output)
}

func (c *Console) Overall(done, total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, "[%d/%d documents] %s\n", done, total, Bar(Fraction(done, total), barWidth))
}

func (c *Console) Warn(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.warn.Fprintf(c.w, "⚠ %s\n", msg)
}

func (c *Console) Error(doc string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fail.Fprintf(c.w, "✗ %s: %v\n", doc, err)
}

func Bar(fraction float64, width int) string {
	filled := int(fraction*float64(width) + 0.5)
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return "[" + strings.Repeat("#", filled) + strings.Repeat("-", width-filled) + "]"
}
