package raster

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/onkej/ocr-playground/internal/logger"
)

// PopplerRasterizer shells out to pdftoppm, one invocation per page.
type PopplerRasterizer struct {
	binDir string
}

// NewPoppler uses the helpers in binDir, or the ones on PATH when binDir is empty.
func NewPoppler(binDir string) *PopplerRasterizer {
	return &PopplerRasterizer{binDir: binDir}
}

func (p *PopplerRasterizer) Name() string { return "poppler" }

func (p *PopplerRasterizer) Tool(name string) string {
	if p.binDir == "" {
		return name
	}
	return filepath.Join(p.binDir, name)
}

// Available reports whether pdftoppm can be executed.
func (p *PopplerRasterizer) Available() error {
	if _, err := exec.LookPath(p.Tool("pdftoppm")); err != nil {
		return fmt.Errorf("pdftoppm not found (poppler path %q): %w", p.binDir, err)
	}
	return nil
}

func (p *PopplerRasterizer) Open(ctx context.Context, pdfPath string) (Document, error) {
	if err := p.Available(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(pdfPath); err != nil {
		return nil, fmt.Errorf("opening PDF %s: %w", pdfPath, err)
	}

	pages, err := p.pageCount(ctx, pdfPath)
	if err != nil {
		return nil, err
	}

	workDir, err := os.MkdirTemp("", "pdftoppm-*")
	if err != nil {
		return nil, fmt.Errorf("creating render directory: %w", err)
	}

	return &popplerDocument{
		tool:    p.Tool("pdftoppm"),
		path:    pdfPath,
		pages:   pages,
		workDir: workDir,
	}, nil
}

// pageCount asks pdfcpu first and falls back to pdfinfo for files pdfcpu is
// too strict about.
func (p *PopplerRasterizer) pageCount(ctx context.Context, pdfPath string) (int, error) {
	n, err := api.PageCountFile(pdfPath)
	if err == nil {
		return n, nil
	}
	logger.DebugLog("[poppler]: pdfcpu page count failed for %s: %v, trying pdfinfo", pdfPath, err)

	cmd := exec.CommandContext(ctx, p.Tool("pdfinfo"), pdfPath)
	output, infoErr := cmd.Output()
	if infoErr != nil {
		return 0, fmt.Errorf("counting pages of %s: %w", pdfPath, errors.Join(err, infoErr))
	}
	return parsePdfinfoPages(output)
}

func parsePdfinfoPages(output []byte) (int, error) {
	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "Pages:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) >= 2 {
			if total, err := strconv.Atoi(fields[1]); err == nil {
				return total, nil
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, err
	}
	return 0, errors.New("no page count in pdfinfo output")
}

type popplerDocument struct {
	tool    string
	path    string
	pages   int
	workDir string
}

func (d *popplerDocument) PageCount() int { return d.pages }

func (d *popplerDocument) Render(ctx context.Context, page int, dpi int) (image.Image, error) {
	if page < 1 || page > d.pages {
		return nil, fmt.Errorf("page %d out of range for %s (%d pages)", page, d.path, d.pages)
	}

	prefix := filepath.Join(d.workDir, fmt.Sprintf("page-%d", page))
	args := []string{
		"-png",
		"-r", strconv.Itoa(dpi),
		"-f", strconv.Itoa(page),
		"-l", strconv.Itoa(page),
		"-singlefile",
		d.path,
		prefix,
	}
	cmd := exec.CommandContext(ctx, d.tool, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("pdftoppm failed on page %d: %w, output: %s", page, err, strings.TrimSpace(string(output)))
	}

	rendered := prefix + ".png"
	defer os.Remove(rendered)

	img, err := imaging.Open(rendered)
	if err != nil {
		return nil, fmt.Errorf("reading rendered page %d: %w", page, err)
	}
	return img, nil
}

func (d *popplerDocument) Close() error {
	return os.RemoveAll(d.workDir)
}
