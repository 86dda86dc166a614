package engine

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/otiai10/gosseract/v2"

	imgproc "github.com/onkej/ocr-playground/internal/image"
	"github.com/onkej/ocr-playground/internal/text"
)

type TesseractOptions struct {
	Languages []string
	// TessdataPrefix is the directory holding <lang>.traineddata. Empty means
	// tesseract's own default (TESSDATA_PREFIX).
	TessdataPrefix string
	Whitelist      string
	// AngleCls turns on orientation and script detection (needs osd.traineddata).
	AngleCls     bool
	UnclipRatio  float64
	UseSpaceChar bool
}

type GosseractEngine struct {
	opts          TesseractOptions
	clientFactory func() *gosseract.Client
}

func NewGosseractEngine(opts TesseractOptions) (*GosseractEngine, error) {
	if len(opts.Languages) == 0 {
		opts.Languages = []string{"chi_sim"}
	}
	if opts.TessdataPrefix != "" {
		required := append([]string(nil), opts.Languages...)
		if opts.AngleCls {
			required = append(required, "osd")
		}
		for _, lang := range required {
			model := filepath.Join(opts.TessdataPrefix, lang+".traineddata")
			if _, err := os.Stat(model); err != nil {
				return nil, fmt.Errorf("loading tesseract model %s: %w", lang, err)
			}
		}
	}
	g := &GosseractEngine{opts: opts, clientFactory: gosseract.NewClient}
	if err := g.checkModels(); err != nil {
		return nil, err
	}
	return g, nil
}

// checkModels initialises tesseract once on a blank page so missing traineddata in
// the default tessdata location fails here rather than on the first document.
func (g *GosseractEngine) checkModels() error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 16, 16))); err != nil {
		return fmt.Errorf("encoding blank page: %w", err)
	}

	client := g.clientFactory()
	defer client.Close()

	if err := g.configure(client); err != nil {
		return err
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return fmt.Errorf("loading tesseract model %s: %w", strings.Join(g.opts.Languages, "+"), err)
	}
	if _, err := client.Text(); err != nil {
		return fmt.Errorf("loading tesseract model %s: %w", strings.Join(g.opts.Languages, "+"), err)
	}
	return nil
}

func (g *GosseractEngine) Name() string { return "tesseract" }

func (g *GosseractEngine) Recognize(ctx context.Context, imagePath string) ([]Line, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bounds, err := imageBounds(imagePath)
	if err != nil {
		return nil, err
	}

	client := g.clientFactory()
	defer client.Close()

	if err := g.configure(client); err != nil {
		return nil, err
	}
	if err := client.SetImage(imagePath); err != nil {
		return nil, fmt.Errorf("set image %s: %w", imagePath, err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, fmt.Errorf("failed to extract text from image %s: %w", imagePath, err)
	}

	return buildLines(boxes, g.opts, bounds), nil
}

// buildLines orders the raw tesseract boxes and only then grows them by the
// unclip ratio; expanded boxes of different heights no longer share a row.
func buildLines(boxes []gosseract.BoundingBox, opts TesseractOptions, bounds image.Rectangle) []Line {
	lines := make([]Line, 0, len(boxes))
	for _, b := range boxes {
		t := text.NormalizeLine(b.Word, opts.UseSpaceChar)
		if t == "" {
			continue
		}
		lines = append(lines, Line{
			Text:       t,
			Box:        b.Box,
			Confidence: b.Confidence / 100.0,
		})
	}
	SortLines(lines)
	for i := range lines {
		lines[i].Box = imgproc.ExpandBox(lines[i].Box, opts.UnclipRatio, bounds)
	}
	return lines
}

func (g *GosseractEngine) configure(client *gosseract.Client) error {
	if g.opts.TessdataPrefix != "" {
		if err := client.SetTessdataPrefix(g.opts.TessdataPrefix); err != nil {
			return fmt.Errorf("set tessdata prefix: %w", err)
		}
	}
	if err := client.SetLanguage(g.opts.Languages...); err != nil {
		return fmt.Errorf("set languages: %w", err)
	}

	psm := gosseract.PSM_AUTO
	if g.opts.AngleCls {
		psm = gosseract.PSM_AUTO_OSD
	}
	if err := client.SetPageSegMode(psm); err != nil {
		return fmt.Errorf("set page segmentation mode: %w", err)
	}

	if g.opts.Whitelist != "" {
		if err := client.SetWhitelist(g.opts.Whitelist); err != nil {
			return fmt.Errorf("set whitelist: %w", err)
		}
	}
	if !g.opts.UseSpaceChar {
		if err := client.SetVariable("preserve_interword_spaces", "0"); err != nil {
			return fmt.Errorf("set variable preserve_interword_spaces: %w", err)
		}
	}
	return nil
}

// Close is a no-op: a fresh client is created per page.
func (g *GosseractEngine) Close() error {
	return nil
}

func imageBounds(path string) (image.Rectangle, error) {
	f, err := os.Open(path)
	if err != nil {
		return image.Rectangle{}, fmt.Errorf("opening image %s: %w", path, err)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return image.Rectangle{}, fmt.Errorf("decoding image header %s: %w", path, err)
	}
	return image.Rect(0, 0, cfg.Width, cfg.Height), nil
}
