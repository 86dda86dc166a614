package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_EmptyPathGivesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "pdfs", cfg.PDFDir)
	assert.Equal(t, 300, cfg.DPI)
	assert.Equal(t, "ch", cfg.OCR.Lang)
	assert.Equal(t, 2.0, cfg.OCR.DetDBUnclipRatio)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ocr.yaml")
	content := `
pdf_dir: budgets
renderer: poppler
poppler_path: /usr/bin
ocr:
  lang: en
  use_angle_cls: false
  rec_model_dir: /models/tessdata
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "budgets", cfg.PDFDir)
	assert.Equal(t, "images", cfg.ImagesDir)
	assert.Equal(t, RendererPoppler, cfg.Renderer)
	assert.Equal(t, "/usr/bin", cfg.PopplerPath)
	assert.False(t, cfg.OCR.UseAngleCls)
	assert.Equal(t, "/models/tessdata", cfg.OCR.TessdataDir())
	// untouched keys keep their defaults
	assert.Equal(t, EngineTesseract, cfg.OCR.Engine)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("dpi: [1, 2"), 0644))
	_, err = Load(bad)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"renderer", func(c *Config) { c.Renderer = "ghostscript" }},
		{"engine", func(c *Config) { c.OCR.Engine = "paddle" }},
		{"format", func(c *Config) { c.ImageFormat = "gif" }},
		{"dpi", func(c *Config) { c.DPI = 0 }},
		{"workers", func(c *Config) { c.Workers = 0 }},
		{"unclip", func(c *Config) { c.OCR.DetDBUnclipRatio = 0.5 }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestTesseractLang(t *testing.T) {
	assert.Equal(t, "chi_sim", TesseractLang("ch"))
	assert.Equal(t, "chi_tra", TesseractLang("chinese_cht"))
	assert.Equal(t, "chi_sim+eng", TesseractLang("chi_sim+eng"))
}

func TestImageExt(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "png", cfg.ImageExt())
	cfg.ImageFormat = "JPEG"
	assert.Equal(t, "jpg", cfg.ImageExt())
}
