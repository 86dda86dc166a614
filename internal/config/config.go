package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	RendererFitz    = "fitz"
	RendererPoppler = "poppler"

	EngineTesseract = "tesseract"
	EngineOllama    = "ollama"
)

type Config struct {
	PDFDir    string `yaml:"pdf_dir"`
	ImagesDir string `yaml:"images_dir"`
	OutputDir string `yaml:"output_dir"`

	// Renderer selects the rasterizer: the embedded MuPDF binding or the
	// poppler pdftoppm helper found under PopplerPath.
	Renderer    string `yaml:"renderer"`
	PopplerPath string `yaml:"poppler_path"`
	DPI         int    `yaml:"dpi"`
	ImageFormat string `yaml:"image_format"`

	Enhance    bool   `yaml:"enhance"`
	KeepImages bool   `yaml:"keep_images"`
	Workers    int    `yaml:"workers"`
	Zip        bool   `yaml:"zip"`
	StateDB    string `yaml:"state_db"`

	OCR    OCRConfig    `yaml:"ocr"`
	Server ServerConfig `yaml:"server"`
	Log    LogConfig    `yaml:"log"`
}

type OCRConfig struct {
	Engine          string `yaml:"engine"`
	Lang            string `yaml:"lang"`
	DetModelDir     string `yaml:"det_model_dir"`
	RecModelDir     string `yaml:"rec_model_dir"`
	RecCharDictPath string `yaml:"rec_char_dict_path"`
	UseAngleCls     bool   `yaml:"use_angle_cls"`
	// DetDBUnclipRatio scales detected text boxes; 1 leaves them untouched.
	DetDBUnclipRatio float64 `yaml:"det_db_unclip_ratio"`
	UseSpaceChar     bool    `yaml:"use_space_char"`
	UseGPU           bool    `yaml:"use_gpu"`
	OllamaURL        string  `yaml:"ollama_url"`
	OllamaModel      string  `yaml:"ollama_model"`
}

type ServerConfig struct {
	Addr        string `yaml:"addr"`
	MaxUploadMB int64  `yaml:"max_upload_mb"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Default() *Config {
	return &Config{
		PDFDir:      "pdfs",
		ImagesDir:   "images",
		OutputDir:   "output",
		Renderer:    RendererFitz,
		PopplerPath: "/opt/homebrew/opt/poppler/bin",
		DPI:         300,
		ImageFormat: "png",
		KeepImages:  true,
		Workers:     1,
		OCR: OCRConfig{
			Engine:           EngineTesseract,
			Lang:             "ch",
			UseAngleCls:      true,
			DetDBUnclipRatio: 2.0,
		},
		Server: ServerConfig{
			Addr:        ":8501",
			MaxUploadMB: 200,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads a YAML file on top of Default. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Renderer {
	case RendererFitz, RendererPoppler:
	default:
		return fmt.Errorf("unknown renderer: %s", c.Renderer)
	}

	switch c.OCR.Engine {
	case EngineTesseract, EngineOllama:
	default:
		return fmt.Errorf("unknown engine type: %s", c.OCR.Engine)
	}

	switch strings.ToLower(c.ImageFormat) {
	case "png", "jpg", "jpeg":
	default:
		return fmt.Errorf("unsupported image format: %s", c.ImageFormat)
	}

	if c.DPI <= 0 {
		return fmt.Errorf("dpi must be positive, got %d", c.DPI)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.OCR.DetDBUnclipRatio < 1 {
		return fmt.Errorf("det_db_unclip_ratio must be >= 1, got %v", c.OCR.DetDBUnclipRatio)
	}
	return nil
}

// ImageExt returns the file extension used for rendered pages.
func (c *Config) ImageExt() string {
	if f := strings.ToLower(c.ImageFormat); f == "jpg" || f == "jpeg" {
		return "jpg"
	}
	return "png"
}

var tesseractLangs = map[string]string{
	"ch":          "chi_sim",
	"chinese_cht": "chi_tra",
	"en":          "eng",
	"japan":       "jpn",
	"korean":      "kor",
}

// TesseractLang maps the OCR language names used in configs (ch, en, ...) to
// tesseract traineddata names. Unknown names pass through, so "chi_sim+eng" works.
func TesseractLang(lang string) string {
	if mapped, ok := tesseractLangs[lang]; ok {
		return mapped
	}
	return lang
}

// TessdataDir is where the tesseract engine looks for traineddata files.
func (o OCRConfig) TessdataDir() string {
	if o.RecModelDir != "" {
		return o.RecModelDir
	}
	return o.DetModelDir
}
