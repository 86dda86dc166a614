// Package server exposes the OCR pipeline over HTTP: PDFs are uploaded in one
// multipart request and come back as a zip of recognised text files.
package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/onkej/ocr-playground/internal/config"
	"github.com/onkej/ocr-playground/internal/logger"
	"github.com/onkej/ocr-playground/internal/pipeline"
	"github.com/onkej/ocr-playground/internal/raster"
	"github.com/onkej/ocr-playground/internal/writer"
)

const (
	formField = "files"
	pdfMIME   = "application/pdf"
)

type Server struct {
	clients  *pipeline.Clients
	cfg      config.ServerConfig
	router   *gin.Engine
	validate func(path string) error

	// jobs are processed one at a time; the engine is shared.
	mu sync.Mutex
}

type Option func(*Server)

// WithValidator replaces the pdfcpu validation applied to every upload.
func WithValidator(fn func(path string) error) Option {
	return func(s *Server) { s.validate = fn }
}

func New(c *pipeline.Clients, opts ...Option) *Server {
	s := &Server{
		clients:  c,
		cfg:      c.Config().Server,
		validate: raster.Validate,
	}
	for _, opt := range opts {
		opt(s)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), accessLog())
	router.MaxMultipartMemory = 32 << 20

	router.GET("/healthz", s.healthz)
	router.POST("/ocr", s.recognize)
	s.router = router
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.L().Info("server listening", zap.String("addr", s.cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving on %s: %w", s.cfg.Addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	logger.L().Info("server stopped")
	return nil
}

func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.L().Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

func (s *Server) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"engine": s.clients.Config().OCR.Engine,
	})
}

// recognize handles POST /ocr. Every upload must sniff as a PDF; the files are
// recognised in upload order and returned as ocr_output.zip.
func (s *Server) recognize(c *gin.Context) {
	if s.cfg.MaxUploadMB > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxUploadMB<<20)
	}

	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("upload exceeds %d MB", s.cfg.MaxUploadMB)})
			return
		}
		if errors.Is(err, http.ErrNotMultipart) || errors.Is(err, http.ErrMissingBoundary) {
			c.JSON(http.StatusBadRequest, gin.H{"warning": "please upload PDF files first"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	files := form.File[formField]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"warning": "please upload PDF files first"})
		return
	}

	jobID := uuid.NewString()
	jobDir := filepath.Join(os.TempDir(), "ocr-job-"+jobID)
	if err := os.MkdirAll(jobDir, 0755); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer os.RemoveAll(jobDir)

	stored := make([]string, 0, len(files))
	for i, fh := range files {
		path, err := s.store(fh, jobDir, i)
		if err != nil {
			var bad *uploadError
			if errors.As(err, &bad) {
				c.JSON(bad.status, gin.H{"error": bad.Error(), "file": fh.Filename})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "file": fh.Filename})
			return
		}
		stored = append(stored, path)
	}

	s.mu.Lock()
	entries, err := s.process(c.Request.Context(), jobID, files, stored)
	s.mu.Unlock()
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "job": jobID})
		return
	}

	var buf bytes.Buffer
	if err := writer.WriteArchive(&buf, entries); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "job": jobID})
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", writer.ArchiveName))
	c.Header("X-Job-ID", jobID)
	c.Data(http.StatusOK, "application/zip", buf.Bytes())
}

type uploadError struct {
	status int
	msg    string
}

func (e *uploadError) Error() string { return e.msg }

// store copies one upload into jobDir after checking that it is a readable PDF.
// Uploads are numbered so two files with the same name do not collide.
func (s *Server) store(fh *multipart.FileHeader, jobDir string, index int) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("opening upload %s: %w", fh.Filename, err)
	}
	defer f.Close()

	mtype, err := mimetype.DetectReader(f)
	if err != nil {
		return "", fmt.Errorf("sniffing upload %s: %w", fh.Filename, err)
	}
	if !mtype.Is(pdfMIME) {
		return "", &uploadError{
			status: http.StatusUnsupportedMediaType,
			msg:    fmt.Sprintf("%s is %s, not a PDF", fh.Filename, mtype.String()),
		}
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewinding upload %s: %w", fh.Filename, err)
	}

	dir := filepath.Join(jobDir, fmt.Sprintf("%03d", index))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating upload directory: %w", err)
	}
	path := filepath.Join(dir, filepath.Base(fh.Filename))
	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("storing upload %s: %w", fh.Filename, err)
	}
	if _, err := io.Copy(out, f); err != nil {
		out.Close()
		return "", fmt.Errorf("storing upload %s: %w", fh.Filename, err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("storing upload %s: %w", fh.Filename, err)
	}

	if s.validate != nil {
		if err := s.validate(path); err != nil {
			return "", &uploadError{status: http.StatusUnprocessableEntity, msg: err.Error()}
		}
	}
	return path, nil
}

func (s *Server) process(ctx context.Context, jobID string, files []*multipart.FileHeader, stored []string) ([]writer.ArchiveEntry, error) {
	entries := make([]writer.ArchiveEntry, 0, len(stored))
	seen := make(map[string]bool)
	for i, path := range stored {
		name := filepath.Base(files[i].Filename)
		logger.L().Info("recognising upload",
			zap.String("job", jobID),
			zap.String("file", name),
			zap.Int("index", i+1),
			zap.Int("total", len(stored)))

		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", name, err)
		}
		lines, err := pipeline.ProcessPDF(ctx, s.clients, name, f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}

		entries = append(entries, writer.ArchiveEntry{
			Name: entryName(seen, raster.Stem(name)),
			Data: writer.TextBytes(lines),
		})
	}
	return entries, nil
}

// entryName picks <stem>_ocr.txt, or the first free <stem>_<n>_ocr.txt when
// that name is already in the archive.
func entryName(seen map[string]bool, stem string) string {
	name := writer.OutputName(stem)
	for n := 2; seen[name]; n++ {
		name = writer.OutputName(fmt.Sprintf("%s_%d", stem, n))
	}
	seen[name] = true
	return name
}
