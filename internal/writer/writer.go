package writer

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

type WriteMode int

const (
	ModeReplace WriteMode = iota
	ModeAppend
)

type MapperFunc[T any] func(T) []string

type HeaderFunc[T any] func() []string

type WriteRequest[T any] struct {
	Data       []T
	OutputPath string
	Mode       WriteMode
	ResponseCh chan error
}

// CSVWriter funnels writes from concurrent document workers through a single
// goroutine, so report rows never interleave and the header is written once.
type CSVWriter[T any] struct {
	queue    chan WriteRequest[T]
	shutdown chan struct{}
	wg       sync.WaitGroup
	once     sync.Once
	// headers is only touched by the worker goroutine.
	headers map[string]bool
	mapper  MapperFunc[T]
	header  HeaderFunc[T]
}

func NewCSVWriter[T any](mapper MapperFunc[T], header HeaderFunc[T]) *CSVWriter[T] {
	cw := &CSVWriter[T]{
		queue:    make(chan WriteRequest[T], 100),
		shutdown: make(chan struct{}),
		headers:  make(map[string]bool),
		mapper:   mapper,
		header:   header,
	}
	cw.startWorker()
	return cw
}

func (cw *CSVWriter[T]) startWorker() {
	cw.wg.Add(1)
	go func() {
		defer cw.wg.Done()
		for {
			select {
			case req := <-cw.queue:
				req.ResponseCh <- cw.writeSync(req.Data, req.OutputPath, req.Mode)
			case <-cw.shutdown:
				return
			}
		}
	}()
}

func (cw *CSVWriter[T]) Close() {
	cw.once.Do(func() {
		close(cw.shutdown)
		cw.wg.Wait()
	})
}

// Append adds rows to outputPath, writing the header first if this writer has
// not written to the file yet.
func (cw *CSVWriter[T]) Append(data []T, outputPath string) error {
	return cw.submit(data, outputPath, ModeAppend)
}

// Replace truncates outputPath and writes header plus rows.
func (cw *CSVWriter[T]) Replace(data []T, outputPath string) error {
	return cw.submit(data, outputPath, ModeReplace)
}

func (cw *CSVWriter[T]) submit(data []T, outputPath string, mode WriteMode) error {
	responseCh := make(chan error, 1)
	req := WriteRequest[T]{
		Data:       data,
		OutputPath: outputPath,
		Mode:       mode,
		ResponseCh: responseCh,
	}

	select {
	case cw.queue <- req:
		return <-responseCh
	case <-cw.shutdown:
		return fmt.Errorf("writer is shutting down")
	}
}

func (cw *CSVWriter[T]) writeSync(data []T, outputPath string, mode WriteMode) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	hasHeader := cw.headers[outputPath] && mode == ModeAppend

	flags := os.O_CREATE | os.O_WRONLY
	if hasHeader {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	file, err := os.OpenFile(outputPath, flags, 0644)
	if err != nil {
		return fmt.Errorf("opening CSV file: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if !hasHeader {
		cw.headers[outputPath] = false
		if err := w.Write(cw.header()); err != nil {
			return fmt.Errorf("writing CSV header: %w", err)
		}
		cw.headers[outputPath] = true
	}

	for _, item := range data {
		if err := w.Write(cw.mapper(item)); err != nil {
			return fmt.Errorf("writing CSV record: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flushing CSV file: %w", err)
	}
	return nil
}
