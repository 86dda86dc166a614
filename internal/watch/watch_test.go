package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu    sync.Mutex
	calls []string
	seen  chan string
}

func newRecorder() *recorder {
	return &recorder{seen: make(chan string, 16)}
}

func (r *recorder) handle(ctx context.Context, path string) error {
	r.mu.Lock()
	r.calls = append(r.calls, path)
	r.mu.Unlock()
	r.seen <- path
	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func startWatcher(t *testing.T, dir string, handle HandlerFunc) (*Watcher, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	w := New(dir, 100*time.Millisecond, handle)
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()

	select {
	case <-w.Ready():
	case err := <-errCh:
		t.Fatalf("watcher exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher never became ready")
	}
	return w, errCh
}

func TestWatcher_DebouncesWrites(t *testing.T) {
	// Arrange
	dir := t.TempDir()
	rec := newRecorder()
	startWatcher(t, dir, rec.handle)
	pdf := filepath.Join(dir, "scan.pdf")

	// Act
	f, err := os.Create(pdf)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err := f.WriteString("%PDF-1.7 chunk\n")
		require.NoError(t, err)
		time.Sleep(10 * time.Millisecond)
	}
	require.NoError(t, f.Close())

	// Assert
	select {
	case got := <-rec.seen:
		assert.Equal(t, pdf, got)
	case <-time.After(5 * time.Second):
		t.Fatal("handler was not called")
	}
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, 1, rec.count())
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	rec := newRecorder()
	startWatcher(t, dir, rec.handle)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hello"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.PDF"), []byte("%PDF-1.7"), 0644))

	select {
	case got := <-rec.seen:
		assert.Equal(t, filepath.Join(dir, "b.PDF"), got)
	case <-time.After(5 * time.Second):
		t.Fatal("handler was not called")
	}
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, 1, rec.count())
}

func TestWatcher_HandlerErrorKeepsWatching(t *testing.T) {
	dir := t.TempDir()
	seen := make(chan string, 4)
	startWatcher(t, dir, func(ctx context.Context, path string) error {
		seen <- path
		return errors.New("ocr failed")
	})

	for _, name := range []string{"a.pdf", "b.pdf"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("%PDF-1.7"), 0644))
		select {
		case got := <-seen:
			assert.Equal(t, filepath.Join(dir, name), got)
		case <-time.After(5 * time.Second):
			t.Fatalf("handler was not called for %s", name)
		}
	}
}

func TestWatcher_StopsOnCancel(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	w := New(dir, time.Second, func(context.Context, string) error { return nil })
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()
	<-w.Ready()

	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatcher_MissingDirectory(t *testing.T) {
	w := New(filepath.Join(t.TempDir(), "missing"), 0, nil)

	err := w.Run(context.Background())

	assert.Error(t, err)
}
