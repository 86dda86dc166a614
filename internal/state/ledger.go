// Package state remembers which documents were already converted so repeated
// runs over the same PDF directory only redo new or changed files.
package state

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketName = []byte("documents")

type Entry struct {
	Document  string    `json:"document"`
	Output    string    `json:"output"`
	Lines     int       `json:"lines"`
	Pages     int       `json:"pages"`
	Processed time.Time `json:"processed"`
}

type Ledger struct {
	db *bolt.DB
}

func Open(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory for ledger: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}
	return &Ledger{db: db}, nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

// Digest is the hex SHA-256 of the file at path.
func Digest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Key identifies one document: its content digest plus the path it was read
// from, so identical files under different names are tracked separately.
func Key(pdfPath, digest string) string {
	if abs, err := filepath.Abs(pdfPath); err == nil {
		pdfPath = abs
	}
	return digest + "|" + pdfPath
}

func (l *Ledger) Record(key string, entry Entry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding ledger entry: %w", err)
	}
	return l.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(key), raw)
	})
}

func (l *Ledger) Lookup(key string) (Entry, bool, error) {
	var (
		entry Entry
		found bool
	)
	err := l.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketName).Get([]byte(key))
		if raw == nil {
			return nil
		}
		found = true
		return json.Unmarshal(raw, &entry)
	})
	if err != nil {
		return Entry{}, false, fmt.Errorf("reading ledger entry: %w", err)
	}
	return entry, found, nil
}

// Done reports whether the document under key was processed before into
// output and that file is still on disk.
func (l *Ledger) Done(key, output string) (Entry, bool, error) {
	entry, found, err := l.Lookup(key)
	if err != nil || !found {
		return entry, false, err
	}
	if entry.Output != output {
		return entry, false, nil
	}
	if _, err := os.Stat(entry.Output); err != nil {
		return entry, false, nil
	}
	return entry, true, nil
}
