// Package tempstore holds uploaded dataset payloads between the preview
// (dry-run) and confirmation steps of an import.
//
// Storage is a runtime-injected strategy with an explicit lifecycle: write
// a payload, read it back by key, remove it. There is no global registry;
// callers pass the strategy they want.
package tempstore

import (
	"bytes"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"

	"github.com/rowforge/rowforge/pkg/errors"
)

// Storage stores payloads pending confirmation
type Storage interface {
	// Write stores the payload and returns its key
	Write(payload []byte) (key string, err error)
	// Read returns the payload stored under key
	Read(key string) ([]byte, error)
	// Remove deletes the payload stored under key
	Remove(key string) error
}

// Filesystem stores gzip-compressed payloads as files under a directory
type Filesystem struct {
	dir string
}

// NewFilesystem creates the directory if needed and returns the strategy
func NewFilesystem(dir string) (*Filesystem, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeStore, "failed to create temp storage dir")
	}
	return &Filesystem{dir: dir}, nil
}

// Write compresses and stores the payload under a fresh key
func (f *Filesystem) Write(payload []byte) (string, error) {
	key := uuid.NewString()

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(payload); err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeStore, "failed to compress payload")
	}
	if err := zw.Close(); err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeStore, "failed to compress payload")
	}

	if err := os.WriteFile(f.path(key), buf.Bytes(), 0o600); err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeStore, "failed to write payload")
	}
	return key, nil
}

// Read returns the decompressed payload stored under key
func (f *Filesystem) Read(key string) ([]byte, error) {
	data, err := os.ReadFile(f.path(key))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeStore, "failed to read payload").
			WithDetail("key", key)
	}

	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeStore, "payload is corrupt").
			WithDetail("key", key)
	}
	defer zr.Close()

	payload, err := io.ReadAll(zr)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeStore, "payload is corrupt").
			WithDetail("key", key)
	}
	return payload, nil
}

// Remove deletes the payload stored under key
func (f *Filesystem) Remove(key string) error {
	if err := os.Remove(f.path(key)); err != nil {
		return errors.Wrap(err, errors.ErrorTypeStore, "failed to remove payload").
			WithDetail("key", key)
	}
	return nil
}

func (f *Filesystem) path(key string) string {
	return filepath.Join(f.dir, key+".gz")
}
