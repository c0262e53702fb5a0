// Package blobstore keeps binary clipboard payloads as content-addressed files.
// Items reference blobs by file name; blobs never leave the device.
package blobstore

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zeebo/xxh3"
)

// Store is a directory of blobs named by the xxh3-128 hash of their content.
type Store struct {
	dir string
}

// New creates dir if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create blob directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Put writes data unless an identical blob already exists and returns its name.
// A present file of the wrong size is a torn write and is replaced.
func (s *Store) Put(data []byte) (string, error) {
	sum := xxh3.Hash128(data).Bytes()
	name := hex.EncodeToString(sum[:])
	path := filepath.Join(s.dir, name)
	if fi, err := os.Stat(path); err == nil && fi.Size() == int64(len(data)) {
		return name, nil
	}
	if err := s.writeAtomic(path, data); err != nil {
		return "", fmt.Errorf("write blob %s: %w", name, err)
	}
	return name, nil
}

// writeAtomic writes through a temp file in the same directory and renames it
// into place, so path holds either nothing or the complete content.
func (s *Store) writeAtomic(path string, data []byte) (err error) {
	f, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(f.Name())
		}
	}()
	if _, err = f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err = f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), path)
}

// Path returns the absolute location of a blob name.
func (s *Store) Path(name string) string { return filepath.Join(s.dir, filepath.Base(name)) }

// Exists reports whether the blob file is present. Remote-origin items often
// reference blobs that were never copied to this device.
func (s *Store) Exists(name string) bool {
	if name == "" || strings.ContainsAny(name, `/\`) {
		return false
	}
	_, err := os.Stat(s.Path(name))
	return err == nil
}

// Read returns the blob content.
func (s *Store) Read(name string) ([]byte, error) { return os.ReadFile(s.Path(name)) }

// Remove deletes the blob; a missing blob is not an error.
func (s *Store) Remove(name string) error {
	if name == "" {
		return nil
	}
	err := os.Remove(s.Path(name))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
