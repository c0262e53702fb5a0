// Package kv provides keyed byte storage for the local collection.
//
// Backends guarantee single-key atomicity only; there are no transactions across keys.
package kv

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"sync"
)

// Storage is durable keyed byte storage.
type Storage interface {
	// Get returns the value and whether the key exists.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error
	// Remove deletes key; removing a missing key is not an error.
	Remove(ctx context.Context, key string) error
	// Close releases backend resources.
	Close() error
}

// Backend names accepted by Open.
const (
	BackendSQLite = "sqlite"
	BackendDir    = "dir"
	BackendMemory = "memory"
)

// Open creates a storage backend rooted at dataDir.
func Open(backend, dataDir string) (Storage, error) {
	switch backend {
	case BackendSQLite, "":
		return OpenSQLite(filepath.Join(dataDir, "clipsync.db"))
	case BackendDir:
		return OpenDir(filepath.Join(dataDir, "kv"))
	case BackendMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", backend)
	}
}

// Memory is an in-process Storage, used in tests and for throwaway sessions.
type Memory struct {
	mu sync.RWMutex
	m  map[string][]byte
}

// NewMemory returns an empty in-memory storage.
func NewMemory() *Memory { return &Memory{m: make(map[string][]byte)} }

func (s *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[key]
	return slices.Clone(v), ok, nil
}

func (s *Memory) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = slices.Clone(value)
	return nil
}

func (s *Memory) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
	return nil
}

func (s *Memory) Close() error { return nil }
