// Package storage provides the persistence layer: a low-level path-addressed
// JSON file primitive (this file, lock.go) plus the higher-level Store
// capability interface and its Memory/File/SQLite implementations.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var (
	ErrNotFound = errors.New("not found")
)

// fileBackend is the path-addressed JSON primitive File builds on: every
// path segment slice maps to basePath/seg0/seg1/.../segN.json, with writes
// guarded by an advisory per-path flock so multiple processes pointed at the
// same directory don't tear each other's files.
type fileBackend struct {
	basePath string

	mu    sync.Mutex
	locks map[string]*fileLock
}

// newFileBackend roots a fileBackend at basePath. The directory itself is
// created lazily on first write.
func newFileBackend(basePath string) *fileBackend {
	return &fileBackend{
		basePath: basePath,
		locks:    make(map[string]*fileLock),
	}
}

func (s *fileBackend) pathToFile(path []string) string {
	parts := append([]string{s.basePath}, path...)
	return filepath.Join(parts...) + ".json"
}

func (s *fileBackend) pathToDir(path []string) string {
	parts := append([]string{s.basePath}, path...)
	return filepath.Join(parts...)
}

// Get reads and unmarshals the record at path into v.
func (s *fileBackend) Get(ctx context.Context, path []string, v any) error {
	data, err := os.ReadFile(s.pathToFile(path))
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("read %s: %w", s.pathToFile(path), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal %s: %w", s.pathToFile(path), err)
	}
	return nil
}

// Put marshals v and writes it at path, under the path's lock, via a
// write-to-temp-then-rename so a reader never observes a partial file.
func (s *fileBackend) Put(ctx context.Context, path []string, v any) error {
	filePath := s.pathToFile(path)

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("create directory for %s: %w", filePath, err)
	}

	lock := s.getLock(filePath)
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("acquire lock for %s: %w", filePath, err)
	}
	defer lock.Unlock()

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filePath, err)
	}

	tmpPath := filePath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write temp file for %s: %w", filePath, err)
	}
	if err := os.Rename(tmpPath, filePath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file into %s: %w", filePath, err)
	}

	return nil
}

// Delete removes the record at path, under the path's lock. Deleting an
// already-absent path is not an error.
func (s *fileBackend) Delete(ctx context.Context, path []string) error {
	filePath := s.pathToFile(path)

	lock := s.getLock(filePath)
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("acquire lock for %s: %w", filePath, err)
	}
	defer lock.Unlock()

	if err := os.Remove(filePath); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("delete %s: %w", filePath, err)
	}
	return nil
}

// List returns the names of every entry (file or directory) directly under
// path, with the .json suffix stripped from files.
func (s *fileBackend) List(ctx context.Context, path []string) ([]string, error) {
	entries, err := os.ReadDir(s.pathToDir(path))
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("list %s: %w", s.pathToDir(path), err)
	}

	var items []string
	for _, entry := range entries {
		if entry.IsDir() {
			items = append(items, entry.Name())
			continue
		}
		if name, ok := strings.CutSuffix(entry.Name(), ".json"); ok {
			items = append(items, name)
		}
	}
	return items, nil
}

// Scan calls fn with the raw contents of every .json file directly under
// path. A file that cannot be read is skipped rather than aborting the
// scan; an error returned by fn aborts the scan.
func (s *fileBackend) Scan(ctx context.Context, path []string, fn func(key string, data json.RawMessage) error) error {
	dirPath := s.pathToDir(path)
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("scan %s: %w", dirPath, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name, ok := strings.CutSuffix(entry.Name(), ".json")
		if !ok {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dirPath, entry.Name()))
		if err != nil {
			continue
		}
		if err := fn(name, json.RawMessage(data)); err != nil {
			return err
		}
	}
	return nil
}

// Exists reports whether path names a stored record.
func (s *fileBackend) Exists(ctx context.Context, path []string) bool {
	_, err := os.Stat(s.pathToFile(path))
	return err == nil
}

// getLock returns the fileLock guarding filePath, creating it on first use.
func (s *fileBackend) getLock(filePath string) *fileLock {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[filePath]
	if !ok {
		lock = newFileLock(filePath)
		s.locks[filePath] = lock
	}
	return lock
}
