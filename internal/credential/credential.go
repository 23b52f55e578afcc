// Package credential stores server passwords separately from the
// metadata cache, keyed by the credential key recorded on each server.
package credential

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ErrNotFound is returned when no credential exists for a key.
var ErrNotFound = errors.New("credential not found")

// Store persists secrets by key.
type Store interface {
	Retrieve(key string) (string, error)
	Save(key, secret string) error
	Delete(key string) error
}

// FileStore keeps credentials in a JSON file with 0600 permissions.
type FileStore struct {
	mu   sync.Mutex
	path string
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a store backed by the file at path. The file is
// created on first Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) Retrieve(key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	creds, err := f.load()
	if err != nil {
		return "", err
	}
	secret, ok := creds[key]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrNotFound, key)
	}
	return secret, nil
}

func (f *FileStore) Save(key, secret string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	creds, err := f.load()
	if err != nil {
		return err
	}
	creds[key] = secret
	return f.write(creds)
}

func (f *FileStore) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	creds, err := f.load()
	if err != nil {
		return err
	}
	if _, ok := creds[key]; !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, key)
	}
	delete(creds, key)
	return f.write(creds)
}

func (f *FileStore) load() (map[string]string, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	creds := map[string]string{}
	if len(data) == 0 {
		return creds, nil
	}
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	return creds, nil
}

func (f *FileStore) write(creds map[string]string) error {
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}
	if dir := filepath.Dir(f.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create credentials dir: %w", err)
		}
	}
	// Write-then-rename so a crash never leaves a truncated file.
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	return nil
}

// MemStore is an in-memory credential store for tests.
type MemStore struct {
	mu    sync.Mutex
	creds map[string]string
}

var _ Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{creds: map[string]string{}}
}

func (m *MemStore) Retrieve(key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	secret, ok := m.creds[key]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrNotFound, key)
	}
	return secret, nil
}

func (m *MemStore) Save(key, secret string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds[key] = secret
	return nil
}

func (m *MemStore) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.creds[key]; !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, key)
	}
	delete(m.creds, key)
	return nil
}
