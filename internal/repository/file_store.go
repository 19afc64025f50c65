package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"appointment-bot/internal/domain"
)

// FileStore keeps all appointments in one JSON file.
// Appends are serialized and the file is replaced atomically.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) (*FileStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("repository: appointments file path must not be empty")
	}
	return &FileStore{path: path}, nil
}

// LoadAll returns every appointment; a missing file is an empty collection.
func (s *FileStore) LoadAll(ctx context.Context) ([]domain.Appointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	coll, err := s.read()
	if err != nil {
		return nil, fmt.Errorf("repository: LoadAll: %w", err)
	}
	return coll.list(), nil
}

func (s *FileStore) Append(ctx context.Context, a domain.Appointment) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	coll, err := s.read()
	if err != nil {
		return "", fmt.Errorf("repository: Append: %w", err)
	}
	id := coll.add(a)
	if err := s.write(coll); err != nil {
		return "", fmt.Errorf("repository: Append: %w", err)
	}
	return id, nil
}

func (s *FileStore) read() (collection, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return collection{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	return decodeCollection(raw)
}

func (s *FileStore) write(coll collection) error {
	raw, err := coll.encode()
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}
