package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/jrsteele09/matka-backoffice/internal/errors"
)

// FileRepo keeps every namespaced key in a single JSON document on disk
type FileRepo struct {
	mu   sync.Mutex
	path string
}

var _ Repo = (*FileRepo)(nil)

// NewFileRepo creates a file-backed repo; the parent directory is created on first save
func NewFileRepo(path string) *FileRepo {
	return &FileRepo{path: path}
}

func (r *FileRepo) Load(_ context.Context, key string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.read()
	if err != nil {
		return nil, err
	}
	data, ok := doc[key]
	if !ok {
		return nil, errors.ErrSessionNotFound
	}
	return data, nil
}

func (r *FileRepo) Save(_ context.Context, key string, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.read()
	if err != nil {
		// An unreadable document is replaced rather than blocking every future save
		doc = make(map[string]json.RawMessage)
	}
	doc[key] = json.RawMessage(data)
	return r.write(doc)
}

func (r *FileRepo) Delete(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.read()
	if err != nil {
		return r.write(map[string]json.RawMessage{})
	}
	if _, ok := doc[key]; !ok {
		return nil
	}
	delete(doc, key)
	return r.write(doc)
}

func (r *FileRepo) read() (map[string]json.RawMessage, error) {
	raw, err := os.ReadFile(r.path)
	if os.IsNotExist(err) {
		return make(map[string]json.RawMessage), nil
	}
	if err != nil {
		return nil, fmt.Errorf("[FileRepo] read %s: %w", r.path, err)
	}
	doc := make(map[string]json.RawMessage)
	if len(raw) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, errors.Wrapf(errors.ErrCorruptSession, "[FileRepo] decode %s (%v)", r.path, err)
	}
	return doc, nil
}

func (r *FileRepo) write(doc map[string]json.RawMessage) error {
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("[FileRepo] encode: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0o700); err != nil {
		return fmt.Errorf("[FileRepo] mkdir: %w", err)
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("[FileRepo] write: %w", err)
	}
	return os.Rename(tmp, r.path)
}
