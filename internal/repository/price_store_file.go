package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"ExecGuard/internal/domain/repository"
)

// FileStore keeps the price cache document as a JSON file.
type FileStore struct {
	path string
}

// NewFileStore creates a file-backed price store.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load returns an empty document when the file does not exist yet.
func (s *FileStore) Load(_ context.Context) (*repository.PriceDocument, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return emptyDocument(), nil
		}
		return nil, fmt.Errorf("read price cache: %w", err)
	}

	var doc repository.PriceDocument
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("decode price cache: %w", err)
	}
	if doc.Prices == nil {
		doc.Prices = make(map[string]repository.PriceRecord)
	}
	return &doc, nil
}

// Save writes to a temp file and renames it over the target.
func (s *FileStore) Save(_ context.Context, doc *repository.PriceDocument) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode price cache: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".price_cache-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace price cache: %w", err)
	}
	return nil
}

func emptyDocument() *repository.PriceDocument {
	return &repository.PriceDocument{
		Prices:  make(map[string]repository.PriceRecord),
		Version: repository.PriceDocumentVersion,
	}
}
