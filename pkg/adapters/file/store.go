package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aretw0/palette/pkg/domain"
)

// DefaultPath is where the recency list lives when no path is configured.
var DefaultPath = filepath.Join(".palette", "recent.json")

// Store implements ports.RecencyStore as a single JSON file.
type Store struct {
	Path string
}

// New creates a Store writing to path, or DefaultPath when path is empty.
func New(path string) *Store {
	if path == "" {
		path = DefaultPath
	}
	return &Store{Path: path}
}

// Load reads the list. A missing file is an empty list; malformed entries are skipped.
func (s *Store) Load(ctx context.Context) ([]domain.RecentUsage, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read recency file: %w", err)
	}
	return domain.DecodeRecent(data)
}

// Save replaces the file atomically: temp file in the same directory, fsync, rename.
func (s *Store) Save(ctx context.Context, entries []domain.RecentUsage) error {
	data, err := domain.EncodeRecent(entries)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to ensure recency directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, "tmp-recent-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	// Windows refuses to rename over an existing file.
	if _, err := os.Stat(s.Path); err == nil {
		if err := os.Remove(s.Path); err != nil {
			return fmt.Errorf("failed to remove existing recency file: %w", err)
		}
	}
	if err := os.Rename(tmpPath, s.Path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
