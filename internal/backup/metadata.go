package backup

import (
	"bytes"
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/natefinch/atomic"
)

// Metadata describes a single backup.
type Metadata struct {
	ID         string    `json:"id"`          // Unique backup identifier (timestamp-based)
	SourcePath string    `json:"source_path"` // Rules file the backup was taken from
	BackupPath string    `json:"backup_path"` // Path to the backup copy
	CreatedAt  time.Time `json:"created_at"`  // Backup creation timestamp
	ModifiedAt time.Time `json:"modified_at"` // Source modification timestamp
	Hash       string    `json:"hash"`        // SHA256 hash of content
	Size       int64     `json:"size"`        // File size in bytes
}

// Index records every backup in a directory.
type Index struct {
	Version string              `json:"version"`
	Updated time.Time           `json:"updated"`
	Backups map[string]Metadata `json:"backups"` // Key: backup ID
}

const (
	// IndexVersion is the current version of the backup index format
	IndexVersion = "1.0"
	// IndexFilename is the name of the index file
	IndexFilename = "index.json"
)

func (m *Manager) indexPath() string {
	return filepath.Join(m.dir, IndexFilename)
}

// loadIndex reads the index, returning an empty one if none exists yet.
func (m *Manager) loadIndex() (*Index, error) {
	// #nosec G304 - index path is inside the configured backup directory
	data, err := os.ReadFile(m.indexPath())
	if errors.Is(err, os.ErrNotExist) {
		return &Index{
			Version: IndexVersion,
			Updated: m.now(),
			Backups: make(map[string]Metadata),
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read index file: %w", err)
	}

	var index Index
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("failed to parse index file: %w", err)
	}
	if index.Backups == nil {
		index.Backups = make(map[string]Metadata)
	}
	return &index, nil
}

func (m *Manager) saveIndex(index *Index) error {
	if err := os.MkdirAll(m.dir, DirPerm); err != nil {
		return fmt.Errorf("failed to create backup directory: %w", err)
	}

	index.Updated = m.now()
	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal index: %w", err)
	}

	if err := atomic.WriteFile(m.indexPath(), bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write index file: %w", err)
	}
	return nil
}

// sorted returns the backups newest first.
func (idx *Index) sorted() []Metadata {
	backups := make([]Metadata, 0, len(idx.Backups))
	for _, b := range idx.Backups {
		backups = append(backups, b)
	}
	slices.SortFunc(backups, func(a, b Metadata) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return backups
}
