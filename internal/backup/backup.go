// Package backup keeps copies of the rules file before it is overwritten.
package backup

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/natefinch/atomic"

	"github.com/klauern/amsync/internal/logging"
)

const (
	// DirPerm is the permission for backup directories (rwxr-x---)
	DirPerm = 0o750
	// FilePerm is the permission for backup files (rw-r-----)
	FilePerm = 0o640
	// restorePerm matches the permission of a freshly written rules file.
	restorePerm = 0o644
)

// ErrNotFound is returned for an unknown backup ID.
var ErrNotFound = errors.New("backup not found")

// ErrCorrupted is returned when a backup no longer matches its hash.
var ErrCorrupted = errors.New("backup file corrupted")

// Manager stores backups and their index in one directory.
type Manager struct {
	dir string
	max int
	now func() time.Time
}

// NewManager returns a manager for dir keeping at most maxBackups backups per
// source file. A maxBackups of 0 keeps every backup.
func NewManager(dir string, maxBackups int) *Manager {
	return &Manager{dir: dir, max: maxBackups, now: time.Now}
}

// Dir returns the backup directory.
func (m *Manager) Dir() string {
	return m.dir
}

// Backup copies path into the backup directory and prunes old backups of
// it. It has the signature of rulefile.BackupFunc.
func (m *Manager) Backup(path string) error {
	meta, err := m.Create(path)
	if err != nil {
		return err
	}
	logging.Debug("backed up rules file", logging.Path(path), slog.String("backup_id", meta.ID))

	if m.max > 0 {
		if _, err := m.Cleanup(CleanupOptions{MaxBackups: m.max, KeepAtLeastOne: true}); err != nil {
			logging.Warn("failed to prune backups", logging.Err(err))
		}
	}
	return nil
}

// Create copies the file at sourcePath into the backup directory.
func (m *Manager) Create(sourcePath string) (*Metadata, error) {
	if err := os.MkdirAll(m.dir, DirPerm); err != nil {
		return nil, fmt.Errorf("failed to create backups directory: %w", err)
	}

	sourceInfo, err := os.Stat(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat source path %q: %w", sourcePath, err)
	}

	// #nosec G304 - sourcePath is the configured rules file
	content, err := os.ReadFile(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read source file %q: %w", sourcePath, err)
	}

	hash := hashOf(content)
	now := m.now()
	id := now.Format("20060102-150405-") + hash[:8]
	backupPath := filepath.Join(m.dir, id+filepath.Ext(sourcePath))

	if err := os.WriteFile(backupPath, content, FilePerm); err != nil {
		return nil, fmt.Errorf("failed to write backup file: %w", err)
	}

	abs, err := filepath.Abs(sourcePath)
	if err != nil {
		abs = sourcePath
	}
	meta := Metadata{
		ID:         id,
		SourcePath: abs,
		BackupPath: backupPath,
		CreatedAt:  now,
		ModifiedAt: sourceInfo.ModTime(),
		Hash:       hash,
		Size:       sourceInfo.Size(),
	}

	index, err := m.loadIndex()
	if err != nil {
		return nil, fmt.Errorf("failed to load backup index: %w", err)
	}
	index.Backups[id] = meta
	if err := m.saveIndex(index); err != nil {
		return nil, fmt.Errorf("failed to add backup to index: %w", err)
	}

	return &meta, nil
}

// Restore replaces targetPath with the backup id after verifying its hash.
// An existing target is backed up first.
func (m *Manager) Restore(id, targetPath string) (*Metadata, error) {
	meta, content, err := m.read(id)
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(targetPath); err == nil {
		if _, err := m.Create(targetPath); err != nil {
			return nil, fmt.Errorf("failed to back up %s before restoring: %w", targetPath, err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(targetPath), DirPerm); err != nil {
		return nil, fmt.Errorf("failed to create target directory: %w", err)
	}
	if err := atomic.WriteFile(targetPath, bytes.NewReader(content)); err != nil {
		return nil, fmt.Errorf("failed to write target file: %w", err)
	}
	if err := os.Chmod(targetPath, restorePerm); err != nil {
		return nil, fmt.Errorf("failed to set permissions on %s: %w", targetPath, err)
	}

	logging.Info("restored backup", logging.Path(targetPath), slog.String("backup_id", id))
	return meta, nil
}

// Verify checks that the backup id is intact.
func (m *Manager) Verify(id string) error {
	_, _, err := m.read(id)
	return err
}

// List returns all backups, newest first.
func (m *Manager) List() ([]Metadata, error) {
	index, err := m.loadIndex()
	if err != nil {
		return nil, fmt.Errorf("failed to load backup index: %w", err)
	}
	return index.sorted(), nil
}

// Delete removes a backup and its index entry.
func (m *Manager) Delete(id string) error {
	index, err := m.loadIndex()
	if err != nil {
		return fmt.Errorf("failed to load backup index: %w", err)
	}
	if err := m.remove(index, id); err != nil {
		return err
	}
	return m.saveIndex(index)
}

func (m *Manager) remove(index *Index, id string) error {
	meta, ok := index.Backups[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	if err := os.Remove(meta.BackupPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete backup file: %w", err)
	}
	delete(index.Backups, id)
	return nil
}

// read loads the backup id and checks its hash.
func (m *Manager) read(id string) (*Metadata, []byte, error) {
	index, err := m.loadIndex()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load backup index: %w", err)
	}

	meta, ok := index.Backups[id]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}

	// #nosec G304 - BackupPath comes from the backup index
	content, err := os.ReadFile(meta.BackupPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read backup file: %w", err)
	}

	if got := hashOf(content); got != meta.Hash {
		return nil, nil, fmt.Errorf("%w: hash mismatch (expected %s, got %s)", ErrCorrupted, meta.Hash, got)
	}
	return &meta, content, nil
}

func hashOf(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
