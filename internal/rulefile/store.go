package rulefile

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/natefinch/atomic"

	"github.com/klauern/amsync/internal/logging"
	"github.com/klauern/amsync/internal/model"
)

const (
	// FilePerm is the permission of the rules file.
	FilePerm = 0o644
	// DirPerm is the permission used when creating the rules file directory.
	DirPerm = 0o755
)

// ErrLocked is returned by Lock when another amsync process holds the lock.
var ErrLocked = errors.New("rules file is locked by another amsync process")

// BackupFunc is called with the rules file path before an existing file is
// overwritten. A returned error aborts the save.
type BackupFunc func(path string) error

// Option configures a Store.
type Option func(*Store)

// WithBackup registers fn to run before an existing rules file is replaced.
func WithBackup(fn BackupFunc) Option {
	return func(s *Store) {
		s.backup = fn
	}
}

// Store reads and writes a rule set at a single path.
type Store struct {
	path   string
	backup BackupFunc
}

// New returns a store for the rules file at path.
func New(path string, opts ...Option) *Store {
	s := &Store{path: path}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the rules file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads and parses the rules file.
func (s *Store) Load() (*model.RuleSet, error) {
	// #nosec G304 - path is the operator's configured rules file
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	rs, err := Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", s.path, err)
	}

	logging.Debug("loaded rules file",
		logging.Path(s.path),
		logging.Count(rs.Len()),
	)
	return rs, nil
}

// Save replaces the rules file with rs. The new content is written to a
// temporary file and renamed over the old one.
func (s *Store) Save(rs *model.RuleSet) error {
	data, err := Marshal(rs)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(s.path), DirPerm); err != nil {
		return fmt.Errorf("failed to create rules directory: %w", err)
	}

	if s.backup != nil {
		if _, err := os.Stat(s.path); err == nil {
			if err := s.backup(s.path); err != nil {
				return fmt.Errorf("failed to back up rules file: %w", err)
			}
		}
	}

	if err := atomic.WriteFile(s.path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write rules file: %w", err)
	}
	// #nosec G302 - the rules file is meant to be shared and committed
	if err := os.Chmod(s.path, FilePerm); err != nil {
		return fmt.Errorf("failed to set rules file permissions: %w", err)
	}

	logging.Debug("saved rules file",
		logging.Path(s.path),
		logging.Count(rs.Len()),
	)
	return nil
}

// Lock takes an exclusive advisory lock on a sibling .lock file. It fails
// with ErrLocked instead of waiting. The returned function releases the lock.
func (s *Store) Lock() (func(), error) {
	if err := os.MkdirAll(filepath.Dir(s.path), DirPerm); err != nil {
		return nil, fmt.Errorf("failed to create rules directory: %w", err)
	}

	lock := flock.New(s.path + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock rules file: %w", err)
	}
	if !ok {
		return nil, ErrLocked
	}

	return func() {
		if err := lock.Unlock(); err != nil {
			logging.Warn("failed to release rules lock", logging.Path(lock.Path()), logging.Err(err))
		}
	}, nil
}
