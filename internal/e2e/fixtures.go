package e2e

import (
	"os"
	"path/filepath"
	"testing"
)

// Fixture writes and reads files under a base directory.
type Fixture struct {
	t       *testing.T
	baseDir string
}

// NewFixture creates a new fixture helper rooted at the given directory.
func NewFixture(t *testing.T, baseDir string) *Fixture {
	t.Helper()
	return &Fixture{
		t:       t,
		baseDir: baseDir,
	}
}

// WriteFile writes content to a file relative to the fixture base directory.
// It creates parent directories as needed.
func (f *Fixture) WriteFile(relPath, content string) string {
	f.t.Helper()
	fullPath := filepath.Join(f.baseDir, relPath)

	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		f.t.Fatalf("failed to create directory %s: %v", dir, err)
	}

	if err := os.WriteFile(fullPath, []byte(content), 0o600); err != nil {
		f.t.Fatalf("failed to write file %s: %v", fullPath, err)
	}

	return fullPath
}

// Path returns the full path for a relative path.
func (f *Fixture) Path(relPath string) string {
	return filepath.Join(f.baseDir, relPath)
}

// Exists returns true if the file or directory exists.
func (f *Fixture) Exists(relPath string) bool {
	f.t.Helper()
	_, err := os.Stat(f.Path(relPath))
	return err == nil
}

// ReadFile reads and returns the content of a file.
func (f *Fixture) ReadFile(relPath string) string {
	f.t.Helper()
	fullPath := f.Path(relPath)

	// #nosec G304 - fullPath is under the fixture base directory
	data, err := os.ReadFile(fullPath)
	if err != nil {
		f.t.Fatalf("failed to read file %s: %v", fullPath, err)
	}

	return string(data)
}

// Home returns a fixture rooted at the harness AMSYNC_HOME, where the rules
// file, config and backups live.
func (h *Harness) Home() *Fixture {
	h.t.Helper()
	return NewFixture(h.t, h.homeDir)
}

// WriteRules replaces the default rules file with content.
func (h *Harness) WriteRules(content string) {
	h.t.Helper()
	h.Home().WriteFile(filepath.Base(h.RulesPath()), content)
}

// ReadRules returns the content of the default rules file.
func (h *Harness) ReadRules() string {
	h.t.Helper()
	return h.Home().ReadFile(filepath.Base(h.RulesPath()))
}

// WriteConfig writes config.yaml into AMSYNC_HOME.
func (h *Harness) WriteConfig(content string) {
	h.t.Helper()
	h.Home().WriteFile("config.yaml", content)
}

// WriteCredentials writes credentials.toml into AMSYNC_HOME.
func (h *Harness) WriteCredentials(content string) {
	h.t.Helper()
	h.Home().WriteFile("credentials.toml", content)
}
