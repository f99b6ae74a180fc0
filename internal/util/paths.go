// Package util holds filesystem locations shared across amsync packages.
package util

import (
	"os"
	"path/filepath"
	"strings"
)

// HomeEnv overrides the amsync configuration directory.
const HomeEnv = "AMSYNC_HOME"

// HomeDir returns the user's home directory
func HomeDir() string {
	home, _ := os.UserHomeDir()
	return home
}

// ConfigPath returns the amsync configuration directory: $AMSYNC_HOME when
// set, otherwise amsync under the user config directory.
func ConfigPath() string {
	if dir := os.Getenv(HomeEnv); dir != "" {
		return ExpandPath(dir)
	}
	base, err := os.UserConfigDir()
	if err != nil {
		base = filepath.Join(HomeDir(), ".config")
	}
	return filepath.Join(base, "amsync")
}

// BackupsPath returns the default directory for rules file backups.
func BackupsPath() string {
	return filepath.Join(ConfigPath(), "backups")
}

// ExpandPath replaces a leading ~ with the home directory.
func ExpandPath(p string) string {
	if p == "~" {
		return HomeDir()
	}
	if strings.HasPrefix(p, "~/") {
		return filepath.Join(HomeDir(), p[2:])
	}
	return p
}
