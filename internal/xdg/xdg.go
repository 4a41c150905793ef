// Package xdg locates the on-disk directories rlsguard's CLI reads and
// writes outside the current working directory — chiefly ConfigDir, home
// of the cached schema-introspection JSON that compile/analyze/monitor/apply
// fall back to when --schema is omitted (see cmd/rlsguard's defaultSchemaPath).
package xdg

import (
	"fmt"
	"os"
	"path/filepath"
)

const appName = "rlsguard"

// ConfigDir returns rlsguard's XDG config directory — where a developer can
// drop a cached `schema.json` from a prior introspection run so later
// compile/analyze/apply/monitor invocations don't need --schema.
// Checks XDG_CONFIG_HOME first, falls back to ~/.config.
func ConfigDir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		base = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(base, appName)
}

// DataDir returns rlsguard's XDG data directory.
// Checks XDG_DATA_HOME first, falls back to ~/.local/share.
func DataDir() string {
	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		base = filepath.Join(os.Getenv("HOME"), ".local", "share")
	}
	return filepath.Join(base, appName)
}

// StateDir returns rlsguard's XDG state directory.
// Checks XDG_STATE_HOME first, falls back to ~/.local/state.
func StateDir() string {
	base := os.Getenv("XDG_STATE_HOME")
	if base == "" {
		base = filepath.Join(os.Getenv("HOME"), ".local", "state")
	}
	return filepath.Join(base, appName)
}

// RuntimeDir returns rlsguard's XDG runtime directory.
// Checks XDG_RUNTIME_DIR first, falls back to StateDir()/run.
func RuntimeDir() string {
	base := os.Getenv("XDG_RUNTIME_DIR")
	if base == "" {
		return filepath.Join(StateDir(), "run")
	}
	return filepath.Join(base, appName)
}

// CertsDir returns the directory for TLS client certificates a future
// `apply`/`monitor` run could use to connect to DATABASE_URL over verified
// TLS, alongside the config directory's cached schema file.
func CertsDir() string {
	return filepath.Join(ConfigDir(), "certs")
}

// EnsureDir creates a directory and all parent directories if they don't exist.
// Directories are created with 0700 permissions.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o700); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", path, err)
	}
	return nil
}
