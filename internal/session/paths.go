// Package session owns the on-disk layout of one named instance's working
// directory: ~/.wacore/instances/<name>/.
package session

import (
	"os"
	"path/filepath"
)

// BaseDir returns ~/.wacore.
func BaseDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".wacore")
}

// Dir returns the instance-specific directory.
func Dir(name string) string {
	return filepath.Join(BaseDir(), "instances", name)
}

// SocketPath returns the UDS control-socket path for an instance.
func SocketPath(name string) string {
	return filepath.Join(Dir(name), "daemon.sock")
}

// LockPath returns the instance lock file path.
func LockPath(name string) string {
	return filepath.Join(Dir(name), "LOCK")
}

// StoreDBPath returns the pipeline's own SQLite database path (retry
// counters, history cache, recv-chat deltas, call offers, outbound-resend
// lookup).
func StoreDBPath(name string) string {
	return filepath.Join(Dir(name), "wacore.db")
}

// LogDir returns the log directory for an instance.
func LogDir(name string) string {
	return filepath.Join(Dir(name), "logs")
}

// LogPath returns the daemon log file path.
func LogPath(name string) string {
	return filepath.Join(LogDir(name), "wacored.log")
}

// ConfigPath returns the instance's config file path.
func ConfigPath(name string) string {
	return filepath.Join(Dir(name), "config.toml")
}

// DefaultInstanceConfigPath returns the path to the top-level config file
// that names the default instance (distinct from each instance's own
// config.toml under Dir(name)).
func DefaultInstanceConfigPath() string {
	return filepath.Join(BaseDir(), "default.toml")
}

// EnsureDir creates the instance directory tree with proper permissions.
func EnsureDir(name string) error {
	dirs := []string{
		Dir(name),
		LogDir(name),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
