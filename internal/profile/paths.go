package profile

import (
	"os"
	"path/filepath"
)

// BaseDir returns ~/.messenger-crm.
func BaseDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".messenger-crm")
}

// Dir returns the profile-specific directory.
func Dir(name string) string {
	return filepath.Join(BaseDir(), "profiles", name)
}

// BridgeSocketPath returns the unix socket the companion extension host
// serves the bridge message protocol on.
func BridgeSocketPath(name string) string {
	return filepath.Join(Dir(name), "extension.sock")
}

// BridgeTokenPath returns the shared-secret file used to authenticate
// companion pushes and local CLI requests against the daemon API.
func BridgeTokenPath(name string) string {
	return filepath.Join(Dir(name), "bridge.token")
}

// LockPath returns the lock file path for a profile.
func LockPath(name string) string {
	return filepath.Join(Dir(name), "LOCK")
}

// DBPath returns the daemon-owned crm.db path.
func DBPath(name string) string {
	return filepath.Join(Dir(name), "crm.db")
}

// LogDir returns the log directory for a profile.
func LogDir(name string) string {
	return filepath.Join(Dir(name), "logs")
}

// LogPath returns the daemon log file path.
func LogPath(name string) string {
	return filepath.Join(LogDir(name), "crmd.log")
}

// ConfigPath returns the global config file path.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// EnsureDir creates the profile directory tree with proper permissions.
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
