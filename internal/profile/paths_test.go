package profile

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestPathsAreUnderProfileDir(t *testing.T) {
	dir := Dir("work")
	paths := map[string]string{
		"socket": BridgeSocketPath("work"),
		"token":  BridgeTokenPath("work"),
		"lock":   LockPath("work"),
		"db":     DBPath("work"),
		"log":    LogPath("work"),
	}
	for desc, p := range paths {
		if !strings.HasPrefix(p, dir) {
			t.Errorf("%s path %q not under profile dir %q", desc, p, dir)
		}
	}
}

func TestConfigPathIsGlobal(t *testing.T) {
	if filepath.Base(ConfigPath()) != "config.toml" {
		t.Errorf("ConfigPath() = %q, want .../config.toml", ConfigPath())
	}
	if strings.Contains(ConfigPath(), "profiles") {
		t.Errorf("ConfigPath() = %q, should not be profile-scoped", ConfigPath())
	}
}
