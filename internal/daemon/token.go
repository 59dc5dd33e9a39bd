package daemon

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/Umareee/messenger-crm/internal/profile"
)

// EnsureBridgeToken returns the profile's bridge token, minting and
// persisting one on first run. The token file is how local callers (the
// CLI and the companion host) prove they own this profile, so it is
// created 0600.
func EnsureBridgeToken(profileName string) (string, error) {
	path := profile.BridgeTokenPath(profileName)

	raw, err := os.ReadFile(path)
	if err == nil {
		token := strings.TrimSpace(string(raw))
		if token != "" {
			return token, nil
		}
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("read bridge token: %w", err)
	}

	if err := profile.EnsureDir(profileName); err != nil {
		return "", err
	}
	token := uuid.NewString()
	if err := os.WriteFile(path, []byte(token+"\n"), 0600); err != nil {
		return "", fmt.Errorf("write bridge token: %w", err)
	}
	return token, nil
}

// ReadBridgeToken returns the profile's bridge token without creating
// one. Used by the CLI, which must not race the daemon on first run.
func ReadBridgeToken(profileName string) (string, error) {
	raw, err := os.ReadFile(profile.BridgeTokenPath(profileName))
	if err != nil {
		return "", fmt.Errorf("read bridge token (is the daemon running?): %w", err)
	}
	token := strings.TrimSpace(string(raw))
	if token == "" {
		return "", fmt.Errorf("bridge token file is empty")
	}
	return token, nil
}
