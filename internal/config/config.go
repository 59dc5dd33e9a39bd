package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// DefaultListenAddr is where the daemon API listens when config is silent.
const DefaultListenAddr = "127.0.0.1:8420"

// DefaultAccountID scopes documents when no identity-provider account is
// configured for the profile.
const DefaultAccountID = "local"

// Config represents the global ~/.messenger-crm/config.toml.
type Config struct {
	DefaultProfile string `toml:"default_profile"`
	ListenAddr     string `toml:"listen_addr"`
	// AccountID is the identity-provider subject that owns this
	// installation's documents. Tokens for any other subject are rejected.
	AccountID string `toml:"account_id"`
	// JWTSecret verifies bearer tokens issued by the identity provider.
	// When empty, only local bridge-token auth is accepted.
	JWTSecret string `toml:"jwt_secret"`
}

// Load reads config from the given path. Returns zero config and error if file missing.
func Load(path string) (*Config, error) {
	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault reads config from path, falling back to a zero config if
// the file is missing or unreadable.
func LoadOrDefault(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		cfg = &Config{}
	}
	return cfg
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

// Addr returns the configured listen address or the default.
func (c *Config) Addr() string {
	if c.ListenAddr != "" {
		return c.ListenAddr
	}
	return DefaultListenAddr
}

// Account returns the configured account id or the default.
func (c *Config) Account() string {
	if c.AccountID != "" {
		return c.AccountID
	}
	return DefaultAccountID
}
