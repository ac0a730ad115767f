// Package config loads and saves the on-disk TOML representation of an
// instance's pipeline options, for the demo daemon. Library callers
// normally construct wacore.Options directly in code instead of going
// through a file.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the on-disk ~/.wacore/instances/<name>/config.toml shape,
// mirroring the pipeline's Config surface.
type Config struct {
	TreatCiphertextMessagesAsReal bool `toml:"treat_ciphertext_messages_as_real"`
	RetryRequestDelayMs           int  `toml:"retry_request_delay_ms"`
	DownloadHistory               bool `toml:"download_history"`
	SendActiveReceipts            bool `toml:"send_active_receipts"`
	MinPreKeyCount                int  `toml:"min_prekey_count"`
	HistorySyncDebounceMs         int  `toml:"history_sync_debounce_ms"`
}

// HistorySyncDebounce returns the configured debounce window as a
// time.Duration. Zero means "use the caller's default".
func (c *Config) HistorySyncDebounce() time.Duration {
	return time.Duration(c.HistorySyncDebounceMs) * time.Millisecond
}

// Load reads config from the given path. Returns an error if the file is
// missing or malformed.
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
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
