package config

import (
	"os"
	"path/filepath"
	"time"
)

// Config holds runtime settings for qmsctl.
//
// Fields:
//   - ServerURL: base URL of the QMS HTTP API.
//   - JournalPath: SQLite file holding the offline signature journal and session.
//   - RequestTimeout: per-request HTTP timeout.
type Config struct {
	ServerURL      string
	JournalPath    string
	RequestTimeout time.Duration
}

// LoadDefaults populates c with sensible defaults. The journal lives under
// the user's home directory, or the working directory when there is none.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080"
	c.RequestTimeout = 30 * time.Second

	dir := ".qmsctl"
	if home, err := os.UserHomeDir(); err == nil {
		dir = filepath.Join(home, ".qmsctl")
	}
	c.JournalPath = filepath.Join(dir, "journal.db")
}

// Load applies defaults, then the file at path (if any), then the
// environment as seen through lookup.
func Load(path string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseFile(cfg, path); err != nil {
		return nil, err
	}
	if err := parseEnv(cfg, lookup); err != nil {
		return nil, err
	}
	return cfg, nil
}
