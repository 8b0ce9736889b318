package config

import (
	"fmt"
	"time"
)

func parseEnv(cfg *Config, lookup func(string) (string, bool)) error {
	if v, ok := lookup("QMSCTL_SERVER_URL"); ok && v != "" {
		cfg.ServerURL = v
	}
	if v, ok := lookup("QMSCTL_JOURNAL"); ok && v != "" {
		cfg.JournalPath = v
	}
	if v, ok := lookup("QMSCTL_REQUEST_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("QMSCTL_REQUEST_TIMEOUT: %w", err)
		}
		cfg.RequestTimeout = d
	}
	return nil
}
