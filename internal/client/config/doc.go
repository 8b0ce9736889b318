// Package config loads runtime configuration for qmsctl.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON or YAML file given with --config.
//  3. QMSCTL_* environment variables.
//  4. Command-line flags, applied by the cli package on top of the result.
//
// # File schema
//
// Durations use timex.Duration, so "30s" and integer nanoseconds both work:
//
//	server_url: http://127.0.0.1:8080
//	journal: /home/qa/.qmsctl/journal.db
//	request_timeout: 30s
package config
