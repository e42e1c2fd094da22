// Package config loads lockstepd's JSON configuration file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Log controls where and how verbosely the process logs.
type Log struct {
	Level string `json:"level"`
	Path  string `json:"path"`
}

// Metrics controls the prometheus HTTP exporter.
type Metrics struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr"`
}

// Match carries the netplay parameters that are not negotiated over the
// wire: queue bound, input delay, and whether the optional symmetric
// remote-delay extension is in effect.
type Match struct {
	InputDelay     uint32 `json:"input_delay"`
	RemoteDelay    uint32 `json:"remote_delay"`
	MaxQueueLength int    `json:"max_queue_length"`
}

// Config is the top-level lockstepd configuration.
type Config struct {
	Log     Log     `json:"log"`
	Metrics Metrics `json:"metrics"`
	Match   Match   `json:"match"`
}

// Default returns the configuration used when no config file is supplied.
func Default() Config {
	return Config{
		Log: Log{
			Level: "info",
			Path:  "lockstepd.log",
		},
		Metrics: Metrics{
			Enabled: true,
			Addr:    ":9112",
		},
		Match: Match{
			InputDelay:     2,
			RemoteDelay:    0,
			MaxQueueLength: 600,
		},
	}
}

// Load reads and parses path, falling back to Default for any field absent
// from the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		return cfg, nil
	}

	buf, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	if err := json.Unmarshal(buf, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	return cfg, nil
}
