package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the deployment knobs. Everything has a working default; a
// yaml file is optional and the PORT environment variable wins over both.
type Config struct {
	Port            string
	GraceWindow     time.Duration
	MaxMessageBytes int64
}

// fileConfig is the yaml shape; durations travel as strings ("30s", "5m").
type fileConfig struct {
	Port            string `yaml:"port"`
	GraceWindow     string `yaml:"graceWindow"`
	MaxMessageBytes int64  `yaml:"maxMessageBytes"`
}

func Default() Config {
	return Config{
		Port:            "8080",
		GraceWindow:     5 * time.Minute,
		MaxMessageBytes: 50 << 20, // document blobs travel inline
	}
}

// Load reads the optional yaml file at path (empty path skips it) and
// applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		var fc fileConfig
		if err := yaml.Unmarshal(b, &fc); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
		if fc.Port != "" {
			cfg.Port = fc.Port
		}
		if fc.GraceWindow != "" {
			grace, err := time.ParseDuration(fc.GraceWindow)
			if err != nil {
				return cfg, fmt.Errorf("parse graceWindow: %w", err)
			}
			cfg.GraceWindow = grace
		}
		if fc.MaxMessageBytes > 0 {
			cfg.MaxMessageBytes = fc.MaxMessageBytes
		}
	}

	if port := os.Getenv("PORT"); port != "" {
		cfg.Port = port
	}
	return cfg, nil
}
