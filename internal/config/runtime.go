package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/smazurov/snapcam/internal/camera"
	"github.com/smazurov/snapcam/internal/logging"
)

// Runtime holds the settings that may change while serving.
type Runtime struct {
	Logging        logging.Config
	CaptureTimeout time.Duration
}

// LoadRuntime reads the reloadable subset of the config file. A missing
// [capture] table leaves CaptureTimeout at camera.DefaultTimeout.
func LoadRuntime(path string) (Runtime, error) {
	rt := Runtime{CaptureTimeout: camera.DefaultTimeout}

	data, err := os.ReadFile(path)
	if err != nil {
		return rt, err
	}

	var raw struct {
		Logging map[string]any `toml:"logging"`
		Capture struct {
			TimeoutMs int64 `toml:"timeout_ms"`
		} `toml:"capture"`
	}
	if err := toml.Unmarshal(data, &raw); err != nil {
		return rt, fmt.Errorf("failed to parse TOML config: %w", err)
	}

	rt.Logging = loggingFromTable(raw.Logging)
	if raw.Capture.TimeoutMs > 0 {
		rt.CaptureTimeout = time.Duration(raw.Capture.TimeoutMs) * time.Millisecond
	}
	return rt, nil
}

// LoadLoggingConfig loads the [logging] table. It returns defaults when the
// file is missing or cannot be parsed.
func LoadLoggingConfig(path string) logging.Config {
	if path == "" {
		return loggingFromTable(nil)
	}
	rt, err := LoadRuntime(path)
	if err != nil {
		return loggingFromTable(nil)
	}
	return rt.Logging
}

// loggingFromTable splits a [logging] table into global settings, the
// [logging.file] sub-table and per-module levels.
func loggingFromTable(table map[string]any) logging.Config {
	cfg := logging.Config{
		Level:   "info",
		Format:  "text",
		Modules: make(map[string]string),
	}

	for key, value := range table {
		switch key {
		case "level":
			if s, ok := value.(string); ok {
				cfg.Level = s
			}
		case "format":
			if s, ok := value.(string); ok {
				cfg.Format = s
			}
		case "file":
			file, ok := value.(map[string]any)
			if !ok {
				continue
			}
			if s, ok := file["path"].(string); ok {
				cfg.File.Path = s
			}
			if n, ok := file["max_size_mb"].(int64); ok {
				cfg.File.MaxSizeMB = int(n)
			}
			if n, ok := file["max_backups"].(int64); ok {
				cfg.File.MaxBackups = int(n)
			}
			if n, ok := file["max_age_days"].(int64); ok {
				cfg.File.MaxAgeDays = int(n)
			}
		default:
			if s, ok := value.(string); ok && s != "" {
				cfg.Modules[key] = s
			}
		}
	}
	return cfg
}
