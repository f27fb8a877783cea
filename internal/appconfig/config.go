// Package appconfig loads deldupes.json, a HuJSON (JSON-with-comments)
// configuration file, the way the teacher's root config.go loads .tk.json:
// defaults, then a global file, then a project file, then explicit CLI
// overrides, each layer only overriding fields it actually sets.
package appconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tailscale/hujson"
)

// Config is the application-level tuning surface spec.md §9 calls out as
// an extension point (paranoid rehashing, the prefix-hash size threshold)
// plus the scan pipeline's batching knobs.
type Config struct {
	Workers              int           `json:"workers"`
	Paranoid             bool          `json:"paranoid"`
	PrefixThresholdBytes int64         `json:"prefixThresholdBytes"`
	BatchMaxOps          int           `json:"batchMaxOps"`
	BatchMaxInterval     time.Duration `json:"-"`
	BatchMaxIntervalMS   int64         `json:"batchMaxIntervalMs"`
}

// Default returns the built-in defaults, before any file or CLI layer is
// applied.
func Default() Config {
	return Config{
		Workers:              0, // 0 means runtime.NumCPU() at use site.
		Paranoid:             false,
		PrefixThresholdBytes: 32 * 1024,
		BatchMaxOps:          4096,
		BatchMaxInterval:     time.Second,
		BatchMaxIntervalMS:   1000,
	}
}

// globalConfigPath returns $XDG_CONFIG_HOME/deldupes/config.json, falling
// back to $HOME/.config/deldupes/config.json.
func globalConfigPath() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "deldupes", "config.json"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("appconfig: resolve home dir: %w", err)
	}

	return filepath.Join(home, ".config", "deldupes", "config.json"), nil
}

// Load applies, in order, the built-in defaults, the global config file (if
// present), and the project config file at projectDir/deldupes.json (if
// present). Each layer only overrides the fields it actually sets in its
// file; a missing file is not an error.
func Load(projectDir string) (Config, error) {
	cfg := Default()

	globalPath, err := globalConfigPath()
	if err != nil {
		return Config{}, err
	}

	if err := mergeFile(&cfg, globalPath); err != nil {
		return Config{}, fmt.Errorf("appconfig: global config: %w", err)
	}

	projectPath := filepath.Join(projectDir, "deldupes.json")

	if err := mergeFile(&cfg, projectPath); err != nil {
		return Config{}, fmt.Errorf("appconfig: project config: %w", err)
	}

	cfg.BatchMaxInterval = time.Duration(cfg.BatchMaxIntervalMS) * time.Millisecond

	return cfg, nil
}

// overlay is the JSON-decodable shape used to detect which fields a config
// file actually set, so a layer never clobbers an earlier layer's value
// with a JSON zero value for a field the file simply omitted.
type overlay struct {
	Workers              *int   `json:"workers"`
	Paranoid             *bool  `json:"paranoid"`
	PrefixThresholdBytes *int64 `json:"prefixThresholdBytes"`
	BatchMaxOps          *int   `json:"batchMaxOps"`
	BatchMaxIntervalMS   *int64 `json:"batchMaxIntervalMs"`
}

func mergeFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}

		return fmt.Errorf("read %s: %w", path, err)
	}

	ast, err := hujson.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	ast.Standardize()

	var ov overlay
	if err := json.Unmarshal(ast.Pack(), &ov); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}

	if ov.Workers != nil {
		cfg.Workers = *ov.Workers
	}

	if ov.Paranoid != nil {
		cfg.Paranoid = *ov.Paranoid
	}

	if ov.PrefixThresholdBytes != nil {
		cfg.PrefixThresholdBytes = *ov.PrefixThresholdBytes
	}

	if ov.BatchMaxOps != nil {
		cfg.BatchMaxOps = *ov.BatchMaxOps
	}

	if ov.BatchMaxIntervalMS != nil {
		cfg.BatchMaxIntervalMS = *ov.BatchMaxIntervalMS
	}

	return nil
}

// ApplyCLIOverrides is the final precedence layer: any non-zero value the
// CLI flag layer explicitly set wins over file-derived configuration.
func ApplyCLIOverrides(cfg Config, workers int, paranoid, paranoidSet bool, batchMaxOps int) Config {
	if workers > 0 {
		cfg.Workers = workers
	}

	if paranoidSet {
		cfg.Paranoid = paranoid
	}

	if batchMaxOps > 0 {
		cfg.BatchMaxOps = batchMaxOps
	}

	return cfg
}
