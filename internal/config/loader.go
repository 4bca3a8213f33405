package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied. A missing file is not an error: the
// defaults are returned so a fresh install works without any setup.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := &Config{}
			applyDefaults(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg back to path, creating parent directories as needed. This
// is how the panel persists the service base URL preference across runs.
func Save(path string, cfg *Config) error {
	if err := Validate(cfg); err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: create %q: %w", dir, err)
		}
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write %q: %w", path, err)
	}
	return nil
}

// DefaultPath returns the per-user config file location
// (<user config dir>/pixelholo/config.yaml), falling back to the working
// directory when the user config dir cannot be determined.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "pixelholo.yaml"
	}
	return filepath.Join(dir, "pixelholo", "config.yaml")
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Panel.LogLevel != "" && !cfg.Panel.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("panel.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Panel.LogLevel))
	}
	if cfg.Service.BaseURL == "" {
		errs = append(errs, errors.New("service.base_url must not be empty"))
	}
	if cfg.Service.TimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("service.timeout_seconds must not be negative (got %d)", cfg.Service.TimeoutSeconds))
	}
	if cfg.Audio.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate must be positive (got %d)", cfg.Audio.SampleRate))
	}
	if cfg.Audio.SafetyMarginMs < 0 {
		errs = append(errs, fmt.Errorf("audio.safety_margin_ms must not be negative (got %d)", cfg.Audio.SafetyMarginMs))
	}
	if cfg.Audio.FadeMs < 0 {
		errs = append(errs, fmt.Errorf("audio.fade_ms must not be negative (got %d)", cfg.Audio.FadeMs))
	}
	if cfg.Audio.OverlapMs < 0 {
		errs = append(errs, fmt.Errorf("audio.overlap_ms must not be negative (got %d)", cfg.Audio.OverlapMs))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %w", errors.Join(errs...))
	}
	return nil
}

// applyDefaults fills zero-valued fields with the panel defaults.
func applyDefaults(cfg *Config) {
	if cfg.Service.BaseURL == "" {
		cfg.Service.BaseURL = DefaultBaseURL
	}
	if cfg.Panel.LogLevel == "" {
		cfg.Panel.LogLevel = LogInfo
	}
	if cfg.Audio.SampleRate == 0 {
		cfg.Audio.SampleRate = DefaultSampleRate
	}
	if cfg.Audio.SafetyMarginMs == 0 {
		cfg.Audio.SafetyMarginMs = DefaultSafetyMarginMs
	}
	if cfg.Audio.FadeMs == 0 {
		cfg.Audio.FadeMs = DefaultFadeMs
	}
	if cfg.Audio.OverlapMs == 0 {
		cfg.Audio.OverlapMs = DefaultOverlapMs
	}
}
