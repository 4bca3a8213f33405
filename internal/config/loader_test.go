package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Service.BaseURL != DefaultBaseURL {
		t.Errorf("BaseURL = %q, want %q", cfg.Service.BaseURL, DefaultBaseURL)
	}
	if cfg.Audio.SampleRate != DefaultSampleRate {
		t.Errorf("SampleRate = %d, want %d", cfg.Audio.SampleRate, DefaultSampleRate)
	}
	if cfg.Panel.LogLevel != LogInfo {
		t.Errorf("LogLevel = %q, want info", cfg.Panel.LogLevel)
	}
}

func TestLoadFromReader_ParsesFullConfig(t *testing.T) {
	t.Parallel()

	yaml := `
service:
  base_url: "http://voice.internal:9000"
  timeout_seconds: 60
panel:
  ops_addr: ":9090"
  log_level: debug
audio:
  sample_rate: 24000
  safety_margin_ms: 80
  fade_ms: 12
  overlap_ms: 6
train:
  batch_size: 16
  epochs: 50
  auto_select_epoch: true
  select_use_wer: true
`
	cfg, err := LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Service.BaseURL != "http://voice.internal:9000" {
		t.Errorf("BaseURL = %q", cfg.Service.BaseURL)
	}
	if cfg.Service.TimeoutSeconds != 60 {
		t.Errorf("TimeoutSeconds = %d, want 60", cfg.Service.TimeoutSeconds)
	}
	if cfg.Panel.OpsAddr != ":9090" {
		t.Errorf("OpsAddr = %q", cfg.Panel.OpsAddr)
	}
	if cfg.Panel.LogLevel != LogDebug {
		t.Errorf("LogLevel = %q, want debug", cfg.Panel.LogLevel)
	}
	if cfg.Audio.SampleRate != 24000 || cfg.Audio.SafetyMarginMs != 80 {
		t.Errorf("Audio = %+v", cfg.Audio)
	}
	if cfg.Train.Epochs != 50 || !cfg.Train.AutoSelectEpoch || !cfg.Train.SelectUseWER {
		t.Errorf("Train = %+v", cfg.Train)
	}
}

func TestLoadFromReader_EmptyInputYieldsDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Audio.FadeMs != DefaultFadeMs || cfg.Audio.OverlapMs != DefaultOverlapMs {
		t.Errorf("Audio defaults = %+v", cfg.Audio)
	}
}

func TestLoadFromReader_RejectsUnknownFields(t *testing.T) {
	t.Parallel()

	if _, err := LoadFromReader(strings.NewReader("serviec:\n  base_url: x\n")); err == nil {
		t.Fatal("accepted a misspelled section name")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := func() *Config {
		cfg := &Config{}
		applyDefaults(cfg)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults pass", func(*Config) {}, ""},
		{"bad log level", func(c *Config) { c.Panel.LogLevel = "loud" }, "log_level"},
		{"empty base url", func(c *Config) { c.Service.BaseURL = "" }, "base_url"},
		{"negative timeout", func(c *Config) { c.Service.TimeoutSeconds = -1 }, "timeout_seconds"},
		{"zero sample rate", func(c *Config) { c.Audio.SampleRate = 0 }, "sample_rate"},
		{"negative margin", func(c *Config) { c.Audio.SafetyMarginMs = -1 }, "safety_margin_ms"},
		{"negative fade", func(c *Config) { c.Audio.FadeMs = -1 }, "fade_ms"},
		{"negative overlap", func(c *Config) { c.Audio.OverlapMs = -1 }, "overlap_ms"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := valid()
			tc.mutate(cfg)
			err := Validate(cfg)
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("Validate passed, want error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error %q does not mention %q", err, tc.wantErr)
			}
		})
	}
}

func TestValidate_JoinsMultipleFailures(t *testing.T) {
	t.Parallel()

	cfg := &Config{}
	cfg.Service.BaseURL = ""
	cfg.Audio.SampleRate = -5
	cfg.Panel.LogLevel = "shout"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Validate passed")
	}
	for _, want := range []string{"base_url", "sample_rate", "log_level"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("joined error missing %q: %v", want, err)
		}
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := &Config{}
	applyDefaults(cfg)
	cfg.Service.BaseURL = "http://saved.example:8000"
	cfg.Train.Epochs = 25

	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("saved file missing: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Service.BaseURL != "http://saved.example:8000" {
		t.Errorf("BaseURL after round trip = %q", loaded.Service.BaseURL)
	}
	if loaded.Train.Epochs != 25 {
		t.Errorf("Epochs after round trip = %d, want 25", loaded.Train.Epochs)
	}
}

func TestSave_RejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	cfg := &Config{}
	applyDefaults(cfg)
	cfg.Audio.SampleRate = -1

	if err := Save(filepath.Join(t.TempDir(), "c.yaml"), cfg); err == nil {
		t.Fatal("Save accepted an invalid config")
	}
}

func TestLogLevelIsValid(t *testing.T) {
	t.Parallel()

	for _, l := range []LogLevel{LogDebug, LogInfo, LogWarn, LogError} {
		if !l.IsValid() {
			t.Errorf("%q reported invalid", l)
		}
	}
	if LogLevel("verbose").IsValid() {
		t.Error("verbose reported valid")
	}
}
