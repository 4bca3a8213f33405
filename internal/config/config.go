// Package config provides the configuration schema, loader, and preference
// persistence for the pixelholo control panel.
package config

// LogLevel controls log verbosity for the panel.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for the panel.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Service ServiceConfig `yaml:"service"`
	Panel   PanelConfig   `yaml:"panel"`
	Audio   AudioConfig   `yaml:"audio"`
	Train   TrainConfig   `yaml:"train"`
}

// ServiceConfig locates the remote inference service.
type ServiceConfig struct {
	// BaseURL is the root address of the inference service
	// (e.g. "http://localhost:8000"). This is the one preference that is
	// persisted across runs via [Save].
	BaseURL string `yaml:"base_url"`

	// TimeoutSeconds bounds non-streaming calls (upload, profiles).
	// Zero selects the client default.
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// PanelConfig holds local settings of the panel process itself.
type PanelConfig struct {
	// OpsAddr is the optional TCP address for the local /metrics and
	// health endpoints (e.g. ":9090"). Empty disables the ops server.
	OpsAddr string `yaml:"ops_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// AudioConfig tunes the playback pipeline.
type AudioConfig struct {
	// SampleRate is the playback mix rate in Hz. Incoming chunks are
	// resampled to this rate. Default 48000.
	SampleRate int `yaml:"sample_rate"`

	// SafetyMarginMs absorbs scheduling jitter so chunks are never placed
	// in the past. Default 50.
	SafetyMarginMs int `yaml:"safety_margin_ms"`

	// FadeMs is the attack/release fade applied at chunk boundaries.
	// Default 10.
	FadeMs int `yaml:"fade_ms"`

	// OverlapMs is the crossfade overlap between consecutive chunks.
	// Default 8.
	OverlapMs int `yaml:"overlap_ms"`
}

// TrainConfig holds default tunables sent with training requests. The
// server applies its own defaults for zero values.
type TrainConfig struct {
	BatchSize        int  `yaml:"batch_size"`
	Epochs           int  `yaml:"epochs"`
	MaxLen           int  `yaml:"max_len"`
	AutoSelectEpoch  bool `yaml:"auto_select_epoch"`
	AutoTuneProfile  bool `yaml:"auto_tune_profile"`
	AutoBuildLexicon bool `yaml:"auto_build_lexicon"`
	SelectThorough   bool `yaml:"select_thorough"`
	SelectUseWER     bool `yaml:"select_use_wer"`
	EarlyStop        bool `yaml:"early_stop"`
}

// Default playback tuning values applied by [applyDefaults].
const (
	DefaultSampleRate     = 48000
	DefaultSafetyMarginMs = 50
	DefaultFadeMs         = 10
	DefaultOverlapMs      = 8
	DefaultBaseURL        = "http://localhost:8000"
)
