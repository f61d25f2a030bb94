// Package config provides the configuration schema, loader, and provider
// registry for the voice relay.
package config

// LogLevel controls log verbosity for the relay server.
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

// Config is the root configuration structure for the relay. It is typically
// loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Providers ProvidersConfig `yaml:"providers"`
	Audio     AudioConfig     `yaml:"audio"`
	Turn      TurnConfig      `yaml:"turn"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	History   HistoryConfig   `yaml:"history"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	// CertFile is the path to the PEM-encoded TLS certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded TLS private key.
	KeyFile string `yaml:"key_file"`
}

// ProvidersConfig declares which provider implementation serves each remote
// stage. Each entry selects a named provider registered in the [Registry].
type ProvidersConfig struct {
	STT ProviderEntry `yaml:"stt"`
	LLM ProviderEntry `yaml:"llm"`

	// LLMFallback, when named, is tried after LLM fails. The canned apology
	// reply covers the case where both fail.
	LLMFallback ProviderEntry `yaml:"llm_fallback"`

	TTS ProviderEntry `yaml:"tts"`

	// Turn selects the remote turn-classification backend. Optional; without
	// one, binary audio frames dispatch immediately.
	Turn ProviderEntry `yaml:"turn"`
}

// ProviderEntry is the common configuration block shared by all provider
// types. The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "openai",
	// "whisper", "elevenlabs").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g., "gpt-4o-mini",
	// "whisper-1").
	Model string `yaml:"model"`

	// Options holds provider-specific values not covered by the standard
	// fields above.
	Options map[string]any `yaml:"options"`
}

// AudioConfig tunes the inbound speech buffer.
type AudioConfig struct {
	// SampleRate of inbound audio in Hz. Default 16000.
	SampleRate int `yaml:"sample_rate"`

	// BufferHighWater is the sample count that triggers a trim. Default 96000.
	BufferHighWater int `yaml:"buffer_high_water"`

	// BufferLowWater is the sample count kept after a trim. Default 64000.
	BufferLowWater int `yaml:"buffer_low_water"`

	// SilenceFloor is the RMS level below which buffered audio is treated as
	// silence on the continuous path. Default 0.001.
	SilenceFloor float64 `yaml:"silence_floor"`
}

// TurnConfig tunes turn detection policy. All durations are milliseconds.
type TurnConfig struct {
	// IntervalMS is the minimum time between classifier probes. Default 5000.
	IntervalMS int `yaml:"interval_ms"`

	// TimeoutMS bounds each classifier call. Default 4000.
	TimeoutMS int `yaml:"timeout_ms"`

	// Threshold is the minimum completion probability. Default 0.7.
	Threshold float64 `yaml:"threshold"`

	// MinSamples is the smallest buffered window worth probing. Default 32000.
	MinSamples int `yaml:"min_samples"`

	// MaxUtteranceSamples bounds how much a turn-detected dispatch drains.
	// Default 32000.
	MaxUtteranceSamples int `yaml:"max_utterance_samples"`
}

// PipelineConfig tunes reply generation and synthesis.
type PipelineConfig struct {
	// SystemPrompt steers reply generation. Empty selects the built-in
	// speech-oriented prompt.
	SystemPrompt string `yaml:"system_prompt"`

	// MaxTokens bounds generated replies. Default 256.
	MaxTokens int `yaml:"max_tokens"`

	// Voice selects the synthesis voice.
	Voice VoiceConfig `yaml:"voice"`
}

// VoiceConfig specifies the synthesis voice.
type VoiceConfig struct {
	// VoiceID is the provider-specific voice identifier.
	VoiceID string `yaml:"voice_id"`

	// Name is a human-readable label used in logs.
	Name string `yaml:"name"`
}

// HistoryConfig controls the persistent turn log.
type HistoryConfig struct {
	// Enabled turns persistence on.
	Enabled bool `yaml:"enabled"`

	// Path is the SQLite database file path.
	Path string `yaml:"path"`
}

// TelemetryConfig controls metric and trace export.
type TelemetryConfig struct {
	// ServiceName reported in telemetry. Default "voxrelay".
	ServiceName string `yaml:"service_name"`
}
