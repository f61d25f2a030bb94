package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind. Used by
// [Validate] to warn about unrecognised names.
var ValidProviderNames = map[string][]string{
	"stt":  {"openai", "whisper", "whisper-native"},
	"llm":  {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"tts":  {"openai", "elevenlabs"},
	"turn": {"http"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	expandSecrets(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// expandSecrets resolves ${VAR} references in api_key fields so keys can live
// in the environment (or a .env file) instead of the config file.
func expandSecrets(cfg *Config) {
	for _, entry := range []*ProviderEntry{
		&cfg.Providers.STT,
		&cfg.Providers.LLM,
		&cfg.Providers.LLMFallback,
		&cfg.Providers.TTS,
		&cfg.Providers.Turn,
	} {
		entry.APIKey = os.ExpandEnv(entry.APIKey)
	}
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("llm", cfg.Providers.LLMFallback.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)
	validateProviderName("turn", cfg.Providers.Turn.Name)

	// The three pipeline stages are mandatory; without any one of them no
	// utterance can complete.
	if cfg.Providers.STT.Name == "" {
		errs = append(errs, errors.New("providers.stt is required"))
	}
	if cfg.Providers.LLM.Name == "" {
		errs = append(errs, errors.New("providers.llm is required"))
	}
	if cfg.Providers.TTS.Name == "" {
		errs = append(errs, errors.New("providers.tts is required"))
	}
	if cfg.Providers.LLMFallback.Name == "" {
		slog.Warn("providers.llm_fallback is not configured; generation failures go straight to the apology reply")
	}
	if cfg.Providers.Turn.Name == "" {
		slog.Warn("providers.turn is not configured; binary audio frames dispatch without turn detection")
	}

	if cfg.Audio.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d must be positive", cfg.Audio.SampleRate))
	}
	if cfg.Audio.BufferHighWater < 0 || cfg.Audio.BufferLowWater < 0 {
		errs = append(errs, errors.New("audio buffer watermarks must be non-negative"))
	}
	if cfg.Audio.BufferHighWater > 0 && cfg.Audio.BufferLowWater >= cfg.Audio.BufferHighWater {
		errs = append(errs, fmt.Errorf("audio.buffer_low_water %d must be below buffer_high_water %d",
			cfg.Audio.BufferLowWater, cfg.Audio.BufferHighWater))
	}

	if cfg.Turn.Threshold < 0 || cfg.Turn.Threshold > 1 {
		errs = append(errs, fmt.Errorf("turn.threshold %.2f is out of range [0, 1]", cfg.Turn.Threshold))
	}
	if cfg.Turn.IntervalMS < 0 || cfg.Turn.TimeoutMS < 0 {
		errs = append(errs, errors.New("turn interval_ms and timeout_ms must be non-negative"))
	}

	if cfg.Pipeline.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("pipeline.max_tokens %d must be non-negative", cfg.Pipeline.MaxTokens))
	}

	if cfg.History.Enabled && cfg.History.Path == "" {
		errs = append(errs, errors.New("history.path is required when history is enabled"))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
