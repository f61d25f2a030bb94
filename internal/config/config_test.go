package config

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/voxrelay/voxrelay/pkg/provider/stt"
	sttmock "github.com/voxrelay/voxrelay/pkg/provider/stt/mock"
)

const validYAML = `
server:
  listen_addr: ":8080"
  log_level: info
providers:
  stt:
    name: openai
    api_key: sk-test
  llm:
    name: openai
    api_key: sk-test
    model: gpt-4o-mini
  llm_fallback:
    name: ollama
    base_url: http://localhost:11434
    model: llama3
  tts:
    name: openai
    api_key: sk-test
  turn:
    name: http
    base_url: http://localhost:9000
audio:
  sample_rate: 16000
  buffer_high_water: 96000
  buffer_low_water: 64000
  silence_floor: 0.001
turn:
  interval_ms: 5000
  timeout_ms: 4000
  threshold: 0.7
  min_samples: 32000
pipeline:
  max_tokens: 256
  voice:
    voice_id: alloy
    name: Alloy
history:
  enabled: true
  path: data/turns.db
telemetry:
  service_name: voxrelay
`

func TestLoadValidConfig(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("listen_addr = %q", cfg.Server.ListenAddr)
	}
	if cfg.Providers.LLM.Model != "gpt-4o-mini" {
		t.Errorf("llm model = %q", cfg.Providers.LLM.Model)
	}
	if cfg.Providers.LLMFallback.Name != "ollama" {
		t.Errorf("llm_fallback = %q", cfg.Providers.LLMFallback.Name)
	}
	if cfg.Turn.Threshold != 0.7 {
		t.Errorf("turn threshold = %v", cfg.Turn.Threshold)
	}
	if !cfg.History.Enabled || cfg.History.Path != "data/turns.db" {
		t.Errorf("history = %+v", cfg.History)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	yaml := `
server:
  listen_addr: ":8080"
  bind_port: 8080
`
	if _, err := LoadFromReader(strings.NewReader(yaml)); err == nil {
		t.Fatal("expected error for unknown field bind_port")
	}
}

func TestLoadExpandsAPIKeySecrets(t *testing.T) {
	t.Setenv("TEST_OPENAI_KEY", "sk-from-env")

	yaml := strings.Replace(validYAML, "api_key: sk-test", "api_key: ${TEST_OPENAI_KEY}", 1)
	cfg, err := LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Providers.STT.APIKey != "sk-from-env" {
		t.Errorf("stt api_key = %q, want %q", cfg.Providers.STT.APIKey, "sk-from-env")
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := &Config{
		Server: ServerConfig{LogLevel: "verbose"},
		Audio:  AudioConfig{BufferHighWater: 1000, BufferLowWater: 2000},
		Turn:   TurnConfig{Threshold: 1.5},
	}
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, want := range []string{"log_level", "buffer_low_water", "threshold", "providers.stt", "providers.llm", "providers.tts"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}

func TestValidateHistoryPathRequired(t *testing.T) {
	cfg := &Config{
		Providers: ProvidersConfig{
			STT: ProviderEntry{Name: "openai"},
			LLM: ProviderEntry{Name: "openai"},
			TTS: ProviderEntry{Name: "openai"},
		},
		History: HistoryConfig{Enabled: true},
	}
	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "history.path") {
		t.Fatalf("err = %v, want history.path error", err)
	}
}

func TestRegistryCreateAndLookup(t *testing.T) {
	r := NewRegistry()
	r.RegisterSTT("mock", func(entry ProviderEntry) (stt.Provider, error) {
		return &sttmock.Provider{}, nil
	})

	p, err := r.CreateSTT(ProviderEntry{Name: "mock"})
	if err != nil {
		t.Fatalf("CreateSTT: %v", err)
	}
	if _, err := p.Transcribe(context.Background(), []float32{0}, 16000); err != nil {
		t.Fatalf("Transcribe: %v", err)
	}

	if _, err := r.CreateSTT(ProviderEntry{Name: "missing"}); !errors.Is(err, ErrProviderNotRegistered) {
		t.Fatalf("err = %v, want ErrProviderNotRegistered", err)
	}
}

func TestRegistryOverwrite(t *testing.T) {
	r := NewRegistry()
	first := &sttmock.Provider{}
	second := &sttmock.Provider{}
	r.RegisterSTT("mock", func(ProviderEntry) (stt.Provider, error) { return first, nil })
	r.RegisterSTT("mock", func(ProviderEntry) (stt.Provider, error) { return second, nil })

	p, err := r.CreateSTT(ProviderEntry{Name: "mock"})
	if err != nil {
		t.Fatalf("CreateSTT: %v", err)
	}
	if p != second {
		t.Error("later registration did not overwrite earlier one")
	}
}
