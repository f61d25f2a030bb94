package anyllm

import (
	"strings"
	"testing"

	"github.com/voxrelay/voxrelay/pkg/provider/llm"
)

func TestNew_Validation(t *testing.T) {
	if _, err := New("", "llama3"); err == nil {
		t.Error("expected error for empty providerName")
	}
	if _, err := New("ollama", ""); err == nil {
		t.Error("expected error for empty model")
	}
}

func TestNew_UnsupportedBackend(t *testing.T) {
	_, err := New("carrier-pigeon", "v1")
	if err == nil {
		t.Fatal("expected error for unsupported backend")
	}
	if !strings.Contains(err.Error(), "carrier-pigeon") {
		t.Errorf("error %q does not name the backend", err)
	}
}

func TestBuildParams(t *testing.T) {
	p := &Provider{model: "llama3"}

	params := p.buildParams(llm.CompletionRequest{
		SystemPrompt: "Be brief.",
		Messages: []llm.Message{
			{Role: "user", Content: "hi"},
			{Role: "assistant", Content: "hello"},
		},
		MaxTokens:   128,
		Temperature: 0.3,
	})

	if params.Model != "llama3" {
		t.Errorf("model = %q", params.Model)
	}
	if len(params.Messages) != 3 {
		t.Fatalf("got %d messages, want 3", len(params.Messages))
	}
	if params.Messages[0].Role != "system" || params.Messages[0].Content != "Be brief." {
		t.Errorf("first message = %+v, want the system prompt", params.Messages[0])
	}
	if params.Messages[1].Role != "user" || params.Messages[2].Role != "assistant" {
		t.Errorf("history roles = %q, %q", params.Messages[1].Role, params.Messages[2].Role)
	}
	if params.MaxTokens == nil || *params.MaxTokens != 128 {
		t.Errorf("max_tokens = %v, want 128", params.MaxTokens)
	}
	if params.Temperature == nil || *params.Temperature != 0.3 {
		t.Errorf("temperature = %v, want 0.3", params.Temperature)
	}
}

func TestBuildParams_ZeroLimitsUnset(t *testing.T) {
	p := &Provider{model: "llama3"}

	params := p.buildParams(llm.CompletionRequest{
		Messages: []llm.Message{{Role: "user", Content: "hi"}},
	})
	if params.MaxTokens != nil {
		t.Errorf("max_tokens = %v, want nil", params.MaxTokens)
	}
	if params.Temperature != nil {
		t.Errorf("temperature = %v, want nil", params.Temperature)
	}
}
