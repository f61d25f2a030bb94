package openai

import (
	"testing"

	"github.com/voxrelay/voxrelay/pkg/provider/llm"
)

func TestNew_Validation(t *testing.T) {
	if _, err := New("", "gpt-4o-mini"); err == nil {
		t.Error("expected error for empty apiKey")
	}
	if _, err := New("sk-test", ""); err == nil {
		t.Error("expected error for empty model")
	}
	if _, err := New("sk-test", "gpt-4o-mini"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestBuildParams_SystemPromptFirst(t *testing.T) {
	p, err := New("sk-test", "gpt-4o-mini")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	params := p.buildParams(llm.CompletionRequest{
		SystemPrompt: "Be brief.",
		Messages: []llm.Message{
			{Role: "user", Content: "hi"},
			{Role: "assistant", Content: "hello"},
			{Role: "user", Content: "how are you"},
		},
	})

	if len(params.Messages) != 4 {
		t.Fatalf("got %d messages, want 4", len(params.Messages))
	}
	if params.Messages[0].OfSystem == nil {
		t.Error("expected first message to be the system prompt")
	}
	if params.Messages[1].OfUser == nil {
		t.Error("expected second message to be user")
	}
	if params.Messages[2].OfAssistant == nil {
		t.Error("expected third message to be assistant")
	}
	if string(params.Model) != "gpt-4o-mini" {
		t.Errorf("model = %q", params.Model)
	}
}

func TestBuildParams_Limits(t *testing.T) {
	p, err := New("sk-test", "gpt-4o-mini")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	params := p.buildParams(llm.CompletionRequest{
		Messages:    []llm.Message{{Role: "user", Content: "hi"}},
		MaxTokens:   256,
		Temperature: 0.5,
	})
	if got := params.MaxCompletionTokens.Or(0); got != 256 {
		t.Errorf("max_completion_tokens = %d, want 256", got)
	}
	if got := params.Temperature.Or(0); got != 0.5 {
		t.Errorf("temperature = %v, want 0.5", got)
	}

	params = p.buildParams(llm.CompletionRequest{
		Messages: []llm.Message{{Role: "user", Content: "hi"}},
	})
	if params.MaxCompletionTokens.Valid() {
		t.Error("expected unset max_completion_tokens for zero MaxTokens")
	}
}
