package httpturn

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/voxrelay/voxrelay/pkg/audio"
)

func TestClassify(t *testing.T) {
	window := []float32{0.1, -0.2, 0.3, -0.4}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/classify" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		var req classifyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.SampleRate != 16000 {
			t.Errorf("sample_rate = %d, want 16000", req.SampleRate)
		}
		decoded, err := audio.DecodeTransport(req.Audio)
		if err != nil {
			t.Fatalf("decode audio: %v", err)
		}
		if len(decoded) != len(window) {
			t.Errorf("decoded %d samples, want %d", len(decoded), len(window))
		}
		json.NewEncoder(w).Encode(classifyResponse{IsComplete: true, Probability: 0.92})
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	dec, err := c.Classify(context.Background(), window)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if !dec.Complete {
		t.Error("Complete = false, want true")
	}
	if dec.Probability != 0.92 {
		t.Errorf("Probability = %v, want 0.92", dec.Probability)
	}
}

func TestClassifyServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := c.Classify(context.Background(), []float32{0.5}); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}

func TestClassifyEmptyWindow(t *testing.T) {
	c, err := New("http://localhost:1")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := c.Classify(context.Background(), nil); err == nil {
		t.Fatal("expected error for empty window")
	}
}

func TestNewRequiresURL(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty baseURL")
	}
}
