package whisper

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestProvider_Transcribe(t *testing.T) {
	var gotLanguage string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/inference" {
			t.Errorf("path = %q, want /inference", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		gotLanguage = r.FormValue("language")

		f, _, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		defer f.Close()
		header := make([]byte, 4)
		if _, err := f.Read(header); err != nil || string(header) != "RIFF" {
			t.Errorf("uploaded file is not a WAV (header %q, err %v)", header, err)
		}

		json.NewEncoder(w).Encode(map[string]string{"text": " Hello there. "})
	}))
	defer srv.Close()

	p, err := New(srv.URL, WithLanguage("de"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	tr, err := p.Transcribe(context.Background(), make([]float32, 1600), 16000)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if tr.Text != " Hello there. " {
		t.Fatalf("Text = %q, want server text verbatim", tr.Text)
	}
	if gotLanguage != "de" {
		t.Fatalf("language field = %q, want de", gotLanguage)
	}
}

func TestProvider_TranscribeServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	p, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = p.Transcribe(context.Background(), make([]float32, 160), 16000)
	if err == nil {
		t.Fatal("expected error for HTTP 500")
	}
	if !strings.Contains(err.Error(), "500") {
		t.Fatalf("error %q does not mention status code", err)
	}
}

func TestNew_EmptyURL(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty server URL")
	}
}
