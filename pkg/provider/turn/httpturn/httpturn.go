// Package httpturn provides a turn.Classifier backed by a remote HTTP
// classification service.
//
// The service receives the speech window as base64-encoded PCM16 and replies
// with a JSON completion verdict:
//
//	POST {baseURL}/classify
//	{"audio": "<base64 PCM16>", "sample_rate": 16000}
//	→ {"is_complete": true, "probability": 0.92}
package httpturn

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/voxrelay/voxrelay/pkg/audio"
	"github.com/voxrelay/voxrelay/pkg/provider/turn"
)

const defaultSampleRate = 16000

// Compile-time assertion that Classifier implements turn.Classifier.
var _ turn.Classifier = (*Classifier)(nil)

// Option is a functional option for configuring the Classifier.
type Option func(*Classifier)

// WithSampleRate sets the sample rate reported to the service (default 16000).
func WithSampleRate(rate int) Option {
	return func(c *Classifier) {
		c.sampleRate = rate
	}
}

// WithHTTPClient overrides the HTTP client used for classification calls.
// Call deadlines come from the caller's context, so the client itself
// normally carries no timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Classifier) {
		c.httpClient = hc
	}
}

// Classifier calls a remote turn-classification service over HTTP.
type Classifier struct {
	baseURL    string
	sampleRate int
	httpClient *http.Client
}

// New creates a Classifier for the service at baseURL.
func New(baseURL string, opts ...Option) (*Classifier, error) {
	if baseURL == "" {
		return nil, errors.New("httpturn: baseURL must not be empty")
	}
	c := &Classifier{
		baseURL:    baseURL,
		sampleRate: defaultSampleRate,
		httpClient: &http.Client{},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// classifyRequest is the JSON payload for POST /classify.
type classifyRequest struct {
	Audio      string `json:"audio"`
	SampleRate int    `json:"sample_rate"`
}

// classifyResponse is the service's verdict.
type classifyResponse struct {
	IsComplete  bool    `json:"is_complete"`
	Probability float64 `json:"probability"`
}

// Classify implements turn.Classifier. The window is quantized to PCM16 for
// transport; the classifier does not need float precision.
func (c *Classifier) Classify(ctx context.Context, samples []float32) (turn.Decision, error) {
	if len(samples) == 0 {
		return turn.Decision{}, errors.New("httpturn: empty sample window")
	}

	body, err := json.Marshal(classifyRequest{
		Audio:      audio.EncodeTransport(samples),
		SampleRate: c.sampleRate,
	})
	if err != nil {
		return turn.Decision{}, fmt.Errorf("httpturn: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/classify", bytes.NewReader(body))
	if err != nil {
		return turn.Decision{}, fmt.Errorf("httpturn: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return turn.Decision{}, fmt.Errorf("httpturn: classify HTTP: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return turn.Decision{}, fmt.Errorf("httpturn: classify: unexpected status %d: %s", resp.StatusCode, detail)
	}

	var cr classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return turn.Decision{}, fmt.Errorf("httpturn: decode response: %w", err)
	}
	return turn.Decision{Complete: cr.IsComplete, Probability: cr.Probability}, nil
}
