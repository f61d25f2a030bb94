// Package stt defines the Provider interface for Speech-to-Text backends.
//
// An STT provider wraps a transcription service (OpenAI's audio API, a local
// whisper-server, or the whisper.cpp bindings) behind a single batch call:
// the relay hands over one complete utterance of float32 PCM samples and gets
// back the transcribed text. Streaming partials are deliberately out of
// scope — the relay's turn detector decides utterance boundaries before any
// transcription happens, so every request is already a whole utterance.
//
// Implementations must be safe for concurrent use; the relay may transcribe
// utterances from many sessions at once.
package stt

import "context"

// Transcript is the result of transcribing one utterance.
type Transcript struct {
	// Text is the transcribed speech content. May be empty when the audio
	// contains no recognisable speech.
	Text string

	// Confidence is the overall confidence score (0.0–1.0). Zero when the
	// backend does not report confidence.
	Confidence float64
}

// Provider is the abstraction over any transcription backend.
type Provider interface {
	// Transcribe converts one utterance of mono float32 PCM samples in
	// [-1, 1] at the given sample rate into text. An empty transcript is a
	// valid result, not an error; errors indicate the backend could not be
	// reached or rejected the request.
	//
	// Implementations must respect ctx cancellation and deadlines promptly.
	Transcribe(ctx context.Context, samples []float32, sampleRate int) (Transcript, error)
}
