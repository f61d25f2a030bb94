// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider wraps a speech synthesis service (OpenAI's audio API,
// ElevenLabs) behind a single batch call: the relay hands over the reply
// text and receives the full audio payload, which is forwarded to the
// browser as one binary frame. The browser decodes the container itself, so
// the payload format is whatever the backend produces (MP3, WAV, raw PCM).
//
// Implementations must be safe for concurrent use.
package tts

import "context"

// VoiceProfile selects a synthesis voice.
type VoiceProfile struct {
	// ID is the backend-specific voice identifier (e.g. "alloy", an
	// ElevenLabs voice UUID).
	ID string

	// Name is the human-readable voice name, used in logs only.
	Name string
}

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// Synthesize converts text into an audio payload using the given voice.
	// An error means no usable audio was produced; there is no partial
	// result. Implementations must respect ctx cancellation promptly.
	Synthesize(ctx context.Context, text string, voice VoiceProfile) ([]byte, error)
}
