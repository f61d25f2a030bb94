// Package pipeline runs one utterance through the relay's three remote
// stages: transcription, reply generation, and speech synthesis.
//
// Each dispatch is a linear state machine, Transcribing → Generating →
// Synthesizing → Done, where every stage can fail into a terminal outcome.
// Generation failures are masked: the language model chain falls back across
// its backends and, when all of them fail, a canned apology is synthesized so
// the speaker always hears something. Synthesis is the one stage whose
// failure reaches the client, since without audio there is nothing to say.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/voxrelay/voxrelay/internal/history"
	"github.com/voxrelay/voxrelay/internal/observe"
	"github.com/voxrelay/voxrelay/pkg/provider/llm"
	"github.com/voxrelay/voxrelay/pkg/provider/stt"
	"github.com/voxrelay/voxrelay/pkg/provider/tts"
)

// Client-visible strings. The web client renders these verbatim.
const (
	StatusProcessing = "Processing..."
	MsgNoSpeech      = "No speech detected"
	MsgSynthesisFail = "Failed to generate response"

	// ApologyReply is spoken when every generation backend fails.
	ApologyReply = "I apologize, but I could not generate a response."
)

// DefaultSystemPrompt steers replies toward short spoken-style answers.
const DefaultSystemPrompt = "You are a helpful AI voice assistant. Keep your responses concise, natural, and conversational for speech."

// DefaultMaxTokens bounds reply length; long replies defeat a voice UI.
const DefaultMaxTokens = 256

// Outcome is the terminal state of one dispatch.
type Outcome string

const (
	// OutcomeDone means synthesized audio was emitted.
	OutcomeDone Outcome = "done"

	// OutcomeNoSpeech means transcription produced no text. A normal empty
	// result, not an error.
	OutcomeNoSpeech Outcome = "no_speech"

	// OutcomeTranscribeFailed means the transcription call itself failed.
	OutcomeTranscribeFailed Outcome = "transcribe_failed"

	// OutcomeSynthesisFailed means speech synthesis failed. This is the one
	// unmasked failure.
	OutcomeSynthesisFailed Outcome = "synthesis_failed"
)

// Emitter is the session-side outbound surface the pipeline reports through.
// Emit errors are logged, not propagated; a client that cannot be written to
// is the session's problem.
type Emitter interface {
	// EmitStatus sends a textual status update.
	EmitStatus(ctx context.Context, message string) error

	// EmitError sends a client-visible error message.
	EmitError(ctx context.Context, message string) error

	// EmitAudio sends synthesized speech as a binary frame.
	EmitAudio(ctx context.Context, data []byte) error
}

// Result describes one finished dispatch.
type Result struct {
	Outcome    Outcome
	Transcript string
	Reply      string
	Err        error
}

// Config assembles a Pipeline. STT, LLM, and TTS are required; the rest have
// working defaults.
type Config struct {
	STT stt.Provider
	LLM llm.Provider
	TTS tts.Provider

	// Voice selects the synthesis voice.
	Voice tts.VoiceProfile

	// SampleRate of inbound utterance samples. Default 16000.
	SampleRate int

	// SystemPrompt for reply generation. Default [DefaultSystemPrompt].
	SystemPrompt string

	// MaxTokens bounds generated replies. Default [DefaultMaxTokens].
	MaxTokens int

	// Metrics receives stage timings. Default [observe.DefaultMetrics].
	Metrics *observe.Metrics

	// History, when non-nil, records each completed turn.
	History *history.Store
}

// Pipeline dispatches utterances for one session. Safe for concurrent use,
// though sessions serialize dispatches themselves.
type Pipeline struct {
	cfg Config
}

// New validates cfg and returns a Pipeline.
func New(cfg Config) (*Pipeline, error) {
	if cfg.STT == nil || cfg.LLM == nil || cfg.TTS == nil {
		return nil, fmt.Errorf("pipeline: STT, LLM, and TTS providers are all required")
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	return &Pipeline{cfg: cfg}, nil
}

// Run processes one utterance end to end and reports progress through emit.
// The returned Result's Err is set only for stage failures; OutcomeNoSpeech
// is a success with nothing to say.
func (p *Pipeline) Run(ctx context.Context, sessionID string, samples []float32, conv *Conversation, emit Emitter) Result {
	ctx, span := observe.StartSpan(ctx, "pipeline.run")
	defer span.End()
	log := observe.Logger(ctx).With("session_id", sessionID)
	start := time.Now()

	if err := emit.EmitStatus(ctx, StatusProcessing); err != nil {
		log.Warn("status emit failed", "error", err)
	}

	// Transcribe.
	transcript, err := p.transcribe(ctx, samples)
	if err != nil {
		log.Error("transcription failed", "error", err)
		p.cfg.Metrics.RecordProviderError(ctx, "stt", "transcribe")
		p.cfg.Metrics.RecordUtterance(ctx, string(OutcomeTranscribeFailed))
		if emitErr := emit.EmitError(ctx, "Audio processing failed"); emitErr != nil {
			log.Warn("error emit failed", "error", emitErr)
		}
		return Result{Outcome: OutcomeTranscribeFailed, Err: err}
	}
	if strings.TrimSpace(transcript) == "" {
		log.Info("no speech detected", "samples", len(samples))
		p.cfg.Metrics.RecordUtterance(ctx, string(OutcomeNoSpeech))
		if emitErr := emit.EmitError(ctx, MsgNoSpeech); emitErr != nil {
			log.Warn("error emit failed", "error", emitErr)
		}
		return Result{Outcome: OutcomeNoSpeech}
	}
	log.Info("utterance transcribed", "transcript", transcript)

	// Generate. Failures never abort the pipeline; the chain's exhaustion
	// falls back to a canned apology so synthesis always has text.
	reply := p.generate(ctx, transcript, conv, log)

	// Synthesize.
	audioData, err := p.synthesize(ctx, reply)
	if err != nil {
		log.Error("synthesis failed", "error", err)
		p.cfg.Metrics.RecordProviderError(ctx, "tts", "synthesize")
		p.cfg.Metrics.RecordUtterance(ctx, string(OutcomeSynthesisFailed))
		if emitErr := emit.EmitError(ctx, MsgSynthesisFail); emitErr != nil {
			log.Warn("error emit failed", "error", emitErr)
		}
		return Result{Outcome: OutcomeSynthesisFailed, Transcript: transcript, Reply: reply, Err: err}
	}

	if err := emit.EmitAudio(ctx, audioData); err != nil {
		log.Warn("audio emit failed", "error", err)
	}

	if conv != nil {
		conv.Append(llm.Message{Role: "user", Content: transcript})
		conv.Append(llm.Message{Role: "assistant", Content: reply})
	}

	elapsed := time.Since(start)
	p.cfg.Metrics.PipelineDuration.Record(ctx, elapsed.Seconds())
	p.cfg.Metrics.RecordUtterance(ctx, string(OutcomeDone))
	p.recordTurn(ctx, log, history.Turn{
		SessionID:  sessionID,
		Transcript: transcript,
		Reply:      reply,
		Outcome:    string(OutcomeDone),
		Elapsed:    elapsed,
	})

	log.Info("utterance completed", "elapsed", elapsed, "audio_bytes", len(audioData))
	return Result{Outcome: OutcomeDone, Transcript: transcript, Reply: reply}
}

func (p *Pipeline) transcribe(ctx context.Context, samples []float32) (string, error) {
	ctx, span := observe.StartSpan(ctx, "pipeline.transcribe")
	defer span.End()

	start := time.Now()
	tr, err := p.cfg.STT.Transcribe(ctx, samples, p.cfg.SampleRate)
	p.cfg.Metrics.TranscribeDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		return "", err
	}
	return tr.Text, nil
}

// generate produces the reply text. On total generation failure it returns
// [ApologyReply] so the pipeline still reaches synthesis.
func (p *Pipeline) generate(ctx context.Context, transcript string, conv *Conversation, log *slog.Logger) string {
	ctx, span := observe.StartSpan(ctx, "pipeline.generate")
	defer span.End()

	var messages []llm.Message
	if conv != nil {
		messages = conv.Messages()
	}
	messages = append(messages, llm.Message{Role: "user", Content: transcript})

	start := time.Now()
	resp, err := p.cfg.LLM.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: p.cfg.SystemPrompt,
		Messages:     messages,
		MaxTokens:    p.cfg.MaxTokens,
	})
	p.cfg.Metrics.GenerateDuration.Record(ctx, time.Since(start).Seconds())

	if err != nil {
		log.Warn("generation failed, using apology reply", "error", err)
		p.cfg.Metrics.RecordProviderError(ctx, "llm", "complete")
		return ApologyReply
	}
	if strings.TrimSpace(resp.Content) == "" {
		log.Warn("generation returned empty reply, using apology reply")
		return ApologyReply
	}
	return resp.Content
}

func (p *Pipeline) synthesize(ctx context.Context, text string) ([]byte, error) {
	ctx, span := observe.StartSpan(ctx, "pipeline.synthesize")
	defer span.End()

	start := time.Now()
	data, err := p.cfg.TTS.Synthesize(ctx, text, p.cfg.Voice)
	p.cfg.Metrics.SynthesizeDuration.Record(ctx, time.Since(start).Seconds())
	return data, err
}

func (p *Pipeline) recordTurn(ctx context.Context, log *slog.Logger, t history.Turn) {
	if p.cfg.History == nil {
		return
	}
	if err := p.cfg.History.Record(ctx, t); err != nil {
		log.Warn("turn log write failed", "error", err)
	}
}
