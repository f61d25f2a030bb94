// Package session owns one websocket connection for its whole lifetime: it
// demultiplexes inbound frames, accumulates speech, schedules turn probes,
// and serializes everything written back to the client.
//
// The channel stays conversational through errors. A malformed frame, a
// failed decode, or a pipeline failure produces an error envelope and the
// read loop keeps going; only a client disconnect or context cancellation
// ends a session.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/voxrelay/voxrelay/internal/observe"
	"github.com/voxrelay/voxrelay/internal/pipeline"
	"github.com/voxrelay/voxrelay/internal/turndetect"
	"github.com/voxrelay/voxrelay/pkg/audio"
)

// Defaults for [Config] fields left at their zero value.
const (
	// DefaultSilenceFloor is the RMS level below which an utterance is
	// treated as silence and not dispatched.
	DefaultSilenceFloor = 0.001

	// DefaultMaxUtteranceSamples bounds how much buffered speech a
	// turn-detected dispatch drains at once.
	DefaultMaxUtteranceSamples = 32_000

	defaultWriteTimeout = 10 * time.Second
)

// Config assembles a Session.
type Config struct {
	// Pipeline processes dispatched utterances. Required.
	Pipeline *pipeline.Pipeline

	// Detector schedules turn probes for the continuous audio path. When
	// nil, binary frames dispatch the whole buffer as soon as they arrive.
	Detector *turndetect.Detector

	// SilenceFloor is the RMS dispatch gate. Default [DefaultSilenceFloor].
	SilenceFloor float64

	// HighWater and LowWater set the accumulator trim thresholds. Defaults
	// [audio.DefaultHighWater] and [audio.DefaultLowWater].
	HighWater int
	LowWater  int

	// MaxUtteranceSamples bounds turn-detected dispatches. Default
	// [DefaultMaxUtteranceSamples].
	MaxUtteranceSamples int

	// WriteTimeout bounds each outbound frame write. Default 10s.
	WriteTimeout time.Duration

	// Metrics receives session gauges and probe counters. Default
	// [observe.DefaultMetrics].
	Metrics *observe.Metrics
}

func (c Config) withDefaults() Config {
	if c.SilenceFloor <= 0 {
		c.SilenceFloor = DefaultSilenceFloor
	}
	if c.MaxUtteranceSamples <= 0 {
		c.MaxUtteranceSamples = DefaultMaxUtteranceSamples
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = defaultWriteTimeout
	}
	if c.Metrics == nil {
		c.Metrics = observe.DefaultMetrics()
	}
	return c
}

// Session drives one websocket connection. Create with [New], run with
// [Session.Run].
type Session struct {
	id   string
	conn *websocket.Conn
	cfg  Config
	log  *slog.Logger

	acc  *audio.Accumulator
	conv *pipeline.Conversation

	writeMu sync.Mutex

	dispatchMu sync.Mutex
	inFlight   bool
	pending    bool
}

// New wraps conn in a Session. The caller keeps ownership of the accept;
// Run takes over reads and writes until the connection ends.
func New(conn *websocket.Conn, cfg Config) (*Session, error) {
	if cfg.Pipeline == nil {
		return nil, errors.New("session: Pipeline is required")
	}
	id := newSessionID()
	return &Session{
		id:   id,
		conn: conn,
		cfg:  cfg.withDefaults(),
		log:  slog.Default().With("session_id", id),
		acc:  audio.NewAccumulator(cfg.HighWater, cfg.LowWater),
		conv: pipeline.NewConversation(0),
	}, nil
}

// ID returns the session's identifier.
func (s *Session) ID() string {
	return s.id
}

func newSessionID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b[:])
}

// Run reads frames until the client disconnects or ctx is cancelled. The
// buffer is released and in-flight work cancelled on return; results that
// finish after that are discarded because their emits fail against the
// closed connection.
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Base64 float32 probe windows run to a few hundred kilobytes.
	s.conn.SetReadLimit(4 << 20)

	s.cfg.Metrics.ActiveSessions.Add(ctx, 1)
	defer s.cfg.Metrics.ActiveSessions.Add(context.WithoutCancel(ctx), -1)
	s.log.Info("session started")

	defer func() {
		s.acc.Consume(s.acc.Len())
	}()

	for {
		msgType, data, err := s.conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != -1 || errors.Is(err, context.Canceled) {
				s.log.Info("session closed", "status", status)
				return nil
			}
			s.log.Warn("read failed", "error", err)
			return fmt.Errorf("session: read: %w", err)
		}

		switch msgType {
		case websocket.MessageBinary:
			s.handleBinary(ctx, data)
		case websocket.MessageText:
			s.handleText(ctx, data)
		}
	}
}

// handleBinary treats the frame as raw PCM16 utterance audio, the legacy
// path used before the JSON envelopes existed.
func (s *Session) handleBinary(ctx context.Context, data []byte) {
	samples, err := audio.DecodePCM16(data)
	if err != nil {
		s.log.Warn("binary frame decode failed", "error", err, "bytes", len(data))
		s.emitError(ctx, "Audio processing failed")
		return
	}
	s.acc.Append(samples)

	if s.cfg.Detector == nil {
		// No turn gating: every binary frame completes an utterance.
		s.dispatchAll(ctx)
		return
	}

	if s.cfg.Detector.ShouldProbe(s.acc.Len()) {
		s.probeAndMaybeDispatch(ctx, false)
	}
}

// handleText parses a JSON envelope and routes it. All failures reply with
// an error envelope and leave the connection open.
func (s *Session) handleText(ctx context.Context, data []byte) {
	var env inboundEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		s.log.Warn("malformed text frame", "error", err)
		s.emitError(ctx, "Invalid message format")
		return
	}

	switch env.Type {
	case typeAudioProcessing:
		samples, err := audio.DecodeTransport(env.Audio)
		if err != nil {
			s.log.Warn("audio_processing decode failed", "error", err)
			s.emitError(ctx, "Audio processing failed")
			return
		}
		s.acc.Append(samples)
		s.dispatchAll(ctx)

	case typeTurnDetection:
		var (
			samples []float32
			err     error
		)
		if env.Dtype == "float32" {
			samples, err = audio.DecodeFloat32Transport(env.Audio)
		} else {
			samples, err = audio.DecodeTransport(env.Audio)
		}
		if err != nil {
			s.log.Warn("turn_detection decode failed", "error", err, "dtype", env.Dtype)
			s.emitError(ctx, "Audio processing failed")
			return
		}
		s.acc.Append(samples)
		if s.cfg.Detector != nil && !s.cfg.Detector.ShouldProbe(s.acc.Len()) {
			// Debounced or under the minimum window: answer from the last
			// verdict without another classifier call.
			res := s.cfg.Detector.Last()
			s.writeJSON(ctx, turnResultMessage{
				Type: "turn_detection_result",
				Result: turnResult{
					IsComplete:  res.Decision.Complete,
					Probability: res.Decision.Probability,
				},
			})
			return
		}
		s.probeAndMaybeDispatch(ctx, true)

	default:
		s.log.Warn("unknown message type", "type", env.Type)
		s.emitError(ctx, fmt.Sprintf("Unknown message type: %s", env.Type))
	}
}

// probeAndMaybeDispatch runs one turn probe over the buffered window,
// optionally replies with the verdict, and dispatches the utterance when the
// turn is complete. Without a configured detector the probe is inconclusive.
func (s *Session) probeAndMaybeDispatch(ctx context.Context, reply bool) {
	var res turndetect.Result
	if s.cfg.Detector != nil {
		start := time.Now()
		res = s.cfg.Detector.Probe(ctx, s.acc.Window(s.cfg.MaxUtteranceSamples))
		s.cfg.Metrics.TurnProbeDuration.Record(ctx, time.Since(start).Seconds())
		verdict := "incomplete"
		if res.Complete {
			verdict = "complete"
		}
		s.cfg.Metrics.RecordTurnProbe(ctx, verdict)
	}

	if reply {
		s.writeJSON(ctx, turnResultMessage{
			Type: "turn_detection_result",
			Result: turnResult{
				IsComplete:  res.Decision.Complete,
				Probability: res.Decision.Probability,
			},
		})
	}

	if res.Complete {
		s.dispatchWindow(ctx, s.cfg.MaxUtteranceSamples, true)
	}
}

// dispatchAll sends the entire buffered utterance through the pipeline.
// Explicit utterances always dispatch; silence is the transcription stage's
// call, which reports "no speech" back to the client.
func (s *Session) dispatchAll(ctx context.Context) {
	s.dispatchWindow(ctx, 0, false)
}

// dispatchWindow drains up to maxSamples (0 for all) and runs the pipeline
// on it. Gated dispatches drop buffers quieter than the silence floor
// without error, so ambient noise on the continuous path never wakes the
// pipeline. At most one pipeline runs at a time; an utterance arriving
// meanwhile stays buffered and is re-dispatched when the in-flight one
// finishes.
func (s *Session) dispatchWindow(ctx context.Context, maxSamples int, gated bool) {
	s.dispatchMu.Lock()
	if s.inFlight {
		s.pending = true
		s.dispatchMu.Unlock()
		return
	}

	samples := s.acc.Window(maxSamples)
	if len(samples) == 0 {
		s.dispatchMu.Unlock()
		return
	}
	if gated && audio.MeasureLevel(samples) < s.cfg.SilenceFloor {
		s.acc.Consume(len(samples))
		s.dispatchMu.Unlock()
		s.log.Debug("utterance below silence floor, skipped", "samples", len(samples))
		return
	}
	s.acc.Consume(len(samples))
	s.inFlight = true
	s.dispatchMu.Unlock()

	go func() {
		s.cfg.Pipeline.Run(ctx, s.id, samples, s.conv, s)

		s.dispatchMu.Lock()
		s.inFlight = false
		rerun := s.pending && s.acc.Len() > 0
		s.pending = false
		s.dispatchMu.Unlock()

		if rerun && ctx.Err() == nil {
			s.dispatchWindow(ctx, maxSamples, gated)
		}
	}()
}

// ─── pipeline.Emitter ───

var _ pipeline.Emitter = (*Session)(nil)

// EmitStatus implements [pipeline.Emitter].
func (s *Session) EmitStatus(ctx context.Context, message string) error {
	return s.writeJSON(ctx, statusMessage{Type: "status", Message: message})
}

// EmitError implements [pipeline.Emitter].
func (s *Session) EmitError(ctx context.Context, message string) error {
	return s.writeJSON(ctx, errorMessage{Type: "error", Message: message})
}

// EmitAudio implements [pipeline.Emitter].
func (s *Session) EmitAudio(ctx context.Context, data []byte) error {
	return s.write(ctx, websocket.MessageBinary, data)
}

// emitError is the loop-internal variant that logs instead of propagating.
func (s *Session) emitError(ctx context.Context, message string) {
	if err := s.EmitError(ctx, message); err != nil {
		s.log.Warn("error emit failed", "error", err)
	}
}

func (s *Session) writeJSON(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("session: marshal outbound: %w", err)
	}
	return s.write(ctx, websocket.MessageText, data)
}

// write serializes all outbound frames through one mutex so pipeline
// goroutines and the read loop never interleave writes.
func (s *Session) write(ctx context.Context, msgType websocket.MessageType, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	wctx, cancel := context.WithTimeout(ctx, s.cfg.WriteTimeout)
	defer cancel()
	if err := s.conn.Write(wctx, msgType, data); err != nil {
		return fmt.Errorf("session: write: %w", err)
	}
	return nil
}
