// Package app wires all VoxRelay subsystems into a running server.
//
// The App struct owns the full lifecycle: New builds the utterance pipeline,
// turn detector, and HTTP surface from config and providers, Run serves until
// the context ends, and Shutdown tears everything down in order.
//
// For testing, inject doubles via functional options (WithHistory,
// WithMetrics). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/voxrelay/voxrelay/internal/config"
	"github.com/voxrelay/voxrelay/internal/health"
	"github.com/voxrelay/voxrelay/internal/history"
	"github.com/voxrelay/voxrelay/internal/observe"
	"github.com/voxrelay/voxrelay/internal/pipeline"
	"github.com/voxrelay/voxrelay/internal/session"
	"github.com/voxrelay/voxrelay/internal/turndetect"
	"github.com/voxrelay/voxrelay/internal/web"
	"github.com/voxrelay/voxrelay/pkg/provider/llm"
	"github.com/voxrelay/voxrelay/pkg/provider/stt"
	"github.com/voxrelay/voxrelay/pkg/provider/tts"
	"github.com/voxrelay/voxrelay/pkg/provider/turn"
)

// shutdownGrace bounds the HTTP server drain during Shutdown.
const shutdownGrace = 10 * time.Second

// Providers holds one interface value per provider slot. STT, LLM and TTS
// are required; Turn is optional. Populated by main.go via the config
// registry.
type Providers struct {
	STT  stt.Provider
	LLM  llm.Provider
	TTS  tts.Provider
	Turn turn.Classifier
}

// App owns all subsystem lifetimes and serves the relay's HTTP surface.
type App struct {
	cfg       *config.Config
	providers *Providers

	pipe *pipeline.Pipeline
	// turnCfg is nil when no classifier is configured. Detector state
	// (debounce, coalescing) is per session, so sessions get fresh
	// detectors built from this config rather than a shared instance.
	turnCfg  *turndetect.Config
	hist     *history.Store
	metrics  *observe.Metrics
	sessions *tracker
	srv      *http.Server

	// closers are called in reverse order during Shutdown.
	closers []func() error

	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithHistory injects a turn log instead of opening one from config.
func WithHistory(s *history.Store) Option {
	return func(a *App) { a.hist = s }
}

// WithMetrics injects a metrics set instead of using the process default.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry).
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil {
		return nil, errors.New("app: providers are required")
	}

	a := &App{
		cfg:       cfg,
		providers: providers,
		sessions:  newTracker(),
	}
	for _, o := range opts {
		o(a)
	}

	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	if err := a.initHistory(ctx); err != nil {
		return nil, fmt.Errorf("app: init history: %w", err)
	}
	if err := a.initPipeline(); err != nil {
		return nil, fmt.Errorf("app: init pipeline: %w", err)
	}
	a.initDetector()

	a.srv = &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           observe.Middleware(a.metrics)(a.routes()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

func (a *App) initHistory(ctx context.Context) error {
	if a.hist != nil {
		return nil
	}
	store, err := history.Open(ctx, history.Config{
		Enabled: a.cfg.History.Enabled,
		Path:    a.cfg.History.Path,
	}, slog.Default())
	if err != nil {
		return err
	}
	a.hist = store
	a.closers = append(a.closers, store.Close)
	return nil
}

func (a *App) initPipeline() error {
	pipe, err := pipeline.New(pipeline.Config{
		STT: a.providers.STT,
		LLM: a.providers.LLM,
		TTS: a.providers.TTS,
		Voice: tts.VoiceProfile{
			ID:   a.cfg.Pipeline.Voice.VoiceID,
			Name: a.cfg.Pipeline.Voice.Name,
		},
		SampleRate:   a.cfg.Audio.SampleRate,
		SystemPrompt: a.cfg.Pipeline.SystemPrompt,
		MaxTokens:    a.cfg.Pipeline.MaxTokens,
		Metrics:      a.metrics,
		History:      a.hist,
	})
	if err != nil {
		return err
	}
	a.pipe = pipe
	return nil
}

// initDetector captures the turn detection policy when a classifier is
// configured. Without one, sessions fall back to dispatch-on-arrival for
// binary frames.
func (a *App) initDetector() {
	if a.providers.Turn == nil {
		slog.Warn("no turn classifier configured, binary frames dispatch immediately")
		return
	}
	a.turnCfg = &turndetect.Config{
		Interval:   time.Duration(a.cfg.Turn.IntervalMS) * time.Millisecond,
		Timeout:    time.Duration(a.cfg.Turn.TimeoutMS) * time.Millisecond,
		Threshold:  a.cfg.Turn.Threshold,
		MinSamples: a.cfg.Turn.MinSamples,
	}
}

// newDetector builds a detector for one session. The classifier is shared
// across sessions; the debounce and in-flight state must not be, or one
// session's probe would suppress or answer another's.
func (a *App) newDetector() *turndetect.Detector {
	if a.turnCfg == nil {
		return nil
	}
	return turndetect.New(a.providers.Turn, *a.turnCfg)
}

// ─── HTTP surface ────────────────────────────────────────────────────────────

// routes builds the relay's mux: the client page at the root, the websocket
// upgrade at /ws, health probes, and the Prometheus scrape endpoint.
func (a *App) routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/", web.Handler())
	mux.HandleFunc("GET /ws", a.handleWS)
	mux.Handle("GET /metrics", promhttp.Handler())

	h := health.New(
		health.Checker{Name: "history", Check: a.hist.Ping},
		health.Checker{Name: "providers", Check: a.checkProviders},
	)
	h.Register(mux)

	return mux
}

// checkProviders verifies the required provider slots are populated.
func (a *App) checkProviders(_ context.Context) error {
	var missing []string
	if a.providers.STT == nil {
		missing = append(missing, "stt")
	}
	if a.providers.LLM == nil {
		missing = append(missing, "llm")
	}
	if a.providers.TTS == nil {
		missing = append(missing, "tts")
	}
	if len(missing) > 0 {
		return fmt.Errorf("providers not configured: %s", strings.Join(missing, ", "))
	}
	return nil
}

// handleWS upgrades the connection and runs a session until the client
// disconnects. Requests without a websocket upgrade get 426.
func (a *App) handleWS(w http.ResponseWriter, r *http.Request) {
	if !strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		http.Error(w, "websocket upgrade required", http.StatusUpgradeRequired)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("websocket accept failed", "err", err)
		return
	}

	sess, err := session.New(conn, session.Config{
		Pipeline:            a.pipe,
		Detector:            a.newDetector(),
		SilenceFloor:        a.cfg.Audio.SilenceFloor,
		HighWater:           a.cfg.Audio.BufferHighWater,
		LowWater:            a.cfg.Audio.BufferLowWater,
		MaxUtteranceSamples: a.cfg.Turn.MaxUtteranceSamples,
		Metrics:             a.metrics,
	})
	if err != nil {
		slog.Error("session setup failed", "err", err)
		conn.Close(websocket.StatusInternalError, "session setup failed")
		return
	}

	a.sessions.add(sess.ID())
	defer a.sessions.remove(sess.ID())

	if err := sess.Run(r.Context()); err != nil {
		slog.Debug("session ended", "session_id", sess.ID(), "err", err)
	}
	conn.Close(websocket.StatusNormalClosure, "")
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run serves HTTP until ctx is cancelled, then drains and returns. TLS is
// used when the server config carries a cert/key pair.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		if tc := a.cfg.Server.TLS; tc != nil {
			slog.Info("listening", "addr", a.srv.Addr, "tls", true)
			err = a.srv.ListenAndServeTLS(tc.CertFile, tc.KeyFile)
		} else {
			slog.Info("listening", "addr", a.srv.Addr)
			err = a.srv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return a.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown drains the HTTP server and closes subsystems in reverse-init
// order. Safe to call more than once.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "active_sessions", a.sessions.count())

		if err := a.srv.Shutdown(ctx); err != nil {
			slog.Warn("http shutdown error", "err", err)
			shutdownErr = err
		}

		for i := len(a.closers) - 1; i >= 0; i-- {
			if err := a.closers[i](); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
