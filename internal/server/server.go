// Package server exposes the synthesis pipeline over HTTP: POST /synthesize
// turns JSON text into a WAV response, with a bounded worker pool, request
// timeouts, and slog request logging.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"github.com/example/go-nix-tts/internal/audio"
	"github.com/example/go-nix-tts/internal/config"
	"github.com/example/go-nix-tts/internal/model"
	"github.com/example/go-nix-tts/internal/tts"
)

var logLevels = map[string]slog.Level{
	"":        slog.LevelInfo,
	"info":    slog.LevelInfo,
	"debug":   slog.LevelDebug,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// ParseLogLevel converts a case-insensitive level string to slog.Level.
// An empty string returns slog.LevelInfo. Unknown strings return an error.
func ParseLogLevel(s string) (slog.Level, error) {
	if lvl, ok := logLevels[strings.ToLower(s)]; ok {
		return lvl, nil
	}

	return slog.LevelInfo, fmt.Errorf("unknown log level %q (want debug|info|warn|error)", s)
}

// Synthesizer produces WAV bytes from text.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// ModelLister returns the registry entries of the models root.
type ModelLister interface {
	List() []model.Model
}

type options struct {
	maxTextBytes   int
	workers        int
	requestTimeout time.Duration
	logger         *slog.Logger
}

func defaultOptions() options {
	return options{maxTextBytes: 4096, workers: 2, requestTimeout: 60 * time.Second, logger: slog.Default()}
}

// Option configures the HTTP handler.
type Option func(*options)

// WithMaxTextBytes caps the text length accepted by POST /synthesize.
func WithMaxTextBytes(n int) Option { return func(o *options) { o.maxTextBytes = n } }

// WithWorkers caps the number of concurrent synthesis calls.
func WithWorkers(n int) Option { return func(o *options) { o.workers = n } }

// WithRequestTimeout sets the per-request synthesis deadline.
func WithRequestTimeout(d time.Duration) Option { return func(o *options) { o.requestTimeout = d } }

// WithLogger sets the slog.Logger used for request logging.
func WithLogger(l *slog.Logger) Option { return func(o *options) { o.logger = l } }

// api holds the dependencies needed to serve HTTP requests. The worker pool
// is a counting semaphore: a request must take a slot before synthesis runs.
type api struct {
	synth  Synthesizer
	models ModelLister
	opts   options
	slots  chan struct{}
}

// NewHandler returns an http.Handler that serves /health, /models, and
// POST /synthesize.
func NewHandler(synth Synthesizer, models ModelLister, optFns ...Option) http.Handler {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	a := &api{synth: synth, models: models, opts: opts}
	if opts.workers > 0 {
		a.slots = make(chan struct{}, opts.workers)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", a.health)
	mux.HandleFunc("/models", a.listModels)
	mux.HandleFunc("/synthesize", a.synthesize)

	return mux
}

func buildVersion() string {
	info, ok := debug.ReadBuildInfo()
	if !ok || info.Main.Version == "" {
		return "dev"
	}

	return info.Main.Version
}

func (a *api) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": buildVersion()})
}

func (a *api) listModels(w http.ResponseWriter, _ *http.Request) {
	models := a.models.List()
	if models == nil {
		models = []model.Model{}
	}

	writeJSON(w, http.StatusOK, models)
}

type synthesizeRequest struct {
	Text string `json:"text"`
}

func (a *api) synthesize(w http.ResponseWriter, r *http.Request) {
	req, ok := a.decodeSynthesizeRequest(w, r)
	if !ok {
		return
	}

	// Take a worker slot, honouring cancellation while queued.
	if a.slots != nil {
		select {
		case a.slots <- struct{}{}:
		case <-r.Context().Done():
			writeError(w, http.StatusServiceUnavailable, "request cancelled while waiting for worker")
			return
		}
		defer func() { <-a.slots }()
	}

	ctx, cancel := context.WithTimeout(r.Context(), a.opts.requestTimeout)
	defer cancel()

	start := time.Now()
	wav, err := a.synth.Synthesize(ctx, req.Text)
	elapsed := time.Since(start)

	if err != nil {
		a.reportSynthesisError(w, r, req, err, elapsed)
		return
	}

	a.opts.logger.InfoContext(r.Context(), "synthesis complete",
		slog.Int("text_len", len(req.Text)),
		slog.Int64("duration_ms", elapsed.Milliseconds()),
		slog.Int("wav_bytes", len(wav)),
	)

	w.Header().Set("Content-Type", "audio/wav")
	_, _ = w.Write(wav)
}

// decodeSynthesizeRequest parses and validates the request body, writing the
// error response itself when validation fails.
func (a *api) decodeSynthesizeRequest(w http.ResponseWriter, r *http.Request) (synthesizeRequest, bool) {
	var req synthesizeRequest

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return req, false
	}
	if r.Body == nil {
		writeError(w, http.StatusBadRequest, "request body is required")
		return req, false
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return req, false
	}

	switch {
	case req.Text == "":
		writeError(w, http.StatusBadRequest, "text field is required")
		return req, false
	case len(req.Text) > a.opts.maxTextBytes:
		writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("text exceeds maximum size of %d bytes", a.opts.maxTextBytes))
		return req, false
	}

	return req, true
}

func (a *api) reportSynthesisError(w http.ResponseWriter, r *http.Request, req synthesizeRequest, err error, elapsed time.Duration) {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		a.opts.logger.WarnContext(r.Context(), "synthesis timed out",
			slog.Int("text_len", len(req.Text)),
			slog.Int64("duration_ms", elapsed.Milliseconds()),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusGatewayTimeout, "synthesis timed out")

		return
	}

	if errors.Is(err, tts.ErrNothingToSynthesize) {
		writeError(w, http.StatusBadRequest, "text contains nothing to synthesize")
		return
	}

	a.opts.logger.ErrorContext(r.Context(), "synthesis failed",
		slog.Int("text_len", len(req.Text)),
		slog.Int64("duration_ms", elapsed.Milliseconds()),
		slog.String("error", err.Error()),
	)
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(v)
}

// Server wires the HTTP handler into a net/http.Server with graceful
// shutdown.
type Server struct {
	cfg             config.Config
	conv            *tts.Converter
	shutdownTimeout time.Duration
}

// New builds a Server from configuration. A nil converter is created on
// Start from the configured model directory; tests inject their own.
func New(cfg config.Config, conv *tts.Converter) *Server {
	shutdown := time.Duration(cfg.Server.ShutdownTimeoutSeconds) * time.Second
	if shutdown <= 0 {
		shutdown = 30 * time.Second
	}

	return &Server{cfg: cfg, conv: conv, shutdownTimeout: shutdown}
}

// WithShutdownTimeout overrides the graceful-shutdown drain period.
func (s *Server) WithShutdownTimeout(d time.Duration) *Server {
	s.shutdownTimeout = d

	return s
}

// Start serves until ctx is cancelled, then drains in-flight requests for
// at most the shutdown timeout.
func (s *Server) Start(ctx context.Context) error {
	conv := s.conv
	if conv == nil {
		created, err := tts.NewConverter(s.cfg)
		if err != nil {
			return fmt.Errorf("initialize converter: %w", err)
		}
		defer created.Close()
		conv = created
	}

	h := NewHandler(
		&converterSynthesizer{conv: conv},
		loadModelLister(s.cfg),
		WithWorkers(s.cfg.Server.Workers),
		WithMaxTextBytes(s.cfg.Server.MaxTextBytes),
		WithRequestTimeout(time.Duration(s.cfg.Server.RequestTimeoutSeconds)*time.Second),
	)

	httpServer := &http.Server{Addr: s.cfg.Server.ListenAddr, Handler: h, ReadHeaderTimeout: 5 * time.Second}

	serveErr := make(chan error, 1)
	go func() { serveErr <- httpServer.ListenAndServe() }()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http listen: %w", err)
	case <-ctx.Done():
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(drainCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}

	return nil
}

// ProbeHTTP checks a running server's health endpoint.
func ProbeHTTP(addr string) error {
	resp, err := http.Get("http://" + addr + "/health") //nolint:noctx
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected health status: %s", resp.Status)
	}

	return nil
}

// loadModelLister reads the registry next to the configured model directory.
// A missing registry is not an error; /models then reports an empty list.
func loadModelLister(cfg config.Config) ModelLister {
	manifestPath := filepath.Join(filepath.Dir(cfg.Paths.ModelDir), model.RegistryFileName)

	reg, err := model.LoadRegistry(manifestPath)
	if err != nil {
		return staticModelLister{}
	}

	return reg
}

type staticModelLister struct {
	models []model.Model
}

func (s staticModelLister) List() []model.Model {
	return append([]model.Model(nil), s.models...)
}

type converterSynthesizer struct {
	conv *tts.Converter
}

func (c *converterSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	samples, err := c.conv.Convert(ctx, text)
	if err != nil {
		return nil, err
	}

	return audio.EncodeWAV(samples, c.conv.SampleRate())
}
