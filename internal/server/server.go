package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"ytcmd/internal/config"
	"ytcmd/internal/history"
	"ytcmd/internal/metadata"
	"ytcmd/internal/stream"
	"ytcmd/internal/ytdlp"
)

const (
	shutdownTimeout = 5 * time.Second
	probeTimeout    = 30 * time.Second
)

// SpawnFunc starts command in the background.
type SpawnFunc func(command string) error

type Options struct {
	Settings config.Settings
	// History is optional; without it the history routes answer 503.
	History  *history.Store
	Metadata *metadata.Client
	Spawn    SpawnFunc
	Logger   *slog.Logger
}

// Server serves the HTTP API and the streaming channel.
type Server struct {
	settings config.Settings
	history  *history.Store
	meta     *metadata.Client
	spawn    SpawnFunc
	log      *slog.Logger
	limiter  *rate.Limiter
	stream   *stream.Handler
	mux      *http.ServeMux
}

func New(opts Options) *Server {
	settings := config.Normalize(opts.Settings)
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		settings: settings,
		history:  opts.History,
		meta:     opts.Metadata,
		spawn:    opts.Spawn,
		log:      logger.With("component", "server"),
		limiter:  rate.NewLimiter(rate.Limit(settings.RateLimitRPS), settings.RateLimitBurst),
		mux:      http.NewServeMux(),
	}
	if s.spawn == nil {
		s.spawn = func(command string) error {
			_, err := ytdlp.RunDetached(command, logger)
			return err
		}
	}
	if s.meta == nil {
		s.meta = metadata.NewClient(s.probe)
	}
	s.stream = stream.NewHandler(stream.Options{
		ExecutionAllowed:  settings.ExecutionAllowed,
		KillOnDisconnect:  settings.KillsOnDisconnect(),
		CommandOptions:    settings.CommandOptions(),
		DefaultOutputPath: settings.OutputPath,
		AllowedOrigins:    settings.AllowedOrigins,
		Logger:            logger,
	})
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/info", s.rateLimited(s.handleInfo))
	s.mux.HandleFunc("POST /api/download", s.rateLimited(s.handleDownload))
	s.mux.HandleFunc("GET /api/history", s.rateLimited(s.handleHistoryList))
	s.mux.HandleFunc("POST /api/history", s.rateLimited(s.handleHistoryAdd))
	s.mux.HandleFunc("GET /api/status", s.handleStatus)
	s.mux.Handle("GET /ws", s.stream)
}

func (s *Server) Handler() http.Handler {
	return s.logRequests(s.mux)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
// and disconnects streaming clients.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.log.Info("listening", "addr", ln.Addr().String(), "execution_enabled", s.settings.ExecutionAllowed())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.stream.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.log.Info("server stopped")
	return nil
}

func (s *Server) probe(ctx context.Context, url string) ([]byte, error) {
	if !s.settings.ExecutionAllowed() {
		return nil, config.ErrExecutionDisabled
	}
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	return ytdlp.DumpJSON(ctx, url)
}

func (s *Server) rateLimited(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next(w, r)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ws" {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Debug("request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "took", time.Since(start))
	})
}
