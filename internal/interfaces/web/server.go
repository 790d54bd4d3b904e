package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/example/arca-scheduler/internal/application/usecases"
)

// Runner is one booking pass over all users.
type Runner interface {
	Execute(ctx context.Context) (usecases.RunResult, error)
}

type Options struct {
	Production bool
	// Tokens, when set, is checked against the trigger header in
	// production.
	Tokens     *TriggerTokens
	RunTimeout time.Duration
	Log        *zap.Logger
}

type Server struct {
	runner Runner
	opts   Options
	log    *zap.Logger
}

func New(runner Runner, opts Options) *Server {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = 10 * time.Minute
	}
	return &Server{runner: runner, opts: opts, log: log}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(logging(s.log))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	r.With(requireTrigger(s.opts.Production, s.opts.Tokens)).
		Post("/cron/check-bookings", s.handleCheckBookings)
	return r
}

// ListenAndServe serves until ctx is cancelled, then drains in-flight
// requests.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		s.log.Info("listening", zap.String("addr", addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.RunTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func logging(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("took", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}

type triggerResponse struct {
	Success bool                `json:"success"`
	Message string              `json:"message,omitempty"`
	Error   string              `json:"error,omitempty"`
	Results *usecases.RunResult `json:"results,omitempty"`
}

func (s *Server) handleCheckBookings(w http.ResponseWriter, r *http.Request) {
	// the run outlives a disconnecting caller; RunTimeout bounds it
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), s.opts.RunTimeout)
	defer cancel()

	res, err := s.runner.Execute(ctx)
	switch {
	case errors.Is(err, usecases.ErrRunInProgress):
		writeJSON(w, http.StatusConflict, triggerResponse{Success: false, Error: err.Error()})
	case err != nil:
		s.log.Error("booking check failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, triggerResponse{Success: false, Error: err.Error(), Results: &res})
	default:
		writeJSON(w, http.StatusOK, triggerResponse{Success: true, Message: "Booking check completed", Results: &res})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
