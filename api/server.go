// Package api serves the options and status endpoints over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"

	"github.com/hazyhaar/dmitli/audio"
	"github.com/hazyhaar/dmitli/controller"
	"github.com/hazyhaar/dmitli/emitter"
	"github.com/hazyhaar/dmitli/settings"
	"github.com/hazyhaar/dmitli/watch"
)

// OptionsStore reads and writes the options snapshot.
type OptionsStore interface {
	Load(ctx context.Context) (settings.Options, error)
	Save(ctx context.Context, o settings.Options) error
}

// Config wires the server. Only Store is required.
type Config struct {
	Addr       string
	Store      OptionsStore
	Controller interface{ Status() controller.Status }
	Queue      interface{ Stats() audio.QueueStats }
	Watch      interface{ Stats() watch.Stats }
	Events     EventLog // optional
	// Notify is called with optionsSaved after a successful PUT.
	Notify func(ctx context.Context, msg settings.Message) error
	Logger *slog.Logger
}

// EventLog lists recorded notifications, newest first.
type EventLog interface {
	Recent(ctx context.Context, limit int) ([]emitter.Notification, error)
}

// Status is the GET /status body.
type Status struct {
	Controller *controller.Status `json:"controller,omitempty"`
	Queue      *audio.QueueStats  `json:"queue,omitempty"`
	Watch      *watch.Stats       `json:"watch,omitempty"`
}

// Server is the HTTP API.
type Server struct {
	cfg    Config
	router *chi.Mux
	http   *http.Server
}

// New builds the router.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	s := &Server{cfg: cfg}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Route("/options", func(r chi.Router) {
		r.Get("/", s.handleGetOptions)
		r.Put("/", s.handlePutOptions)
	})
	r.Get("/status", s.handleStatus)
	if cfg.Events != nil {
		r.Get("/events", s.handleEvents)
	}

	s.router = r
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler { return s.router }

// Run listens on cfg.Addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.http = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.cfg.Logger.Info("api: listening", "addr", s.cfg.Addr)
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("api: serve: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("api: shutdown: %w", err)
		}
		return nil
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.cfg.Logger.Debug("api: request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

func (s *Server) handleGetOptions(w http.ResponseWriter, r *http.Request) {
	o, err := s.cfg.Store.Load(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, o.ToWire())
}

func (s *Server) handlePutOptions(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var patch settings.Wire
	if err := json.Unmarshal(body, &patch); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("api: decode options: %w", err))
		return
	}

	ctx := r.Context()
	cur, err := s.cfg.Store.Load(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	next := patch.Apply(cur)
	if err := next.Validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	if err := s.cfg.Store.Save(ctx, next); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.cfg.Logger.Info("api: options saved", "enabled", next.Enabled)

	if s.cfg.Notify != nil {
		if err := s.cfg.Notify(ctx, settings.Message{Message: settings.OptionsSaved}); err != nil {
			s.cfg.Logger.Warn("api: notify failed", "error", err)
		}
	}
	writeJSON(w, http.StatusOK, next.ToWire())
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	var st Status
	if s.cfg.Controller != nil {
		c := s.cfg.Controller.Status()
		st.Controller = &c
	}
	if s.cfg.Queue != nil {
		q := s.cfg.Queue.Stats()
		st.Queue = &q
	}
	if s.cfg.Watch != nil {
		ws := s.cfg.Watch.Stats()
		st.Watch = &ws
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("api: bad limit %q", v))
			return
		}
		limit = n
	}
	events, err := s.cfg.Events.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if events == nil {
		events = []emitter.Notification{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
