package web

import (
	"context"
	"embed"
	stderrors "errors"
	"fmt"
	"io/fs"
	"net/http"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/rutina/internal/config"
	"github.com/hpungsan/rutina/internal/db"
	"github.com/hpungsan/rutina/internal/errors"
	"github.com/hpungsan/rutina/internal/logger"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

// NewServer creates the HTTP server for the Rutina API and routine view.
func NewServer(kv db.KV, cfg *config.Config, baseDir, version string, log *logger.Logger) (*http.Server, error) {
	h, err := NewHandlers(kv, cfg, baseDir, version, log)
	if err != nil {
		return nil, err
	}
	return &http.Server{
		Addr:              cfg.Addr(),
		Handler:           h.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}, nil
}

// Routes wires every route and wraps the mux in the middleware chain.
func (h *Handlers) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/routine", http.StatusFound)
	})
	mux.HandleFunc("GET /routine", h.HandleRoutinePage)

	mux.HandleFunc("POST /api/routines/generate", h.HandleGenerate)
	mux.HandleFunc("POST /api/routines/refine", h.HandleRefine)
	mux.HandleFunc("GET /api/routine", h.HandleGetRoutine)
	mux.HandleFunc("POST /api/routine/steps/{stepId}/assets", h.HandleAttachAsset)

	mux.HandleFunc("GET /api/profile", h.HandleGetProfile)
	mux.HandleFunc("PUT /api/profile", h.HandleSaveProfile)

	mux.HandleFunc("GET /api/days/{day}", h.HandleGetDay)
	mux.HandleFunc("PUT /api/days/{day}/feedback", h.HandleDayFeedback)
	mux.HandleFunc("PUT /api/days/{day}/checklist/{stepId}", h.HandleChecklist)
	mux.HandleFunc("POST /api/days/{day}/close", h.HandleCloseDay)
	mux.HandleFunc("GET /api/insights", h.HandleInsights)

	mux.HandleFunc("GET /api/days/{day}/events", h.HandleListEvents)
	mux.HandleFunc("POST /api/days/{day}/events", h.HandleAddEvent)
	mux.HandleFunc("DELETE /api/days/{day}/events/{id}", h.HandleDeleteEvent)
	mux.HandleFunc("GET /api/calendar/{year}", h.HandleCalendar)

	mux.HandleFunc("GET /api/reminders", h.HandleListReminders)
	mux.HandleFunc("POST /api/reminders", h.HandleAddReminder)
	mux.HandleFunc("DELETE /api/reminders/{id}", h.HandleDeleteReminder)

	mux.HandleFunc("GET /api/people", h.HandleListPeople)
	mux.HandleFunc("POST /api/people", h.HandleAddPerson)
	mux.HandleFunc("DELETE /api/people/{id}", h.HandleDeletePerson)
	mux.HandleFunc("POST /api/media", h.HandlePutMedia)
	mux.HandleFunc("GET /api/media/{ref}", h.HandleGetMedia)

	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(h.static)))

	var handler http.Handler = mux
	handler = limitBody(h.cfg.MaxBodyBytes, handler)
	handler = securityHeaders(handler)
	handler = recoverPanics(h.log, handler)
	handler = accessLog(h.log, handler)
	handler = requestID(handler)
	return handler
}

// securityHeaders adds security-related HTTP headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'self'; img-src 'self' data:; media-src 'self'; style-src 'self'")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}

// limitBody caps every request body at max bytes.
func limitBody(max int64, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if max > 0 && r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, max)
		}
		next.ServeHTTP(w, r)
	})
}

type requestIDKey struct{}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-Id"))
		if id == "" || len(id) > 64 {
			id = ulid.Make().String()
		}
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(p)
	w.bytes += n
	return n, err
}

func accessLog(log *logger.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r)

		log.Info("http request",
			"request_id", requestIDFrom(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"bytes", sw.bytes,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func recoverPanics(log *logger.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error("panic recovered",
					"request_id", requestIDFrom(r.Context()),
					"panic", rec,
					"stack", string(debug.Stack()),
				)
				writeError(w, errors.NewInternal(fmt.Errorf("panic: %v", rec)))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// Run serves HTTP and polls reminders until ctx is cancelled or the process
// receives SIGINT/SIGTERM, then shuts down gracefully.
func Run(ctx context.Context, srv *http.Server, poller *ReminderPoller, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pollerDone := make(chan struct{})
	go func() {
		defer close(pollerDone)
		poller.Run(ctx)
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	log.Info("rutina server listening", "url", "http://"+srv.Addr)
	if strings.HasPrefix(srv.Addr, "0.0.0.0:") || strings.HasPrefix(srv.Addr, "[::]:") || strings.HasPrefix(srv.Addr, ":") {
		log.Warn("server is binding to all interfaces and may be reachable from the network")
	}

	var err error
	select {
	case err = <-errCh:
		stop()
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err = srv.Shutdown(shutdownCtx)
	}
	<-pollerDone

	if stderrors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func subFS(fsys fs.FS, dir string) (fs.FS, error) {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("embedded %s: %w", dir, err)
	}
	return sub, nil
}
