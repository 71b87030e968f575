package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/mux"
)

// healthReport is the /healthz body.
type healthReport struct {
	Status        string   `json:"status"`
	Version       string   `json:"version"`
	Uptime        string   `json:"uptime"`
	Cogs          []string `json:"cogs"`
	Notifications int      `json:"notifications"`
	Views         int      `json:"views"`
}

// opsRouter builds the ops endpoints: health and Prometheus metrics.
func opsRouter(b *Bot, started time.Time) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, healthReport{
			Status:        "ok",
			Version:       cogbotVersion,
			Uptime:        time.Since(started).Round(time.Second).String(),
			Cogs:          b.cogs.Loaded(),
			Notifications: b.notify.Live(),
			Views:         b.views.Len(),
		})
	}).Methods(http.MethodGet)
	r.Handle("/metrics", metricsHandler()).Methods(http.MethodGet)

	// Middleware chain: recovery → trace → router
	return recoveryMiddleware(traceMiddleware(r))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logWarn("http encode failed", "error", err)
	}
}

// recoveryMiddleware catches panics in HTTP handlers, logs the stack trace, and returns 500.
func recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rv := recover(); rv != nil {
				buf := make([]byte, 4096)
				n := runtime.Stack(buf, false)
				logErrorCtx(r.Context(), "http handler panic", "panic", fmt.Sprintf("%v", rv), "path", r.URL.Path, "stack", string(buf[:n]))
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// startOpsServer serves the ops router on addr until ctx is cancelled. An
// empty addr disables it.
func startOpsServer(ctx context.Context, addr string, handler http.Handler) *http.Server {
	if addr == "" {
		return nil
	}
	srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logError("http server error", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
	logInfo("http server listening", "addr", addr)
	return srv
}
