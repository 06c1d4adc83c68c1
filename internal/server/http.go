package server

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/thinkb-quiz/internal/config"
	"github.com/gokatarajesh/thinkb-quiz/internal/kv"
	"github.com/gokatarajesh/thinkb-quiz/internal/logging"
)

// WSUpgrader handles WebSocket upgrades.
var WSUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Mobile clients send no Origin header.
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Routes mounts a feature's REST endpoints.
type Routes interface {
	Register(mux *http.ServeMux)
}

// NewHTTPServer wires base routes (health, metrics, ping) plus feature routes.
// wsHandler can be nil if the WebSocket surface is disabled.
func NewHTTPServer(cfg *config.App, logger zerolog.Logger, store kv.Store, routes Routes, wsHandler http.HandlerFunc) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /v1/ping", func(w http.ResponseWriter, r *http.Request) {
		if err := pingDependencies(r.Context(), store); err != nil {
			logger := logging.FromContext(r.Context())
			logger.Error().Err(err).Msg("dependency ping failed")
			http.Error(w, "upstream error", http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"pong":true}`))
	})

	if routes != nil {
		routes.Register(mux)
	}

	if wsHandler != nil {
		mux.HandleFunc("GET /ws/generate", wsHandler)
	} else {
		mux.HandleFunc("/ws/generate", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "WebSocket generation disabled", http.StatusNotImplemented)
		})
	}

	return &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: withRequestLogger(mux, logger),
	}
}

func pingDependencies(ctx context.Context, store kv.Store) error {
	if pinger, ok := store.(kv.Pinger); ok {
		return pinger.Ping(ctx)
	}
	return nil
}

// withRequestLogger tags each request with an id and a scoped logger.
func withRequestLogger(next http.Handler, logger zerolog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)

		reqLogger := logger.With().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Logger()
		next.ServeHTTP(w, r.WithContext(logging.IntoContext(r.Context(), reqLogger)))
	})
}
