package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/gokatarajesh/thinkb-quiz/internal/config"
	"github.com/gokatarajesh/thinkb-quiz/internal/kv"
	"github.com/gokatarajesh/thinkb-quiz/internal/logging"
)

type downStore struct{ *kv.Memory }

func (downStore) Ping(context.Context) error { return errors.New("down") }

type echoRoutes struct{ sawRequestID *string }

func (p echoRoutes) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/echo", func(w http.ResponseWriter, r *http.Request) {
		logger := logging.FromContext(r.Context())
		logger.Info().Msg("route hit")
		*p.sawRequestID = w.Header().Get("X-Request-ID")
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestHealthAndPing(t *testing.T) {
	srv := NewHTTPServer(&config.App{}, zerolog.Nop(), kv.NewMemory(), nil, nil)

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/ping", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPingReportsStoreFailure(t *testing.T) {
	srv := NewHTTPServer(&config.App{}, zerolog.Nop(), downStore{kv.NewMemory()}, nil, nil)

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/ping", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestRequestIDPropagates(t *testing.T) {
	var seen string
	srv := NewHTTPServer(&config.App{}, zerolog.Nop(), kv.NewMemory(), echoRoutes{sawRequestID: &seen}, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/echo", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "req-123", rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "req-123", seen)
}
