package extract

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractUploadsMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		data, _ := io.ReadAll(file)

		assert.Equal(t, "notes.pdf", header.Filename)
		assert.Equal(t, "application/pdf", header.Header.Get("Content-Type"))
		assert.Equal(t, "%PDF-1.4", string(data))
		_, _ = w.Write([]byte(`{"text":"  photosynthesis converts light  "}`))
	}))
	defer srv.Close()

	c := NewClient(Config{URL: srv.URL}, zerolog.Nop())
	text, err := c.Extract(context.Background(), "notes.pdf", strings.NewReader("%PDF-1.4"))
	require.NoError(t, err)
	assert.Equal(t, "photosynthesis converts light", text)
}

func TestExtractEmptyText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"text":"   "}`))
	}))
	defer srv.Close()

	_, err := NewClient(Config{URL: srv.URL}, zerolog.Nop()).Extract(context.Background(), "a.pdf", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrNoText)
}

func TestExtractUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(Config{URL: srv.URL}, zerolog.Nop()).Extract(context.Background(), "a.pdf", strings.NewReader("x"))
	assert.ErrorContains(t, err, "502")
}
