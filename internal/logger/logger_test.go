package logger

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

func TestConsoleLoggerWritesCategory(t *testing.T) {
	var buf bytes.Buffer
	l := NewConsoleLogger(&buf)

	l.LogCash("CONFIRM", "sess-1", "session confirmed")
	l.Warn("settlement", "compensation ran")

	out := buf.String()
	assert.Contains(t, out, "[CASH      ]")
	assert.Contains(t, out, "[CONFIRM] sess-1 - session confirmed")
	assert.Contains(t, out, "[SETTLEMENT]")
}

func TestMiddlewareLogsStatus(t *testing.T) {
	var buf bytes.Buffer
	l := NewConsoleLogger(&buf)

	r := chi.NewRouter()
	r.Use(Middleware(l))
	r.Get("/missing", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, buf.String(), "GET /missing - 404")
}
