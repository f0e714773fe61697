package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestRequestLogger(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	t.Run("logs method, path and status", func(t *testing.T) {
		core, logs := observer.New(zap.DebugLevel)
		wrapped := RequestLogger(zap.New(core))(handler)

		rec := httptest.NewRecorder()
		wrapped.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusTeapot, rec.Code)
		entries := logs.All()
		assert.Len(t, entries, 1)
		fields := entries[0].ContextMap()
		assert.Equal(t, "GET", fields["method"])
		assert.Equal(t, "/health", fields["path"])
		assert.Equal(t, int64(http.StatusTeapot), fields["status"])
	})

	t.Run("nil logger passes through", func(t *testing.T) {
		wrapped := RequestLogger(nil)(handler)
		rec := httptest.NewRecorder()
		wrapped.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusTeapot, rec.Code)
	})
}
