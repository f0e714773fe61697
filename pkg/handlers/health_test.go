package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/synapse-dte/decision-engine/pkg/apperrors"
	"github.com/synapse-dte/decision-engine/pkg/config"
)

func TestHealthEndpoints(t *testing.T) {
	cfg := &config.Config{Version: "1.2.3", Env: "test"}
	handler := NewHealthHandler(cfg, zap.NewNop())
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	t.Run("health returns ok", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ok", rec.Body.String())
	})

	t.Run("ping returns service details", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var resp PingResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "ok", resp.Status)
		assert.Equal(t, "1.2.3", resp.Version)
		assert.Equal(t, "decision-engine", resp.Service)
		assert.Equal(t, "test", resp.Environment)
	})
}

func TestStatusFromError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("bad input: %w", apperrors.ErrValidation), http.StatusBadRequest},
		{fmt.Errorf("missing: %w", apperrors.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("racing: %w", apperrors.ErrConflict), http.StatusConflict},
		{fmt.Errorf("sequencing: %w", apperrors.ErrBusinessLogic), http.StatusUnprocessableEntity},
		{fmt.Errorf("nope: %w", apperrors.ErrForbidden), http.StatusForbidden},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFromError(tt.err))
	}
}
