package database

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/synapse-dte/decision-engine/pkg/apperrors"
)

func TestTranslateError(t *testing.T) {
	uniqueErr := &pgconn.PgError{Code: "23505", Message: "duplicate key value"}
	connErr := &pgconn.PgError{Code: "57P01", Message: "terminating connection"}

	tests := []struct {
		name string
		in   error
		want error
	}{
		{
			name: "unique violation becomes conflict",
			in:   fmt.Errorf("failed to create version: %w", uniqueErr),
			want: apperrors.ErrConflict,
		},
		{
			name: "other database errors become infrastructure",
			in:   fmt.Errorf("failed to list items: %w", connErr),
			want: apperrors.ErrInfrastructure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, TranslateError(tt.in), tt.want)
		})
	}

	t.Run("classified errors pass through unchanged", func(t *testing.T) {
		wrapped := fmt.Errorf("version 3: %w", apperrors.ErrConflict)
		assert.Equal(t, wrapped, TranslateError(wrapped))

		domain := fmt.Errorf("item has no reviewer decision: %w", apperrors.ErrBusinessLogic)
		assert.Equal(t, domain, TranslateError(domain))
		assert.NotErrorIs(t, TranslateError(domain), apperrors.ErrInfrastructure)
	})

	t.Run("non-database errors pass through unchanged", func(t *testing.T) {
		assert.Equal(t, assert.AnError, TranslateError(assert.AnError))
	})

	t.Run("nil stays nil", func(t *testing.T) {
		assert.NoError(t, TranslateError(nil))
	})
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, IsUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "57P01"})))
	assert.False(t, IsUniqueViolation(assert.AnError))
}
