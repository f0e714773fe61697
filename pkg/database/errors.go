package database

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/synapse-dte/decision-engine/pkg/apperrors"
)

// ErrNoScope is returned when an operation runs without a database scope in
// its context. Indicates a wiring bug, not a caller error.
var ErrNoScope = errors.New("no database scope in context")

// uniqueViolationCode is the PostgreSQL error code for unique constraint
// violations, including partial unique indexes.
const uniqueViolationCode = "23505"

// IsUniqueViolation reports whether err is a PostgreSQL unique-constraint
// violation. The version repository relies on this to turn the
// single-active-version index into a ConflictError.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

// TranslateError maps raw PostgreSQL failures onto the engine's error
// taxonomy: unique violations become ErrConflict, any other database error
// ErrInfrastructure. Errors that already carry a sentinel, and non-database
// errors, pass through untouched.
func TranslateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, apperrors.ErrConflict) || errors.Is(err, apperrors.ErrInfrastructure) {
		return err
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	if pgErr.Code == uniqueViolationCode {
		return fmt.Errorf("%v: %w", err, apperrors.ErrConflict)
	}
	return fmt.Errorf("%v: %w", err, apperrors.ErrInfrastructure)
}
