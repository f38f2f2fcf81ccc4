package db

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/clinic/clinic/internal/platform/apperror"
)

// PostgreSQL SQLSTATE codes the application reacts to.
const (
	CodeUniqueViolation      = "23505"
	CodeForeignKeyViolation  = "23503"
	CodeCheckViolation       = "23514"
	CodeExclusionViolation   = "23P01"
	CodeSerializationFailure = "40001"
	CodeDeadlockDetected     = "40P01"
)

// PgCode returns the SQLSTATE of err, or "" when err is not a server error.
func PgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// TranslateError turns driver errors into application errors. entity names
// the record being read or written and ends up in the caller-visible message.
func TranslateError(err error, entity string) error {
	if err == nil {
		return nil
	}
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperror.NotFound("%s not found", entity)
	}

	switch PgCode(err) {
	case CodeUniqueViolation:
		return apperror.Duplicate("%s already exists", entity)
	case CodeForeignKeyViolation:
		return apperror.Validation("%s refers to a record that does not exist", entity)
	case CodeCheckViolation:
		return apperror.Validation("%s has invalid field values", entity)
	case CodeExclusionViolation:
		return apperror.Conflict("%s overlaps an existing booking", entity)
	case CodeSerializationFailure, CodeDeadlockDetected:
		return apperror.Conflict("%s was modified concurrently, please retry", entity)
	}
	return apperror.Internal(entity, err)
}
