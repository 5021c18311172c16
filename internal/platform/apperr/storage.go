package apperr

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// PostgreSQL error codes that indicate bad input rather than a server fault.
const (
	pgUniqueViolation     = "23505"
	pgNotNullViolation    = "23502"
	pgCheckViolation      = "23514"
	pgInvalidTextRep      = "22P02"
	pgNumericOutOfRange   = "22003"
	pgInvalidDatetime     = "22007"
	pgStringDataTruncated = "22001"
)

// FromStorage translates a storage-layer error into the taxonomy.
// entity names the record kind in client messages (e.g. "user").
// Errors that already carry a code pass through untouched.
func FromStorage(err error, entity string) error {
	if err == nil {
		return nil
	}
	if _, ok := As(err); ok {
		return err
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return Wrap(err, CodeNotFound, fmt.Sprintf("%s not found", entity))
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return Wrap(err, CodeConflict, fmt.Sprintf("Duplicate value for %s", entity))
	case errors.Is(err, gorm.ErrInvalidData),
		errors.Is(err, gorm.ErrInvalidField),
		errors.Is(err, gorm.ErrInvalidValue),
		errors.Is(err, gorm.ErrPrimaryKeyRequired),
		errors.Is(err, gorm.ErrModelValueRequired):
		return Wrap(err, CodeInvalid, fmt.Sprintf("Invalid %s data", entity))
	case errors.Is(err, gorm.ErrMissingWhereClause):
		return Wrap(err, CodeInvalid, "A filter is required for this operation")
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return Wrap(err, CodeConflict, fmt.Sprintf("Duplicate value for %s", entity)).
				WithDetails(map[string]string{"constraint": pgErr.ConstraintName})
		case pgNotNullViolation, pgCheckViolation:
			return Wrap(err, CodeInvalid, fmt.Sprintf("%s validation failed", entity)).
				WithDetails(map[string]string{"column": pgErr.ColumnName, "constraint": pgErr.ConstraintName})
		case pgInvalidTextRep, pgNumericOutOfRange, pgInvalidDatetime, pgStringDataTruncated:
			return Wrap(err, CodeInvalid, fmt.Sprintf("Invalid value for %s", entity))
		}
	}

	return Internal(err)
}
