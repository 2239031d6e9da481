package db

import (
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"clan-portal/backend/internal/apperror"
)

// constraintFields names the request field behind each unique constraint.
var constraintFields = map[string]string{
	"auths_email_key":                   "email",
	"providers_name_api_identifier_key": "apiIdentifier",
	"profiles_auth_id_key":              "authId",
	"roles_name_key":                    "name",
}

// TranslateError maps a database error onto the apperror taxonomy. It is the
// only place Postgres error codes are interpreted. Already classified errors
// pass through unchanged; nil stays nil.
//
// Unique violations become Conflict naming the field, other integrity
// violations Conflict, data exceptions BadRequest, and sql.ErrNoRows NotFound.
// Errors in the internal or system classes (XX, 58) are Fatal. Anything else
// is logged and returned as Internal.
func TranslateError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperror.From(err); ok {
		return err
	}
	if errors.Is(err, sql.ErrNoRows) {
		return apperror.Wrap(apperror.KindNotFound, "Not Found", err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == pgerrcode.UniqueViolation:
			return apperror.Wrap(apperror.KindConflict,
				fmt.Sprintf("Unique constraint failed on: %q", constraintField(pgErr)), err)
		case pgErr.Code == pgerrcode.NotNullViolation:
			return apperror.Wrap(apperror.KindBadRequest, "Validation Error", err)
		case pgerrcode.IsIntegrityConstraintViolation(pgErr.Code):
			return apperror.Wrap(apperror.KindConflict, "Conflict", err)
		case pgerrcode.IsDataException(pgErr.Code):
			return apperror.Wrap(apperror.KindBadRequest, "Validation Error", err)
		case pgerrcode.IsInternalError(pgErr.Code), pgerrcode.IsSystemError(pgErr.Code):
			log.Printf("db: unrecoverable database error %s: %v", pgErr.Code, err)
			return apperror.Wrap(apperror.KindFatal, "Internal server error", err)
		}
	}
	log.Printf("db: unexpected database error: %v", err)
	return apperror.Internal(err)
}

func constraintField(pgErr *pgconn.PgError) string {
	if f, ok := constraintFields[pgErr.ConstraintName]; ok {
		return f
	}
	if pgErr.ColumnName != "" {
		return pgErr.ColumnName
	}
	return pgErr.ConstraintName
}
