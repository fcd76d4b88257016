package db

import (
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	codeUniqueViolation           = "23505"
	codeForeignKeyViolation       = "23503"
	codeInvalidTextRepresentation = "22P02"
)

func IsUniqueViolation(err error) bool {
	return pgCode(err) == codeUniqueViolation
}

func IsForeignKeyViolation(err error) bool {
	return pgCode(err) == codeForeignKeyViolation
}

// ConstraintName reports the violated constraint, or "" for non-postgres errors.
func ConstraintName(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.ConstraintName
	}
	return ""
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// IsInvalidInput reports a value Postgres could not parse for its column
// type, such as a malformed uuid.
func IsInvalidInput(err error) bool {
	return pgCode(err) == codeInvalidTextRepresentation
}

// ValidID reports whether id is a UUID.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// OptionalID maps an empty id filter to NULL for queries written as
// ($1::uuid IS NULL OR col = $1::uuid).
func OptionalID(id string) any {
	if id == "" {
		return nil
	}
	return id
}
