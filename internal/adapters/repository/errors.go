package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// Postgres SQLSTATE codes this package reacts to.
const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// sqlState extracts the SQLSTATE code from a Postgres error. Both drivers
// registered in this module are recognized: pgx surfaces *pgconn.PgError,
// lib/pq surfaces *pq.Error.
func sqlState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}

	return ""
}

func isUniqueViolation(err error) bool {
	return sqlState(err) == uniqueViolation
}

func isForeignKeyViolation(err error) bool {
	return sqlState(err) == foreignKeyViolation
}
