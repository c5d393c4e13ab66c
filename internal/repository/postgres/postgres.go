// Package postgres implements the repository interfaces over pgx. The
// incident and service stores double as the mutation engine: each
// mutating method is one transaction, and callers broadcast only after
// the method returns the committed entity.
package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// uniqueViolation is the Postgres error code for a unique-constraint
// failure (duplicate slug, email, or team name).
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
