package data

import (
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

// Shared sentinel errors for data-layer repositories.
var (
	// ErrRequestNotFound is returned when a request row does not exist.
	ErrRequestNotFound = errors.New("request not found")
)

// IsUndefinedTable reports whether err indicates the schema has not been
// migrated yet.
func IsUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UndefinedTable
}
