package data

import (
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrCacheUnavailable is returned when the status cache cannot be reached.
var ErrCacheUnavailable = errors.New("status cache unavailable")

// IsRetryablePgError reports whether a Postgres error is transient and the
// operation can be retried on a later tick.
func IsRetryablePgError(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case pgerrcode.SerializationFailure,
		pgerrcode.DeadlockDetected,
		pgerrcode.LockNotAvailable,
		pgerrcode.AdminShutdown,
		pgerrcode.CannotConnectNow:
		return true
	}
	return pgerrcode.IsConnectionException(pgErr.Code)
}
