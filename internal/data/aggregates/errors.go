package aggregates

import (
	"context"
	"database/sql/driver"
	"errors"
	"io"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	domainagg "github.com/yungbote/tastelab-backend/internal/domain/aggregates"
)

// errCounterMoved reports a compare-and-set that matched no row because
// another writer advanced the counter first.
var errCounterMoved = errors.New("version counter moved concurrently")

var pgErrorCodes = map[string]domainagg.ErrorCode{
	"23505": domainagg.CodeConflict,           // unique_violation
	"23503": domainagg.CodePreconditionFailed, // foreign_key_violation
	"40001": domainagg.CodeRetryable,          // serialization_failure
	"40P01": domainagg.CodeRetryable,          // deadlock_detected
	"55P03": domainagg.CodeRetryable,          // lock_not_available
	"57014": domainagg.CodeRetryable,          // query_canceled
}

// sqlite reports constraint and lock failures only as text.
var sqliteErrorMarkers = []struct {
	marker string
	code   domainagg.ErrorCode
}{
	{"unique constraint failed", domainagg.CodeConflict},
	{"foreign key constraint failed", domainagg.CodePreconditionFailed},
	{"database is locked", domainagg.CodeRetryable},
	{"database table is locked", domainagg.CodeRetryable},
	{"disk i/o error", domainagg.CodeRetryable},
}

// ClassifyError converts a storage failure into a domain aggregate error.
// Errors that already carry a code pass through unchanged.
func ClassifyError(op string, err error) error {
	if err == nil {
		return nil
	}
	if domainagg.CodeOf(err) != "" {
		return err
	}
	switch {
	case errors.Is(err, errCounterMoved):
		return domainagg.Wrap(domainagg.CodeConflict, op, err)
	case errors.Is(err, gorm.ErrRecordNotFound):
		return domainagg.Wrap(domainagg.CodeNotFound, op, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return domainagg.Wrap(domainagg.CodeRetryable, op, err)
	case connectionLost(err):
		return domainagg.Wrap(domainagg.CodeRetryable, op, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if code, ok := pgErrorCodes[pgErr.Code]; ok {
			return domainagg.Wrap(code, op, err)
		}
		// class 08: connection exception
		if strings.HasPrefix(pgErr.Code, "08") {
			return domainagg.Wrap(domainagg.CodeRetryable, op, err)
		}
		return domainagg.Wrap(domainagg.CodeInternal, op, err)
	}

	msg := strings.ToLower(err.Error())
	for _, m := range sqliteErrorMarkers {
		if strings.Contains(msg, m.marker) {
			return domainagg.Wrap(m.code, op, err)
		}
	}
	return domainagg.Wrap(domainagg.CodeInternal, op, err)
}

// connectionLost reports I/O failures between the service and the database.
func connectionLost(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	return pgconn.Timeout(err) || pgconn.SafeToRetry(err)
}
