package xerrors

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

func ParsePGErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code // e.g. 23505 for unique_violation
	}
	return "unknown"
}

// Generic
var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrInternalServer = errors.New("internal server error")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrNotFound       = errors.New("not found")
)

// Order state machine
var (
	ErrInvalidTransition = errors.New("transition guard violated")
	ErrIllegalStatusEdge = errors.New("illegal status edge")
	ErrRemoteRejected    = errors.New("marketplace rejected status change")
)

// Sync scheduling
var (
	ErrAlreadySyncing = errors.New("sync already in progress for this integration")
	ErrTooSoon        = errors.New("sync interval has not elapsed yet")
	ErrSyncInProgress = errors.New("integration is busy with a running sync")
)

// Notifications
var (
	ErrTemplateRender        = errors.New("template render error")
	ErrNotificationImmutable = errors.New("delivered notification cannot be modified")
)

// Integrations
var (
	ErrInvalidInterval = errors.New("sync interval must be a positive number of minutes")
)
