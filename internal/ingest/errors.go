package ingest

import (
	"errors"
	"fmt"

	"github.com/newdok/mailingest/internal/mailbox"
)

// PersistenceError indicates the store rejected a write or lookup. It aborts
// the current user's run.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// IsPersistenceError reports whether err (or any error in its chain) is a PersistenceError.
func IsPersistenceError(err error) bool {
	var target *PersistenceError
	return errors.As(err, &target)
}

// Failure kinds reported per user.
const (
	KindConnection  = "connection"
	KindAuth        = "auth"
	KindProtocol    = "protocol"
	KindTimeout     = "timeout"
	KindPersistence = "persistence"
	KindUnknown     = "unknown"
)

// ErrorKind classifies a per-user failure.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case mailbox.IsAuthError(err):
		return KindAuth
	case mailbox.IsTimeoutError(err):
		return KindTimeout
	case mailbox.IsConnectionError(err):
		return KindConnection
	case mailbox.IsProtocolError(err):
		return KindProtocol
	case IsPersistenceError(err):
		return KindPersistence
	default:
		return KindUnknown
	}
}
