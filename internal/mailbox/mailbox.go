// Package mailbox retrieves raw messages from user subscription mailboxes.
// Messages are addressed by 1-based position; position order is arrival order.
package mailbox

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Supported retrieval protocols.
const (
	ProtocolPOP3 = "pop3"
	ProtocolIMAP = "imap"
)

// Credentials identify one user's mailbox on a mail server.
type Credentials struct {
	Address       string
	Password      string
	Host          string
	Port          int
	TLS           bool
	TLSSkipVerify bool
}

// MessageID describes a message present in the mailbox.
type MessageID struct {
	Position int
	UID      string
	Size     int
}

// Session is an authenticated connection to a single mailbox.
// A Session is not safe for concurrent use.
type Session interface {
	// List returns every message in the mailbox ordered by position.
	List(ctx context.Context) ([]MessageID, error)

	// Fetch returns the raw RFC 5322 bytes of the message at position.
	Fetch(ctx context.Context, position int) ([]byte, error)

	// Close ends the session. It is safe to call more than once.
	Close() error
}

// Dialer opens sessions.
type Dialer interface {
	Dial(ctx context.Context, creds Credentials) (Session, error)
}

// NewDialer returns a Dialer for the named protocol.
func NewDialer(protocol string, dialTimeout time.Duration) (Dialer, error) {
	switch protocol {
	case ProtocolPOP3:
		return &POP3Dialer{DialTimeout: dialTimeout}, nil
	case ProtocolIMAP:
		return &IMAPDialer{DialTimeout: dialTimeout}, nil
	default:
		return nil, fmt.Errorf("unsupported mailbox protocol %q", protocol)
	}
}

var errSessionClosed = errors.New("session closed")

// ConnectionError indicates the mail server could not be reached.
type ConnectionError struct {
	Host string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connecting to %s: %v", e.Host, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// AuthError indicates the server rejected the mailbox credentials.
type AuthError struct {
	Address string
	Err     error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed for %s: %v", e.Address, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// ProtocolError indicates a malformed or failed protocol exchange.
type ProtocolError struct {
	Op  string
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("mailbox %s: %v", e.Op, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// TimeoutError indicates a mailbox operation exceeded its deadline.
type TimeoutError struct {
	Op  string
	Err error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("mailbox %s timed out: %v", e.Op, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// IsConnectionError reports whether err (or any error in its chain) is a ConnectionError.
func IsConnectionError(err error) bool {
	var target *ConnectionError
	return errors.As(err, &target)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var target *AuthError
	return errors.As(err, &target)
}

// IsProtocolError reports whether err (or any error in its chain) is a ProtocolError.
func IsProtocolError(err error) bool {
	var target *ProtocolError
	return errors.As(err, &target)
}

// IsTimeoutError reports whether err (or any error in its chain) is a TimeoutError.
func IsTimeoutError(err error) bool {
	var target *TimeoutError
	return errors.As(err, &target)
}

// call runs fn on its own goroutine so a blocking protocol exchange can be
// abandoned when ctx ends. fn keeps running after an abandoned call; the
// caller must not reuse the connection until fn returns.
func call[T any](ctx context.Context, op string, fn func() (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, contextError(op, err)
	}

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn()
		done <- result{v: v, err: err}
	}()

	select {
	case r := <-done:
		return r.v, r.err
	case <-ctx.Done():
		return zero, contextError(op, ctx.Err())
	}
}

func contextError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Op: op, Err: err}
	}
	return fmt.Errorf("mailbox %s: %w", op, err)
}
