package mailbox

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDialer(t *testing.T) {
	d, err := NewDialer(ProtocolPOP3, time.Second)
	require.NoError(t, err)
	assert.IsType(t, &POP3Dialer{}, d)

	d, err = NewDialer(ProtocolIMAP, time.Second)
	require.NoError(t, err)
	assert.IsType(t, &IMAPDialer{}, d)

	_, err = NewDialer("smtp", time.Second)
	assert.Error(t, err)
}

func TestErrorClassification(t *testing.T) {
	base := errors.New("boom")
	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"connection", &ConnectionError{Host: "mail:995", Err: base}, IsConnectionError},
		{"auth", &AuthError{Address: "a@b", Err: base}, IsAuthError},
		{"protocol", &ProtocolError{Op: "uidl", Err: base}, IsProtocolError},
		{"timeout", &TimeoutError{Op: "retr 3", Err: context.DeadlineExceeded}, IsTimeoutError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("user u1: %w", tt.err)
			assert.True(t, tt.check(wrapped))
			assert.False(t, tt.check(base))
		})
	}

	assert.ErrorIs(t, &TimeoutError{Op: "x", Err: context.DeadlineExceeded}, context.DeadlineExceeded)
}

func TestCallReturnsResult(t *testing.T) {
	v, err := call(context.Background(), "noop", func() (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestCallTimesOut(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	release := make(chan struct{})
	defer close(release)

	_, err := call(ctx, "retr 1", func() ([]byte, error) {
		<-release
		return nil, nil
	})
	require.Error(t, err)
	assert.True(t, IsTimeoutError(err))
}

func TestCallCanceledIsNotTimeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := call(ctx, "uidl", func() (int, error) { return 0, nil })
	require.Error(t, err)
	assert.False(t, IsTimeoutError(err))
	assert.ErrorIs(t, err, context.Canceled)
}
