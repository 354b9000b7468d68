package mailbox

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/knadh/go-pop3"
)

// quitTimeout bounds the polite goodbye on Close.
const quitTimeout = 5 * time.Second

// POP3Dialer opens POP3 sessions.
type POP3Dialer struct {
	DialTimeout time.Duration
}

// Dial connects, authenticates, and returns a session positioned on the
// maildrop. On authentication failure the connection is already released.
//
// The server connection is dialed here rather than by go-pop3 so the
// session owns the socket; go-pop3 talks to it through a loopback relay.
func (d *POP3Dialer) Dial(ctx context.Context, creds Credentials) (Session, error) {
	addr := net.JoinHostPort(creds.Host, strconv.Itoa(creds.Port))

	upstream, err := d.dialUpstream(ctx, addr, creds)
	if err != nil {
		return nil, err
	}

	rl, err := newRelay(upstream)
	if err != nil {
		_ = upstream.Close()
		return nil, &ConnectionError{Host: addr, Err: err}
	}

	host, port := rl.addr()
	client := pop3.New(pop3.Opt{Host: host, Port: port, DialTimeout: d.DialTimeout})

	conn, err := call(ctx, "greeting", client.NewConn)
	if err != nil {
		_ = rl.Close()
		if IsTimeoutError(err) {
			return nil, err
		}
		return nil, &ConnectionError{Host: addr, Err: err}
	}

	s := &pop3Session{conn: conn, relay: rl}
	_, err = call(ctx, "auth", func() (struct{}, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		return struct{}{}, conn.Auth(creds.Address, creds.Password)
	})
	if err != nil {
		_ = s.Close()
		if IsTimeoutError(err) {
			return nil, err
		}
		return nil, &AuthError{Address: creds.Address, Err: err}
	}

	return s, nil
}

func (d *POP3Dialer) dialUpstream(ctx context.Context, addr string, creds Credentials) (net.Conn, error) {
	if d.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.DialTimeout)
		defer cancel()
	}

	var nd net.Dialer
	raw, err := nd.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, dialError(ctx, addr, err)
	}
	if !creds.TLS {
		return raw, nil
	}

	tc := tls.Client(raw, &tls.Config{
		ServerName:         creds.Host,
		InsecureSkipVerify: creds.TLSSkipVerify, //nolint:gosec // opt-in for self-hosted servers
	})
	if err := tc.HandshakeContext(ctx); err != nil {
		_ = raw.Close()
		return nil, dialError(ctx, addr, err)
	}
	return tc, nil
}

func dialError(ctx context.Context, addr string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return contextError("dial", ctxErr)
	}
	return &ConnectionError{Host: addr, Err: err}
}

type pop3Session struct {
	// mu is held for the duration of every protocol exchange.
	mu     sync.Mutex
	conn   *pop3.Conn
	relay  *relay
	closed bool
	once   sync.Once
}

func (s *pop3Session) List(ctx context.Context) ([]MessageID, error) {
	msgs, err := call(ctx, "uidl", func() ([]pop3.MessageID, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed {
			return nil, errSessionClosed
		}
		return s.conn.Uidl(0)
	})
	if err != nil {
		if IsTimeoutError(err) {
			return nil, err
		}
		return nil, &ProtocolError{Op: "uidl", Err: err}
	}

	out := make([]MessageID, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, MessageID{Position: m.ID, UID: m.UID, Size: m.Size})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (s *pop3Session) Fetch(ctx context.Context, position int) ([]byte, error) {
	op := fmt.Sprintf("retr %d", position)
	raw, err := call(ctx, op, func() ([]byte, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed {
			return nil, errSessionClosed
		}
		buf, err := s.conn.RetrRaw(position)
		if err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	})
	if err != nil {
		if IsTimeoutError(err) {
			return nil, err
		}
		return nil, &ProtocolError{Op: op, Err: err}
	}
	return raw, nil
}

// Close sends QUIT and drops the connection. When an abandoned exchange
// still holds the connection, the connection is severed instead, which
// unblocks that exchange.
func (s *pop3Session) Close() error {
	var err error
	s.once.Do(func() {
		if s.mu.TryLock() {
			err = s.quitLocked()
			return
		}

		err = s.relay.Close()
		go func() {
			s.mu.Lock()
			s.closed = true
			s.mu.Unlock()
		}()
	})
	if err != nil {
		return fmt.Errorf("closing pop3 session: %w", err)
	}
	return nil
}

func (s *pop3Session) quitLocked() error {
	defer s.mu.Unlock()
	s.closed = true

	quit := make(chan error, 1)
	go func() { quit <- s.conn.Quit() }()

	var err error
	select {
	case err = <-quit:
	case <-time.After(quitTimeout):
		err = errors.New("no reply to QUIT")
	}

	if rerr := s.relay.Close(); err == nil {
		err = rerr
	}
	return err
}
