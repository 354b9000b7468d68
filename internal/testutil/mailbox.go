package testutil

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/newdok/mailingest/internal/mailbox"
)

// FakeMailbox is an in-memory mailbox served by FakeDialer.
type FakeMailbox struct {
	Password string

	// Messages holds raw messages; position N is Messages[N-1].
	Messages [][]byte

	// FetchErr fails Fetch for the given positions.
	FetchErr map[int]error

	// FetchDelay is applied before every Fetch, honouring ctx.
	FetchDelay time.Duration
}

// FakeDialer serves FakeMailboxes keyed by mailbox address.
type FakeDialer struct {
	mu        sync.Mutex
	Mailboxes map[string]*FakeMailbox

	// DialErr fails Dial for the given addresses.
	DialErr map[string]error

	// OnDial, when set, runs at the start of every Dial.
	OnDial func(ctx context.Context, creds mailbox.Credentials)

	fetched map[string][]int
	open    int
	closed  int
}

// NewFakeDialer returns an empty FakeDialer.
func NewFakeDialer() *FakeDialer {
	return &FakeDialer{
		Mailboxes: map[string]*FakeMailbox{},
		DialErr:   map[string]error{},
		fetched:   map[string][]int{},
	}
}

// Add registers a mailbox and returns it.
func (d *FakeDialer) Add(address, password string, messages ...[]byte) *FakeMailbox {
	d.mu.Lock()
	defer d.mu.Unlock()
	mb := &FakeMailbox{Password: password, Messages: messages, FetchErr: map[int]error{}}
	d.Mailboxes[strings.ToLower(address)] = mb
	return mb
}

// Deliver appends a message to an existing mailbox.
func (d *FakeDialer) Deliver(address string, raw []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	mb := d.Mailboxes[strings.ToLower(address)]
	mb.Messages = append(mb.Messages, raw)
}

// Fetched returns the positions fetched from a mailbox across all sessions.
func (d *FakeDialer) Fetched(address string) []int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]int(nil), d.fetched[strings.ToLower(address)]...)
}

// OpenSessions returns how many sessions were dialed but not closed.
func (d *FakeDialer) OpenSessions() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.open - d.closed
}

// Dial implements mailbox.Dialer.
func (d *FakeDialer) Dial(ctx context.Context, creds mailbox.Credentials) (mailbox.Session, error) {
	if d.OnDial != nil {
		d.OnDial(ctx, creds)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	addr := strings.ToLower(creds.Address)
	if err := d.DialErr[addr]; err != nil {
		return nil, &mailbox.ConnectionError{Host: creds.Host, Err: err}
	}
	mb, ok := d.Mailboxes[addr]
	if !ok {
		return nil, &mailbox.ConnectionError{Host: creds.Host, Err: fmt.Errorf("no mailbox %s", addr)}
	}
	if mb.Password != creds.Password {
		return nil, &mailbox.AuthError{Address: creds.Address, Err: errors.New("invalid password")}
	}

	d.open++
	return &fakeSession{dialer: d, address: addr, mb: mb}, nil
}

type fakeSession struct {
	dialer  *FakeDialer
	address string
	mb      *FakeMailbox
	closed  bool
}

func (s *fakeSession) List(_ context.Context) ([]mailbox.MessageID, error) {
	s.dialer.mu.Lock()
	defer s.dialer.mu.Unlock()

	out := make([]mailbox.MessageID, 0, len(s.mb.Messages))
	for i, m := range s.mb.Messages {
		out = append(out, mailbox.MessageID{Position: i + 1, UID: fmt.Sprintf("uid-%d", i+1), Size: len(m)})
	}
	return out, nil
}

func (s *fakeSession) Fetch(ctx context.Context, position int) ([]byte, error) {
	if s.mb.FetchDelay > 0 {
		select {
		case <-time.After(s.mb.FetchDelay):
		case <-ctx.Done():
			return nil, &mailbox.TimeoutError{Op: fmt.Sprintf("retr %d", position), Err: ctx.Err()}
		}
	}

	s.dialer.mu.Lock()
	defer s.dialer.mu.Unlock()

	s.dialer.fetched[s.address] = append(s.dialer.fetched[s.address], position)
	if err := s.mb.FetchErr[position]; err != nil {
		return nil, err
	}
	if position < 1 || position > len(s.mb.Messages) {
		return nil, &mailbox.ProtocolError{Op: fmt.Sprintf("retr %d", position), Err: errors.New("no such message")}
	}
	return s.mb.Messages[position-1], nil
}

func (s *fakeSession) Close() error {
	s.dialer.mu.Lock()
	defer s.dialer.mu.Unlock()
	if !s.closed {
		s.closed = true
		s.dialer.closed++
	}
	return nil
}
