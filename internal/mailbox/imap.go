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

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
)

// IMAPDialer opens IMAP sessions on INBOX. Positions are IMAP sequence
// numbers, which match arrival order as long as nothing is expunged.
type IMAPDialer struct {
	DialTimeout time.Duration
}

// Dial connects, authenticates, and selects INBOX.
func (d *IMAPDialer) Dial(ctx context.Context, creds Credentials) (Session, error) {
	addr := net.JoinHostPort(creds.Host, strconv.Itoa(creds.Port))
	opts := &imapclient.Options{
		TLSConfig: &tls.Config{
			ServerName:         creds.Host,
			InsecureSkipVerify: creds.TLSSkipVerify, //nolint:gosec // opt-in for self-hosted servers
		},
	}

	dialCtx := ctx
	if d.DialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, d.DialTimeout)
		defer cancel()
	}

	client, err := call(dialCtx, "dial", func() (*imapclient.Client, error) {
		if creds.TLS {
			return imapclient.DialTLS(addr, opts)
		}
		return imapclient.DialStartTLS(addr, opts)
	})
	if err != nil {
		if IsTimeoutError(err) {
			return nil, err
		}
		return nil, &ConnectionError{Host: addr, Err: err}
	}

	s := &imapSession{client: client}

	if _, err := call(ctx, "login", func() (struct{}, error) {
		return struct{}{}, client.Login(creds.Address, creds.Password).Wait()
	}); err != nil {
		_ = s.Close()
		if IsTimeoutError(err) {
			return nil, err
		}
		return nil, &AuthError{Address: creds.Address, Err: err}
	}

	data, err := call(ctx, "select", func() (*imap.SelectData, error) {
		return client.Select("INBOX", &imap.SelectOptions{ReadOnly: true}).Wait()
	})
	if err != nil {
		_ = s.Close()
		if IsTimeoutError(err) {
			return nil, err
		}
		return nil, &ProtocolError{Op: "select INBOX", Err: err}
	}
	s.numMessages = data.NumMessages

	return s, nil
}

type imapSession struct {
	client      *imapclient.Client
	numMessages uint32
	once        sync.Once
}

func (s *imapSession) List(ctx context.Context) ([]MessageID, error) {
	if s.numMessages == 0 {
		return nil, nil
	}

	var seqSet imap.SeqSet
	seqSet.AddRange(1, s.numMessages)

	bufs, err := call(ctx, "fetch uids", func() ([]*imapclient.FetchMessageBuffer, error) {
		return s.client.Fetch(seqSet, &imap.FetchOptions{
			UID:        true,
			RFC822Size: true,
		}).Collect()
	})
	if err != nil {
		if IsTimeoutError(err) {
			return nil, err
		}
		return nil, &ProtocolError{Op: "fetch uids", Err: err}
	}

	out := make([]MessageID, 0, len(bufs))
	for _, buf := range bufs {
		out = append(out, MessageID{
			Position: int(buf.SeqNum),
			UID:      strconv.FormatUint(uint64(buf.UID), 10),
			Size:     int(buf.RFC822Size),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (s *imapSession) Fetch(ctx context.Context, position int) ([]byte, error) {
	op := fmt.Sprintf("fetch %d", position)
	bodySection := &imap.FetchItemBodySection{Peek: true}

	raw, err := call(ctx, op, func() ([]byte, error) {
		bufs, err := s.client.Fetch(imap.SeqSetNum(uint32(position)), &imap.FetchOptions{
			BodySection: []*imap.FetchItemBodySection{bodySection},
		}).Collect()
		if err != nil {
			return nil, err
		}
		if len(bufs) == 0 {
			return nil, errors.New("message not found")
		}
		body := bufs[0].FindBodySection(bodySection)
		if body == nil {
			return nil, errors.New("empty body section")
		}
		return body, nil
	})
	if err != nil {
		if IsTimeoutError(err) {
			return nil, err
		}
		return nil, &ProtocolError{Op: op, Err: err}
	}
	return raw, nil
}

// Close logs out. Closing the client unblocks any abandoned command.
func (s *imapSession) Close() error {
	var err error
	s.once.Do(func() {
		done := make(chan struct{})
		go func() {
			_ = s.client.Logout().Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
		}
		if cerr := s.client.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
			err = fmt.Errorf("closing imap session: %w", cerr)
		}
	})
	return err
}
