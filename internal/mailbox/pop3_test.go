package mailbox

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pop3Server is a single-connection POP3 server for exercising the real
// go-pop3 session.
type pop3Server struct {
	ln       net.Listener
	password string
	messages []string

	// hangRetr swallows RETR without replying.
	hangRetr bool

	disconnected chan struct{}
}

func startPOP3Server(t *testing.T, password string, messages ...string) *pop3Server {
	t.Helper()
	return servePOP3(t, &pop3Server{password: password, messages: messages})
}

// servePOP3 starts s. Fields must be set before the call.
func servePOP3(t *testing.T, s *pop3Server) *pop3Server {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	s.ln = ln
	s.disconnected = make(chan struct{})
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		s.serve(conn)
	}()
	return s
}

func (s *pop3Server) creds(password string) Credentials {
	tcp := s.ln.Addr().(*net.TCPAddr)
	return Credentials{
		Address:  "reader@newdok.test",
		Password: password,
		Host:     tcp.IP.String(),
		Port:     tcp.Port,
	}
}

func (s *pop3Server) serve(conn net.Conn) {
	defer close(s.disconnected)
	defer conn.Close()

	write := func(line string) { _, _ = io.WriteString(conn, line) }
	r := bufio.NewReader(conn)

	write("+OK ready\r\n")
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		switch strings.ToUpper(fields[0]) {
		case "USER":
			write("+OK\r\n")
		case "PASS":
			if len(fields) > 1 && fields[1] == s.password {
				write("+OK logged in\r\n")
			} else {
				write("-ERR invalid credentials\r\n")
			}
		case "UIDL":
			write("+OK\r\n")
			for i := range s.messages {
				write(fmt.Sprintf("%d uid-%d\r\n", i+1, i+1))
			}
			write(".\r\n")
		case "RETR":
			if s.hangRetr {
				continue
			}
			n, _ := strconv.Atoi(fields[1])
			if n < 1 || n > len(s.messages) {
				write("-ERR no such message\r\n")
				continue
			}
			write("+OK\r\n" + s.messages[n-1] + "\r\n.\r\n")
		case "QUIT":
			write("+OK bye\r\n")
			return
		default:
			write("-ERR unknown command\r\n")
		}
	}
}

func (s *pop3Server) waitDisconnect(t *testing.T) {
	t.Helper()
	select {
	case <-s.disconnected:
	case <-time.After(2 * time.Second):
		t.Fatal("client connection still open")
	}
}

func TestPOP3ListAndFetch(t *testing.T) {
	srv := startPOP3Server(t, "secret",
		"From: news@brand.test\r\nSubject: first\r\n\r\nhello",
		"From: news@brand.test\r\nSubject: second\r\n\r\nagain",
	)

	d := &POP3Dialer{DialTimeout: time.Second}
	sess, err := d.Dial(context.Background(), srv.creds("secret"))
	require.NoError(t, err)

	ids, err := sess.List(context.Background())
	require.NoError(t, err)
	require.Len(t, ids, 2)
	assert.Equal(t, 1, ids[0].Position)
	assert.Equal(t, "uid-2", ids[1].UID)

	raw, err := sess.Fetch(context.Background(), 2)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Subject: second")

	_, err = sess.Fetch(context.Background(), 9)
	assert.True(t, IsProtocolError(err))

	require.NoError(t, sess.Close())
	require.NoError(t, sess.Close())
	srv.waitDisconnect(t)
}

func TestPOP3AuthFailureReleasesConnection(t *testing.T) {
	srv := startPOP3Server(t, "secret")

	d := &POP3Dialer{DialTimeout: time.Second}
	_, err := d.Dial(context.Background(), srv.creds("wrong"))
	require.Error(t, err)
	assert.True(t, IsAuthError(err))

	srv.waitDisconnect(t)
}

func TestPOP3ConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	tcp := ln.Addr().(*net.TCPAddr)
	require.NoError(t, ln.Close())

	d := &POP3Dialer{DialTimeout: time.Second}
	_, err = d.Dial(context.Background(), Credentials{
		Address:  "reader@newdok.test",
		Password: "secret",
		Host:     tcp.IP.String(),
		Port:     tcp.Port,
	})
	require.Error(t, err)
	assert.True(t, IsConnectionError(err))
}

func TestPOP3CloseAfterFetchTimeoutDropsConnection(t *testing.T) {
	srv := servePOP3(t, &pop3Server{
		password: "secret",
		messages: []string{"Subject: stuck\r\n\r\nbody"},
		hangRetr: true,
	})

	d := &POP3Dialer{DialTimeout: time.Second}
	sess, err := d.Dial(context.Background(), srv.creds("secret"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = sess.Fetch(ctx, 1)
	require.Error(t, err)
	assert.True(t, IsTimeoutError(err))

	require.NoError(t, sess.Close())
	srv.waitDisconnect(t)

	rl := sess.(*pop3Session).relay
	select {
	case <-rl.done:
	case <-time.After(2 * time.Second):
		t.Fatal("relay still forwarding after close")
	}

	ctx2, cancel2 := context.WithTimeout(context.Background(), time.Second)
	defer cancel2()
	_, err = sess.Fetch(ctx2, 1)
	assert.Error(t, err)
}
