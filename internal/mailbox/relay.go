package mailbox

import (
	"io"
	"net"
	"sync"
)

// relay splices a single loopback connection onto an upstream server
// connection. Close severs both ends, which fails any read blocked on
// either side.
type relay struct {
	ln       net.Listener
	upstream net.Conn

	mu     sync.Mutex
	local  net.Conn
	closed bool
	done   chan struct{}
}

// newRelay listens on an ephemeral loopback port and forwards the first
// connection it accepts to upstream. The listener closes after that accept.
func newRelay(upstream net.Conn) (*relay, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}

	r := &relay{ln: ln, upstream: upstream, done: make(chan struct{})}
	go r.serve()
	return r, nil
}

// addr returns the loopback host and port clients connect to.
func (r *relay) addr() (string, int) {
	tcp := r.ln.Addr().(*net.TCPAddr)
	return tcp.IP.String(), tcp.Port
}

func (r *relay) serve() {
	defer close(r.done)

	local, err := r.ln.Accept()
	_ = r.ln.Close()
	if err != nil {
		_ = r.Close()
		return
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		_ = local.Close()
		return
	}
	r.local = local
	r.mu.Unlock()

	copied := make(chan struct{})
	go func() {
		_, _ = io.Copy(r.upstream, local)
		_ = r.Close()
		close(copied)
	}()
	_, _ = io.Copy(local, r.upstream)
	_ = r.Close()
	<-copied
}

// Close severs the relay. It is safe to call more than once.
func (r *relay) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	_ = r.ln.Close()
	if r.local != nil {
		_ = r.local.Close()
	}
	return r.upstream.Close()
}
