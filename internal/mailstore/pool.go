package mailstore

import (
	"errors"
	"sync"

	"github.com/emersion/go-imap/client"
)

// ErrPoolClosed is returned by Borrow once Close has been called.
var ErrPoolClosed = errors.New("mailstore: pool is closed")

// Dialer constructs a fresh, already-authenticated IMAP connection. Gmail
// and generic-IMAP stores each supply their own Dialer (OAuth2/XOAUTH2 vs
// plain LOGIN).
type Dialer func() (*client.Client, error)

// Pool is a bounded pool of IMAP connections with lazy reconnection.
// Grounded on the teacher's server.Pool (server/pool.go): a buffered
// channel backing a free list plus a mutex-guarded borrow path, generalized
// from pooling SMTP *guerrilla.Client connections to pooling IMAP
// *client.Client connections. A connection is returned to the pool on
// every command boundary rather than held across unrelated chunks, per
// spec.md §5.
type Pool struct {
	dial Dialer
	size int

	mu     sync.Mutex
	idle   []*client.Client
	closed bool
	// sem bounds the number of connections in flight (idle + borrowed) to
	// size, blocking Borrow when the pool is exhausted.
	sem chan struct{}
}

// NewPool constructs a pool that dials connections lazily, up to size at a
// time.
func NewPool(size int, dial Dialer) *Pool {
	if size <= 0 {
		size = 4
	}
	return &Pool{
		dial: dial,
		size: size,
		sem:  make(chan struct{}, size),
	}
}

// Borrow blocks until a connection is available, reusing an idle one or
// dialing a fresh one if the pool hasn't reached its size yet.
func (p *Pool) Borrow() (*client.Client, error) {
	p.sem <- struct{}{}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		<-p.sem
		return nil, ErrPoolClosed
	}
	if n := len(p.idle); n > 0 {
		c := p.idle[n-1]
		p.idle = p.idle[:n-1]
		p.mu.Unlock()
		return c, nil
	}
	p.mu.Unlock()

	c, err := p.dial()
	if err != nil {
		<-p.sem
		return nil, err
	}
	return c, nil
}

// Return gives a connection back to the pool. If broken is true (the
// caller observed an I/O error on it) the connection is discarded instead
// of recycled, so the next Borrow dials a fresh one lazily.
func (p *Pool) Return(c *client.Client, broken bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || broken {
		_ = c.Logout()
		<-p.sem
		return
	}
	p.idle = append(p.idle, c)
	<-p.sem
}

// Close logs out every idle connection and prevents further borrowing.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	var firstErr error
	for _, c := range p.idle {
		if err := c.Logout(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	p.idle = nil
	return firstErr
}
