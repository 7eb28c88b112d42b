package realtime

import (
	"sync"
	"sync/atomic"
	"time"
)

// Connection is one live client channel together with its authentication
// and subscription state. Identity and subscription fields are guarded by
// the owning Registry's lock; lastActive and the queue are safe to use
// without it.
type Connection struct {
	id string

	userID        string
	authenticated bool
	teams         map[string]struct{}
	blocks        map[string]struct{}
	readBoards    map[string]struct{}

	lastActive atomic.Int64
	send       chan []byte
	done       chan struct{}
	closeOnce  sync.Once
}

func newConnection(id string, queueSize int, now time.Time) *Connection {
	c := &Connection{
		id:         id,
		teams:      make(map[string]struct{}),
		blocks:     make(map[string]struct{}),
		readBoards: make(map[string]struct{}),
		send:       make(chan []byte, queueSize),
		done:       make(chan struct{}),
	}
	c.lastActive.Store(now.UnixNano())
	return c
}

// ID returns the opaque connection id.
func (c *Connection) ID() string { return c.id }

// Outbound is the FIFO queue of encoded envelopes waiting to be written to
// the transport.
func (c *Connection) Outbound() <-chan []byte { return c.send }

// Done is closed once the connection has been disconnected. Anything still
// queued at that point is discarded.
func (c *Connection) Done() <-chan struct{} { return c.done }

// LastActive returns the time of the last inbound message.
func (c *Connection) LastActive() time.Time {
	return time.Unix(0, c.lastActive.Load())
}

func (c *Connection) touch(now time.Time) {
	c.lastActive.Store(now.UnixNano())
}

// enqueue never blocks: it reports false when the queue is full or the
// connection is already torn down.
func (c *Connection) enqueue(msg []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *Connection) release() {
	c.closeOnce.Do(func() { close(c.done) })
}
