package relay

import (
	"sync"
	"time"
)

// Transport is the minimal surface the registry needs from a duplex
// connection: sending application payloads, probing liveness, and closing.
// Implementations must allow Ping and Close to be called concurrently
// with Send. The probe payload is echoed back in the peer's pong, which is
// how the monitor matches a pong to the probe that prompted it.
type Transport interface {
	Send(v any) error
	Ping(payload string, deadline time.Time) error
	Close() error
}

// Conn is one live connection tracked by the Registry. Identity starts empty
// and is attached by Tag once credential verification completes; until then
// the connection receives presence pushes but cannot send or be targeted.
type Conn struct {
	transport Transport

	mu       sync.RWMutex
	userID   string
	username string

	// pong carries at most one pending probe response, tagged with the
	// payload the peer echoed; the monitor matches it against the payload
	// of the probe in flight.
	pong chan string
	// done is closed exactly once, by the Remove call that wins the race
	// between explicit close and liveness timeout.
	done chan struct{}
}

func newConn(t Transport) *Conn {
	return &Conn{
		transport: t,
		pong:      make(chan string, 1),
		done:      make(chan struct{}),
	}
}

// Identity returns the attached identity; ok is false while untagged.
func (c *Conn) Identity() (userID, username string, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID, c.username, c.userID != ""
}

// Pong records a probe response from the peer, carrying the payload echoed
// from the probe. Called from the transport's read path; never blocks. When
// a response is already pending the newer one wins, so a straggler from an
// earlier probe cannot shadow a fresh one.
func (c *Conn) Pong(payload string) {
	select {
	case c.pong <- payload:
	default:
		select {
		case <-c.pong:
		default:
		}
		select {
		case c.pong <- payload:
		default:
		}
	}
}

// Send forwards a payload to the peer. Errors are the caller's to log;
// a failing connection is left for the liveness monitor to evict.
func (c *Conn) Send(v any) error {
	return c.transport.Send(v)
}

func (c *Conn) setIdentity(userID, username string) {
	c.mu.Lock()
	c.userID = userID
	c.username = username
	c.mu.Unlock()
}
