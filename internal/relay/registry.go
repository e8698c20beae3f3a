// Package relay implements the connection registry, per-connection liveness
// monitoring, presence broadcasting and the message relay itself.
package relay

import (
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Defaults for the liveness probe cycle.
const (
	DefaultProbeInterval = 5 * time.Second
	DefaultProbeTimeout  = 1 * time.Second
)

// Config controls the per-connection liveness cycle.
type Config struct {
	// ProbeInterval is how often a ping probe is sent on each connection.
	ProbeInterval time.Duration
	// ProbeTimeout bounds the wait for a pong after each probe; a
	// connection that misses it is evicted.
	ProbeTimeout time.Duration
}

func (c *Config) norm() {
	if c.ProbeInterval <= 0 {
		c.ProbeInterval = DefaultProbeInterval
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = DefaultProbeTimeout
	}
}

// Presence is one entry of the presence snapshot pushed to clients.
type Presence struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

type presencePayload struct {
	Online []Presence `json:"online"`
}

// Registry is the authoritative set of live connections. All mutation goes
// through Admit/Tag/Remove under the write lock; snapshot and lookup reads
// run concurrently under the read lock.
type Registry struct {
	mu    sync.RWMutex
	conns map[*Conn]struct{}

	cfg Config
	log *zap.Logger
}

// NewRegistry returns an empty registry. Zero-valued Config fields fall back
// to the defaults.
func NewRegistry(cfg Config, log *zap.Logger) *Registry {
	cfg.norm()
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		conns: make(map[*Conn]struct{}),
		cfg:   cfg,
		log:   log,
	}
}

// Admit adds a new untagged connection, starts its liveness monitor and
// pushes the current presence snapshot to everyone. Admission always
// succeeds; identity tagging happens asynchronously via Tag.
func (r *Registry) Admit(t Transport) *Conn {
	c := newConn(t)

	r.mu.Lock()
	r.conns[c] = struct{}{}
	total := len(r.conns)
	r.mu.Unlock()

	go r.monitor(c)

	r.log.Info("connection admitted", zap.Int("total", total))
	r.Broadcast()
	return c
}

// Tag attaches a verified identity to a connection and broadcasts the
// updated presence snapshot.
func (r *Registry) Tag(c *Conn, userID, username string) {
	c.setIdentity(userID, username)
	r.log.Info("connection tagged",
		zap.String("userId", userID),
		zap.String("username", username))
	r.Broadcast()
}

// Remove evicts a connection, stops its liveness monitor and closes its
// transport. Idempotent: it is called from both the explicit-close path and
// the timeout path, and only the first call has any effect.
func (r *Registry) Remove(c *Conn) {
	r.mu.Lock()
	if _, ok := r.conns[c]; !ok {
		r.mu.Unlock()
		return
	}
	delete(r.conns, c)
	total := len(r.conns)
	r.mu.Unlock()

	close(c.done)
	if err := c.transport.Close(); err != nil {
		r.log.Debug("transport close", zap.Error(err))
	}

	userID, _, _ := c.Identity()
	r.log.Info("connection removed", zap.String("userId", userID), zap.Int("total", total))
	r.Broadcast()
}

// FindByUserID returns the first live, tagged connection for userID.
//
// A user with several simultaneous connections gets exactly one of them,
// chosen by map iteration order; targeted delivery does not fan out. This
// mirrors the behavior clients already depend on.
func (r *Registry) FindByUserID(userID string) (*Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for c := range r.conns {
		if id, _, ok := c.Identity(); ok && id == userID {
			return c, true
		}
	}
	return nil, false
}

// Snapshot returns the identities of all currently tagged connections.
// Recomputed in full on every call; nothing incremental is kept.
func (r *Registry) Snapshot() []Presence {
	r.mu.RLock()
	defer r.mu.RUnlock()

	online := make([]Presence, 0, len(r.conns))
	for c := range r.conns {
		if id, name, ok := c.Identity(); ok {
			online = append(online, Presence{UserID: id, Username: name})
		}
	}
	return online
}

// Broadcast pushes the current presence snapshot to every live connection,
// tagged or not. The snapshot is marshaled once and every peer gets the
// same bytes. Delivery is best-effort: a send failure is logged and the
// connection is left for the liveness monitor to evict.
func (r *Registry) Broadcast() {
	payload, err := json.Marshal(presencePayload{Online: r.Snapshot()})
	if err != nil {
		r.log.Error("presence snapshot marshal failed", zap.Error(err))
		return
	}

	r.mu.RLock()
	conns := make([]*Conn, 0, len(r.conns))
	for c := range r.conns {
		conns = append(conns, c)
	}
	r.mu.RUnlock()

	for _, c := range conns {
		if err := c.Send(json.RawMessage(payload)); err != nil {
			r.log.Warn("presence push failed", zap.Error(err))
		}
	}
}

// monitor runs the per-connection probe cycle: every ProbeInterval send a
// ping and wait up to ProbeTimeout for the matching pong. Each probe carries
// a fresh payload, and only a pong echoing that payload counts; a straggler
// from an earlier probe cannot satisfy the one in flight. A missed pong (or
// a failed probe write) is terminal for the connection; the peer must
// reconnect.
func (r *Registry) monitor(c *Conn) {
	ticker := time.NewTicker(r.cfg.ProbeInterval)
	defer ticker.Stop()

	var seq uint64
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			seq++
			payload := strconv.FormatUint(seq, 10)

			if err := c.transport.Ping(payload, time.Now().Add(r.cfg.ProbeTimeout)); err != nil {
				r.log.Warn("probe write failed", zap.Error(err))
				r.Remove(c)
				return
			}

			timer := time.NewTimer(r.cfg.ProbeTimeout)
			answered := false
			for !answered {
				select {
				case got := <-c.pong:
					// pongs for earlier probes are discarded
					answered = got == payload
				case <-timer.C:
					r.log.Warn("probe timed out, evicting connection")
					r.Remove(c)
					return
				case <-c.done:
					timer.Stop()
					return
				}
			}
			timer.Stop()
		}
	}
}
