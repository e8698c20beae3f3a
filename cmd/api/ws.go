package main

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/mernchat/server/internal/relay"
)

const (
	// writeWait bounds any single write to a peer.
	writeWait = 10 * time.Second
	// maxMessageSize leaves room for base64 file attachments.
	maxMessageSize = 10 << 20
)

// wsTransport adapts a gorilla connection to relay.Transport. Application
// writes are serialized by the mutex; WriteControl is safe to call
// concurrently with them, so pings bypass the lock.
type wsTransport struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func (t *wsTransport) Send(v any) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	_ = t.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return t.ws.WriteJSON(v)
}

func (t *wsTransport) Ping(payload string, deadline time.Time) error {
	return t.ws.WriteControl(websocket.PingMessage, []byte(payload), deadline)
}

func (t *wsTransport) Close() error {
	return t.ws.Close()
}

func (s *server) upgrader() websocket.Upgrader {
	allowed := make(map[string]bool, len(s.origins))
	for _, o := range s.origins {
		allowed[o] = true
	}
	return websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			// non-browser clients send no Origin header
			return origin == "" || allowed[origin]
		},
	}
}

// handleWS upgrades the request and hands the connection to the relay:
// admit, resolve identity from the cookie-carried token, then pump inbound
// frames until the peer goes away.
func (s *server) handleWS(c *gin.Context) {
	up := s.upgrader()
	ws, err := up.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	ws.SetReadLimit(maxMessageSize)

	conn := s.registry.Admit(&wsTransport{ws: ws})
	// pongs echo the probe payload (RFC 6455 §5.5.3), which lets the
	// monitor match each pong to the probe that prompted it
	ws.SetPongHandler(func(appData string) error {
		conn.Pong(appData)
		return nil
	})

	// Identity resolution: a missing or invalid token leaves the connection
	// admitted but untagged — it still receives presence pushes, it just
	// cannot send or be targeted.
	if token, err := c.Cookie(tokenCookie); err == nil && token != "" {
		if claims, err := s.auth.VerifyToken(token); err == nil {
			s.registry.Tag(conn, claims.UserID, claims.Username)
		} else {
			s.log.Debug("websocket token rejected", zap.Error(err))
		}
	}

	go s.readLoop(ws, conn)
}

// readLoop handles this connection's inbound frames sequentially, which is
// what preserves per-sender message ordering. Any read error, clean close
// included, removes the connection.
func (s *server) readLoop(ws *websocket.Conn, conn *relay.Conn) {
	defer s.registry.Remove(conn)

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug("websocket read ended", zap.Error(err))
			}
			return
		}
		s.relay.HandleInbound(context.Background(), conn, raw)
	}
}
