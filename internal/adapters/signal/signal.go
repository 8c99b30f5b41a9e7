// Package signal is the WebSocket transport adapter for the relay core.
package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Parley/internal/app/orch"
	"github.com/dkeye/Parley/internal/config"
	"github.com/dkeye/Parley/internal/core"
	"github.com/dkeye/Parley/internal/domain"
)

type Controller struct {
	Orch    *orch.Orchestrator
	Store   core.Store // identity validation at connect time; may be nil
	Cfg     *config.Config
	limiter *RateLimiter
}

func NewController(o *orch.Orchestrator, store core.Store, cfg *config.Config) *Controller {
	return &Controller{
		Orch:    o,
		Store:   store,
		Cfg:     cfg,
		limiter: NewRateLimiter(cfg.SignalRateLimit, cfg.SignalRateInterval),
	}
}

// WsSignalConn adapts *websocket.Conn to core.SignalConnection. Sends go
// through a bounded buffer drained by the write pump, which keeps delivery
// FIFO per connection and makes TrySend non-blocking.
type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func newWsSignalConn(ws *websocket.Conn) *WsSignalConn {
	return &WsSignalConn{conn: ws, send: make(chan core.Frame, 32)}
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return core.ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle authenticates and upgrades one transport connection. A missing
// identity is rejected at the handshake, before the session ever becomes
// active. Each connection gets its own session id; the same user may hold
// several at once.
func (ctl *Controller) Handle(ctx context.Context, c *gin.Context) {
	uid := domain.UserID(c.Query("userId"))
	if uid == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid user"})
		return
	}
	if ctl.Store != nil {
		if _, err := ctl.Store.LookupUser(c.Request.Context(), uid); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid user"})
			return
		}
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	sid := core.SessionID(uuid.NewString())
	conn := newWsSignalConn(ws)
	ctx, cancel := context.WithCancel(ctx)

	if err := ctl.Orch.Connect(uid, sid, conn, cancel); err != nil {
		cancel()
		conn.Close()
		return
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("user", string(uid)).Msg("new WS connection")

	// The client needs its own session id to compute the call initiator.
	ctl.sendJSON(conn, map[string]any{"type": "connected", "sessionId": sid})

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, sid, conn)
}
