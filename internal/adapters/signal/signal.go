package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Presence/internal/app/orch"
	"github.com/dkeye/Presence/internal/core"
	"github.com/dkeye/Presence/internal/domain"
)

var ErrBackpressure = errors.New("backpressure")

// Controller is the signaling gateway: it owns the connection hub and
// maps inbound events onto coordinator operations.
type Controller struct {
	Coord     *orch.Coordinator
	ReadLimit int64
	validate  *validator.Validate

	mu    sync.RWMutex
	conns map[domain.ConnID]*WsSignalConn
}

func NewController() *Controller {
	return &Controller{
		validate: validator.New(),
		conns:    make(map[domain.ConnID]*WsSignalConn),
	}
}

type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
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
		return ErrBackpressure
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
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (ctl *Controller) HandleSignal(ctx context.Context, c *gin.Context) {
	sid := domain.ConnID(c.GetString("client_token"))
	log.Info().Str("module", "signal").Str("conn", string(sid)).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Msg("ws upgrade")
		return
	}
	if ctl.ReadLimit > 0 {
		ws.SetReadLimit(ctl.ReadLimit)
	}

	conn := &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, 32),
	}
	ctl.register(sid, conn)

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cancel, sid, conn)
}

func (ctl *Controller) register(sid domain.ConnID, conn *WsSignalConn) {
	ctl.mu.Lock()
	defer ctl.mu.Unlock()
	if old, ok := ctl.conns[sid]; ok {
		old.Close()
	}
	ctl.conns[sid] = conn
}

func (ctl *Controller) unregister(sid domain.ConnID, conn *WsSignalConn) {
	ctl.mu.Lock()
	defer ctl.mu.Unlock()
	if ctl.conns[sid] == conn {
		delete(ctl.conns, sid)
	}
}

func (ctl *Controller) isRegistered(sid domain.ConnID, conn *WsSignalConn) bool {
	ctl.mu.RLock()
	defer ctl.mu.RUnlock()
	return ctl.conns[sid] == conn
}

// teardown winds a socket down after its read loop exits. The connection
// id is cookie-scoped and survives reconnects, so a displaced socket may
// outlive its registration; its teardown must not destroy the session a
// newer socket has since established under the same id.
func (ctl *Controller) teardown(sid domain.ConnID, conn *WsSignalConn) {
	if ctl.isRegistered(sid, conn) {
		ctl.handleDisconnect(sid)
	}
	ctl.unregister(sid, conn)
	conn.Close()
}

func (ctl *Controller) connOf(sid domain.ConnID) (*WsSignalConn, bool) {
	ctl.mu.RLock()
	defer ctl.mu.RUnlock()
	conn, ok := ctl.conns[sid]
	return conn, ok
}

// broadcastAll fans an event out to every live signaling connection.
func (ctl *Controller) broadcastAll(v any) {
	ctl.mu.RLock()
	defer ctl.mu.RUnlock()
	for _, conn := range ctl.conns {
		ctl.sendJSON(conn, v)
	}
}

// broadcastRoom fans an event out to the members of one channel's room,
// skipping except.
func (ctl *Controller) broadcastRoom(id domain.ChannelID, except domain.ConnID, v any) {
	for _, sid := range ctl.Coord.ConnsInChannel(id, except) {
		if conn, ok := ctl.connOf(sid); ok {
			ctl.sendJSON(conn, v)
		}
	}
}

// sendTo targets a single connection; used for the switch directive.
func (ctl *Controller) sendTo(sid domain.ConnID, v any) {
	if conn, ok := ctl.connOf(sid); ok {
		ctl.sendJSON(conn, v)
	}
}

// EmitParticipants implements app.Emitter: the debounced canonical
// snapshot goes to every observer, not just the room's members.
func (ctl *Controller) EmitParticipants(id domain.ChannelID, participants []domain.Participant) {
	ctl.broadcastAll(participantsUpdateEvent{
		Type:         evParticipantsUpdate,
		ChannelID:    id,
		Participants: participants,
	})
}
