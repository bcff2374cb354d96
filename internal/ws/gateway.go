package ws

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"realtime-service/internal/auth"
	"realtime-service/internal/models"
	"realtime-service/internal/observability"
	"realtime-service/internal/presence"
	"realtime-service/internal/receipts"
	"realtime-service/internal/telemetry"
	"realtime-service/internal/typing"
)

// presenceRefreshInterval re-arms the presence TTL while a connection is open.
// It must stay well under the TTL so healthy connections never flap offline.
const presenceRefreshInterval = 20 * time.Second

// ActivityRecorder bumps the durable last-activity timestamp behind the
// presence fallback.
type ActivityRecorder interface {
	TouchLastActive(ctx context.Context, userID int64) error
}

// Gateway upgrades websocket connections and drives the per-connection frame
// loop.
type Gateway struct {
	registry *Registry
	presence *presence.Tracker
	typing   *typing.Tracker
	receipts receipts.Repository
	users    ActivityRecorder
	tokens   *auth.TokenVerifier
	audit    *telemetry.AuditEmitter
}

// NewGateway constructs a Gateway.
func NewGateway(registry *Registry, presenceTracker *presence.Tracker, typingTracker *typing.Tracker, receiptRepo receipts.Repository, users ActivityRecorder, tokens *auth.TokenVerifier, audit *telemetry.AuditEmitter) *Gateway {
	return &Gateway{
		registry: registry,
		presence: presenceTracker,
		typing:   typingTracker,
		receipts: receiptRepo,
		users:    users,
		tokens:   tokens,
		audit:    audit,
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle upgrades the connection, authenticates it, and registers the client.
// The bearer token arrives as a query parameter at connect time; a bad token
// closes the socket with code 4001.
func (g *Gateway) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("realtime-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	sock, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	userID, err := g.tokens.Verify(c.Query("token"))
	if err != nil {
		closeMsg := websocket.FormatCloseMessage(CloseInvalidToken, "invalid token")
		_ = sock.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(writeWait))
		sock.Close()
		observability.IncWSEvent("ws_auth_rejected")
		return
	}

	conn := NewConn(userID, sock)
	conn.Device = observability.DeviceIDFromRequest(c.Request)
	conn.IP = observability.IPFromRequest(c.Request)
	conn.RequestID = observability.RequestIDFromRequest(c.Request)
	conn.TraceID = span.SpanContext().TraceID().String()

	first := g.registry.Add(conn)
	observability.IncWSActive()
	observability.IncWSEvent("ws_connect")
	g.emitAudit(ctx, conn, "ws_connect", "")

	go conn.WritePump()

	connected, _ := marshalEvent(models.Event{Type: models.EventConnected, UserID: userID})
	conn.Enqueue(connected)

	if first {
		g.presence.SetPresence(ctx, userID, models.PresenceOnline, conn.Device)
	}

	go g.refreshPresence(conn)
	go g.readLoop(conn)
}

// readLoop handles inbound frames one at a time per connection. Collaborator
// calls are awaited, so the acknowledgement frame never races the state change
// it reports.
func (g *Gateway) readLoop(conn *Conn) {
	var closeReason string
	defer func() {
		g.teardown(conn, closeReason)
	}()

	conn.sock.SetReadLimit(maxMessageSize)
	conn.sock.SetReadDeadline(time.Now().Add(pongWait))
	conn.sock.SetPongHandler(func(string) error {
		conn.sock.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var frame ClientFrame
		if err := conn.sock.ReadJSON(&frame); err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("ws_error")
			}
			return
		}
		conn.sock.SetReadDeadline(time.Now().Add(pongWait))
		g.handleFrame(conn, frame)
	}
}

func (g *Gateway) handleFrame(conn *Conn, frame ClientFrame) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := g.users.TouchLastActive(ctx, conn.UserID); err != nil {
		log.Printf("ws: touch last active failed for user %d: %v", conn.UserID, err)
	}

	switch frame.Type {
	case FrameSubscribe:
		accepted := g.registry.Subscribe(ctx, conn, frame.ConversationIDs)
		ack, err := marshalEvent(models.Event{Type: models.EventSubscribed, ConversationIDs: accepted})
		if err == nil {
			conn.Enqueue(ack)
		}
	case FrameUnsubscribe:
		g.registry.Unsubscribe(conn, frame.ConversationIDs)
	case FrameTypingStart:
		// dropped silently for non-members, same as forged subscribes
		if g.registry.Authorize(ctx, conn, frame.ConversationID) {
			g.typing.SetTyping(ctx, frame.ConversationID, conn.UserID, true)
		}
	case FrameTypingStop:
		if g.registry.Authorize(ctx, conn, frame.ConversationID) {
			g.typing.SetTyping(ctx, frame.ConversationID, conn.UserID, false)
		}
	case FrameMarkRead:
		if _, err := g.receipts.MarkReadBulk(ctx, frame.ConversationID, conn.UserID); err != nil {
			log.Printf("ws: mark read failed for conversation %d user %d: %v", frame.ConversationID, conn.UserID, err)
		}
	default:
		log.Printf("ws: ignoring unknown frame type %q from conn %s", frame.Type, conn.ID)
	}
}

// refreshPresence keeps the ephemeral presence entry alive while the
// connection is open.
func (g *Gateway) refreshPresence(conn *Conn) {
	ticker := time.NewTicker(presenceRefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-conn.done:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			g.presence.Refresh(ctx, conn.UserID, conn.Device)
			cancel()
		}
	}
}

func (g *Gateway) teardown(conn *Conn, closeReason string) {
	conn.Close()
	last := g.registry.Remove(conn)
	observability.DecWSActive()
	observability.IncWSEvent("ws_disconnect")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	g.emitAudit(ctx, conn, "ws_disconnect", closeReason)

	if last {
		g.presence.SetPresence(ctx, conn.UserID, models.PresenceOffline, conn.Device)
	}
}

func (g *Gateway) emitAudit(ctx context.Context, conn *Conn, event, reason string) {
	userID := conn.UserID
	g.audit.Emit(ctx, "INFO", event, conn.RequestID, &userID, map[string]any{
		"conn_id":     conn.ID,
		"device_id":   conn.Device,
		"ip":          conn.IP,
		"trace_id":    conn.TraceID,
		"duration_ms": time.Since(conn.ConnectedAt).Milliseconds(),
		"reason":      reason,
	})
}
