package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/KIaudius/issues-insights-tracker/internal/apperrors"
	"github.com/KIaudius/issues-insights-tracker/internal/auth"
	"github.com/KIaudius/issues-insights-tracker/internal/bootstrap/logging"
	"github.com/KIaudius/issues-insights-tracker/internal/errs"
)

const (
	// sendBuffer bounds the per-client queue; a client that falls this far
	// behind starts losing events instead of slowing publishers down.
	sendBuffer = 32

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 4 << 10
)

// TokenVerifier validates the credential presented in the handshake.
type TokenVerifier interface {
	Verify(raw string, want auth.TokenType) (auth.Identity, error)
}

// IssueAuthorizer answers whether the identity may follow the issue;
// a nil error allows the subscription.
type IssueAuthorizer func(ctx context.Context, identity auth.Identity, issueID uint64) error

// Client is one live websocket channel owned by a user.
type Client struct {
	hub       *Hub
	userID    uint64
	conn      *websocket.Conn
	send      chan []byte
	closeOnce sync.Once
}

func newClient(hub *Hub, userID uint64, conn *websocket.Conn) *Client {
	return &Client{
		hub:    hub,
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
	}
}

// trySend queues the payload without blocking; false means dropped.
func (c *Client) trySend(payload []byte) bool {
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// sendJSON queues a control frame for writePump. The conn has exactly one
// writer; everything after the handshake goes through the send channel.
func (c *Client) sendJSON(v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		return
	}
	c.trySend(payload)
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

type inboundMessage struct {
	Type    string `json:"type"`
	Token   string `json:"token"`
	IssueID uint64 `json:"issue_id"`
}

// ServeConn runs the channel protocol on an upgraded connection: the
// first frame must carry a valid token, everything after is
// subscribe/unsubscribe/ping. Blocks until the peer goes away.
func ServeConn(ctx context.Context, hub *Hub, conn *websocket.Conn, verifier TokenVerifier, authorize IssueAuthorizer) error {
	if hub == nil || conn == nil || verifier == nil {
		return errors.New("hub, conn and verifier are required")
	}

	identity, err := handshake(conn, verifier)
	if err != nil {
		return err
	}

	logCtx := logging.WithAttrs(ctx,
		slog.String("component", "realtime.client"),
		slog.Uint64("user_id", identity.UserID),
	)

	client := newClient(hub, identity.UserID, conn)
	// Queue the ack before Connect so it precedes any published event.
	client.sendJSON(map[string]any{"type": "connected"})
	hub.Connect(client)
	defer func() {
		hub.Disconnect(client)
		client.close()
	}()

	go client.writePump(logCtx)
	client.readPump(logCtx, identity, authorize)
	return nil
}

func handshake(conn *websocket.Conn, verifier TokenVerifier) (auth.Identity, error) {
	conn.SetReadLimit(maxMessageSize)

	var first inboundMessage
	if err := conn.ReadJSON(&first); err != nil {
		return auth.Identity{}, errs.Wrap(err, "read handshake frame")
	}

	if first.Token == "" {
		rejectHandshake(conn, "authentication required")
		return auth.Identity{}, errors.New("handshake without token")
	}

	identity, err := verifier.Verify(first.Token, auth.TokenTypeAccess)
	if err != nil {
		rejectHandshake(conn, "invalid authentication token")
		return auth.Identity{}, errs.Wrap(err, "verify handshake token")
	}
	return identity, nil
}

func rejectHandshake(conn *websocket.Conn, reason string) {
	_ = writeJSON(conn, map[string]any{"error": reason})
	deadline := time.Now().Add(writeWait)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason), deadline)
	_ = conn.Close()
}

func (c *Client) readPump(ctx context.Context, identity auth.Identity, authorize IssueAuthorizer) {
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg inboundMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Warn(ctx, "websocket closed unexpectedly", slog.Any("err", errs.Loggable(err)))
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		switch msg.Type {
		case "subscribe":
			c.handleSubscribe(ctx, identity, authorize, msg.IssueID)
		case "unsubscribe":
			c.hub.Unsubscribe(c.userID, msg.IssueID)
			c.sendJSON(map[string]any{
				"type":     "subscription",
				"status":   "unsubscribed",
				"issue_id": msg.IssueID,
			})
		case "ping":
			c.sendJSON(map[string]any{"type": "pong"})
		default:
			c.sendJSON(map[string]any{
				"type":    "error",
				"message": "unknown message type",
			})
		}
	}
}

func (c *Client) handleSubscribe(ctx context.Context, identity auth.Identity, authorize IssueAuthorizer, issueID uint64) {
	if authorize != nil {
		if err := authorize(ctx, identity, issueID); err != nil {
			message := "issue not found"
			if apperrors.IsKind(err, apperrors.KindForbidden) {
				message = "not allowed to follow this issue"
			}
			c.sendJSON(map[string]any{"type": "error", "message": message})
			return
		}
	}

	c.hub.Subscribe(c.userID, issueID)
	c.sendJSON(map[string]any{
		"type":     "subscription",
		"status":   "subscribed",
		"issue_id": issueID,
	})
}

func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				logging.Warn(ctx, "websocket write failed", slog.Any("err", errs.Loggable(err)))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// writeJSON writes directly to the conn. Only safe before writePump
// starts; the handshake is the single place that qualifies.
func writeJSON(conn *websocket.Conn, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, payload)
}
