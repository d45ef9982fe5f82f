package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"chat-relay/internal/directory"
	"chat-relay/internal/models"
	"chat-relay/internal/observability"
)

const wsKind = "chat"

// Accounts is the slice of the user directory the socket protocol needs.
type Accounts interface {
	Authenticate(ctx context.Context, username, password string) (models.Account, error)
	ListActiveUsernames(ctx context.Context) ([]string, error)
}

// Handler upgrades /ws requests and speaks the event protocol.
type Handler struct {
	router       *Router
	accounts     Accounts
	logger       *zap.Logger
	clientBuffer int
}

// NewHandler constructs a Handler.
func NewHandler(router *Router, accounts Accounts, logger *zap.Logger, clientBuffer int) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{router: router, accounts: accounts, logger: logger, clientBuffer: clientBuffer}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle upgrades the connection and serves it until the peer goes away.
func (h *Handler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("chat-relay/ws").Start(c.Request.Context(), "ws.handshake")
	c.Request = c.Request.WithContext(ctx)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		span.End()
		return
	}
	info := ConnInfo{
		ConnID:      uuid.NewString(),
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	span.End()

	// Keep request values, drop its cancellation for the life of the socket.
	ctx = context.WithoutCancel(ctx)
	client := newClient(conn, info, h.clientBuffer, h.logger.With(zap.String("conn_id", info.ConnID)))
	h.router.Attach(client)

	observability.IncWSActive(wsKind)
	h.publish(ctx, client, "ws_connect", "")

	go client.WritePump()
	readErr := client.ReadPump(func(cl *Client, frame models.Frame) {
		h.dispatch(ctx, cl, frame)
	})

	reason := readErr.Error()
	if !websocket.IsCloseError(readErr, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		h.publish(ctx, client, "ws_error", reason)
	}
	h.router.Disconnect(client)
	client.Close()
	observability.DecWSActive(wsKind)
	h.publish(ctx, client, "ws_disconnect", reason)
}

func (h *Handler) dispatch(ctx context.Context, client *Client, frame models.Frame) {
	observability.IncWSEvent(wsKind, frame.Event)

	switch frame.Event {
	case "login":
		h.login(ctx, client, frame)

	case "reconnectUser":
		var username string
		if !h.decode(client, frame, &username) || username == "" {
			return
		}
		client.username = username
		h.router.Connect(username, client)

	case "ping":
		client.Emit("pong", nil)

	case "typing", "stopTyping":
		var req struct {
			To string `json:"to"`
		}
		if client.username == "" || !h.decode(client, frame, &req) {
			return
		}
		h.router.Typing(frame.Event, models.TypingEvent{From: client.username, To: req.To})

	case "user_typing":
		var signal models.TypingEvent
		if !h.decode(client, frame, &signal) || signal.To == "" {
			return
		}
		if signal.From == "" {
			signal.From = client.username
		}
		h.router.Typing(frame.Event, signal)

	case "loadMessages":
		var req struct {
			WithUser string `json:"withUser"`
		}
		if client.username == "" || !h.decode(client, frame, &req) {
			client.ack(frame.Ack, []models.Message{})
			return
		}
		msgs, err := h.router.History(ctx, client.username, req.WithUser)
		if err != nil {
			h.logger.Error("load messages failed", zap.String("username", client.username), zap.Error(err))
			msgs = []models.Message{}
		}
		client.ack(frame.Ack, msgs)

	case "react":
		var reaction models.Reaction
		if !h.decode(client, frame, &reaction) || reaction.From == "" || reaction.To == "" {
			return
		}
		h.router.React(reaction)

	case "sendMessage":
		var msg models.Message
		if !h.decode(client, frame, &msg) || msg.From == "" || msg.To == "" {
			return
		}
		if client.username == "" {
			client.username = msg.From
			h.router.Bind(msg.From, client)
		}
		stamped := h.router.Send(client, msg)
		client.ack(frame.Ack, stamped)

	case "acceptInviteCode":
		var req struct {
			Username       string `json:"username"`
			FriendUsername string `json:"friendUsername"`
		}
		if !h.decode(client, frame, &req) || req.Username == "" || req.FriendUsername == "" {
			return
		}
		if h.router.NotifyFriendJoined(req.Username, req.FriendUsername) {
			h.logger.Info("friend joined notified", zap.String("inviter", req.FriendUsername), zap.String("invitee", req.Username))
		}

	default:
		h.logger.Debug("unknown event", zap.String("event", frame.Event))
	}
}

func (h *Handler) login(ctx context.Context, client *Client, frame models.Frame) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if !h.decode(client, frame, &req) || req.Username == "" || req.Password == "" {
		client.ack(frame.Ack, gin.H{"ok": false, "error": "username and password required"})
		return
	}

	account, err := h.accounts.Authenticate(ctx, req.Username, req.Password)
	if err != nil {
		msg := err.Error()
		if !errors.Is(err, directory.ErrInvalidCredentials) && !errors.Is(err, directory.ErrDeactivated) {
			h.logger.Error("socket login failed", zap.String("username", req.Username), zap.Error(err))
			msg = "login failed"
		}
		client.ack(frame.Ack, gin.H{"ok": false, "error": msg})
		return
	}

	names, err := h.accounts.ListActiveUsernames(ctx)
	if err != nil {
		h.logger.Error("list users failed", zap.Error(err))
		names = nil
	}
	others := make([]string, 0, len(names))
	for _, name := range names {
		if name != account.Username {
			others = append(others, name)
		}
	}

	client.username = account.Username
	client.ack(frame.Ack, gin.H{"ok": true, "users": others})
	h.router.Connect(account.Username, client)
}

func (h *Handler) decode(client *Client, frame models.Frame, dst any) bool {
	if len(frame.Data) == 0 {
		return false
	}
	if err := json.Unmarshal(frame.Data, dst); err != nil {
		h.logger.Debug("bad event payload", zap.String("event", frame.Event), zap.String("conn_id", client.info.ConnID), zap.Error(err))
		return false
	}
	return true
}

func (h *Handler) publish(ctx context.Context, client *Client, event, reason string) {
	observability.IncWSEvent(wsKind, event)
	info := client.info
	_ = observability.PublishEvent(ctx, "ws_events.chat", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Payload: map[string]interface{}{
			"ws": map[string]interface{}{
				"kind":        wsKind,
				"event":       event,
				"conn_id":     info.ConnID,
				"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
				"reason":      reason,
			},
			"identity": map[string]interface{}{
				"username":  client.username,
				"device_id": info.DeviceID,
				"ip":        info.IP,
			},
		},
	}, observability.BuildHeaders(info.RequestID, info.TraceID))
}
