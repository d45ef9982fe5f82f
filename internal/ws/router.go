package ws

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"chat-relay/internal/models"
	"chat-relay/internal/observability"
	"chat-relay/internal/repositories"
)

// Conn is the outbound side of a client connection. Emit must not block.
type Conn interface {
	Emit(event string, data any) bool
	Close()
}

// backlogConn is implemented by connections that take a mailbox flush as one
// batch outside their live buffer.
type backlogConn interface {
	EmitBacklog(event string, items []any) bool
}

// Router owns presence and offline mailboxes and decides where each message,
// typing signal and reaction goes. All routing runs under one mutex.
type Router struct {
	mu       sync.Mutex
	presence *Presence
	mailbox  *Mailbox
	conns    map[Conn]struct{}
	lastSent int64

	messages repositories.MessageRepository
	logger   *zap.Logger
	now      func() time.Time
	pending  sync.WaitGroup
}

type RouterOption func(*Router)

// WithClock overrides the time source used to stamp messages.
func WithClock(now func() time.Time) RouterOption {
	return func(r *Router) { r.now = now }
}

// WithMailboxCapacity bounds each offline queue. Zero means unbounded.
func WithMailboxCapacity(capacity int) RouterOption {
	return func(r *Router) { r.mailbox = NewMailbox(capacity) }
}

// NewRouter builds a router persisting to messages, which may be nil.
func NewRouter(messages repositories.MessageRepository, logger *zap.Logger, opts ...RouterOption) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Router{
		presence: NewPresence(),
		mailbox:  NewMailbox(0),
		conns:    make(map[Conn]struct{}),
		messages: messages,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Attach registers a connection for online-list broadcasts before it logs in.
func (r *Router) Attach(conn Conn) {
	r.mu.Lock()
	r.conns[conn] = struct{}{}
	r.mu.Unlock()
}

// Connect marks username online on conn, flushes its mailbox in arrival
// order and broadcasts the online list.
func (r *Router) Connect(username string, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.conns[conn] = struct{}{}
	r.presence.Bind(username, conn)
	r.flushMailbox(username, conn)
	observability.SetMailboxPending(r.mailbox.Total())
	r.broadcastOnline()

	r.logger.Debug("user connected", zap.String("username", username))
}

// Bind marks username online without draining or broadcasting. Used when a
// message arrives on a connection that never logged in.
func (r *Router) Bind(username string, conn Conn) {
	r.mu.Lock()
	r.conns[conn] = struct{}{}
	r.presence.Bind(username, conn)
	r.mu.Unlock()
}

// Disconnect forgets conn. Its username goes offline only if a newer
// connection has not replaced it.
func (r *Router) Disconnect(conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.conns, conn)
	username, ok := r.presence.Unbind(conn)
	if !ok {
		return
	}
	r.broadcastOnline()
	r.logger.Debug("user disconnected", zap.String("username", username))
}

// Send stamps msg, echoes it to sender, then pushes it to the recipient or
// queues it offline. Persistence happens in the background and never fails
// the send.
func (r *Router) Send(sender Conn, msg models.Message) models.Message {
	r.mu.Lock()
	msg.CreatedAt = r.stamp()
	if sender != nil {
		r.deliver(sender, msg, "echo")
	}
	recipient, ok := r.presence.Lookup(msg.To)
	if !ok || !r.deliver(recipient, msg, "live") {
		if r.mailbox.Push(msg.To, msg) {
			observability.IncMailboxEviction()
			r.logger.Warn("mailbox full, dropped oldest message", zap.String("username", msg.To))
		}
		observability.SetMailboxPending(r.mailbox.Total())
	}
	r.mu.Unlock()

	r.persist(msg)
	return msg
}

// Typing forwards a typing, stopTyping or user_typing signal. Offline
// recipients never see it.
func (r *Router) Typing(event string, signal models.TypingEvent) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.presence.Lookup(signal.To)
	if !ok {
		return false
	}
	return conn.Emit(event, signal)
}

// React delivers a reaction to both participants that are online.
func (r *Router) React(reaction models.Reaction) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if conn, ok := r.presence.Lookup(reaction.To); ok {
		conn.Emit("reaction", reaction)
	}
	if reaction.From == reaction.To {
		return
	}
	if conn, ok := r.presence.Lookup(reaction.From); ok {
		conn.Emit("reaction", reaction)
	}
}

// NotifyFriendJoined tells friend, if online, that username joined their
// network.
func (r *Router) NotifyFriendJoined(username, friend string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.presence.Lookup(friend)
	if !ok {
		return false
	}
	return conn.Emit("friendJoined", models.FriendJoined{
		Username:  username,
		Timestamp: r.now().UTC().Format(time.RFC3339Nano),
		Message:   fmt.Sprintf("%s just joined your network!", username),
	})
}

// History loads the stored conversation between a and b.
func (r *Router) History(ctx context.Context, a, b string) ([]models.Message, error) {
	if r.messages == nil {
		return []models.Message{}, nil
	}
	return r.messages.History(ctx, repositories.ChatKey(a, b))
}

func (r *Router) Online() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.presence.Online()
}

func (r *Router) IsOnline(username string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.presence.Lookup(username)
	return ok
}

// Pending reports how many messages wait offline for username.
func (r *Router) Pending(username string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mailbox.Len(username)
}

// Wait blocks until background persistence has finished.
func (r *Router) Wait() {
	r.pending.Wait()
}

// stamp returns the current time in ms, nudged forward so stamps never repeat
// within this process. Clients merge history by createdAt.
func (r *Router) stamp() int64 {
	ts := r.now().UnixMilli()
	if ts <= r.lastSent {
		ts = r.lastSent + 1
	}
	r.lastSent = ts
	return ts
}

func (r *Router) deliver(conn Conn, msg models.Message, path string) bool {
	if !conn.Emit("message", msg) {
		return false
	}
	observability.IncDelivery(path)
	return true
}

// flushMailbox hands username's queue to conn in arrival order. Whatever conn
// refuses goes back to the front of the queue for the next connect.
func (r *Router) flushMailbox(username string, conn Conn) {
	queued := r.mailbox.Drain(username)
	if len(queued) == 0 {
		return
	}

	if batch, ok := conn.(backlogConn); ok {
		items := make([]any, len(queued))
		for i, msg := range queued {
			items[i] = msg
		}
		if !batch.EmitBacklog("message", items) {
			r.requeue(username, queued)
			return
		}
		for range queued {
			observability.IncDelivery("mailbox")
		}
		return
	}

	for i, msg := range queued {
		if !r.deliver(conn, msg, "mailbox") {
			r.requeue(username, queued[i:])
			r.logger.Warn("mailbox flush interrupted",
				zap.String("username", username),
				zap.Int("requeued", len(queued)-i),
			)
			return
		}
	}
}

func (r *Router) requeue(username string, msgs []models.Message) {
	for dropped := r.mailbox.Requeue(username, msgs); dropped > 0; dropped-- {
		observability.IncMailboxEviction()
	}
}

func (r *Router) broadcastOnline() {
	online := r.presence.Online()
	for conn := range r.conns {
		conn.Emit("online", online)
	}
}

func (r *Router) persist(msg models.Message) {
	if r.messages == nil {
		return
	}
	r.pending.Add(1)
	go func() {
		defer r.pending.Done()
		key := repositories.ChatKey(msg.From, msg.To)
		if err := r.messages.Append(context.Background(), msg, key); err != nil {
			observability.IncPersistFailure()
			r.logger.Error("message save failed",
				zap.String("chat_key", key),
				zap.Int64("created_at", msg.CreatedAt),
				zap.Error(err),
			)
		}
	}()
}
