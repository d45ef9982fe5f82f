package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"chat-relay/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Client is one websocket connection. Frames are queued in order and written
// by WritePump; Emit never blocks.
type Client struct {
	conn      *websocket.Conn
	done      chan struct{}
	wake      chan struct{}
	closeOnce sync.Once
	info      ConnInfo
	logger    *zap.Logger

	mu      sync.Mutex
	queue   []outbound
	backlog int // backlog frames still in queue
	buffer  int

	// username is owned by the read loop.
	username string
}

var (
	_ Conn        = (*Client)(nil)
	_ backlogConn = (*Client)(nil)
)

type outbound struct {
	payload []byte
	backlog bool
}

func newClient(conn *websocket.Conn, info ConnInfo, buffer int, logger *zap.Logger) *Client {
	if buffer <= 0 {
		buffer = 256
	}
	return &Client{
		conn:   conn,
		done:   make(chan struct{}),
		wake:   make(chan struct{}, 1),
		info:   info,
		logger: logger,
		buffer: buffer,
	}
}

// Emit queues a server event. More than buffer live frames waiting closes the
// client.
func (c *Client) Emit(event string, data any) bool {
	payload, ok := c.encode(models.OutboundFrame{Event: event, Data: data})
	if !ok {
		return false
	}
	return c.push(false, payload)
}

// EmitBacklog queues one event per item as a single batch. Backlog frames do
// not count against the live buffer, so an offline mailbox of any size is
// written in full.
func (c *Client) EmitBacklog(event string, items []any) bool {
	payloads := make([][]byte, 0, len(items))
	for _, item := range items {
		payload, ok := c.encode(models.OutboundFrame{Event: event, Data: item})
		if !ok {
			return false
		}
		payloads = append(payloads, payload)
	}
	return c.push(true, payloads...)
}

func (c *Client) ack(id *int64, data any) {
	if id == nil {
		return
	}
	if payload, ok := c.encode(models.OutboundFrame{Event: "ack", Data: data, Ack: id}); ok {
		c.push(false, payload)
	}
}

func (c *Client) encode(frame models.OutboundFrame) ([]byte, bool) {
	payload, err := json.Marshal(frame)
	if err != nil {
		c.logger.Error("encode frame", zap.String("event", frame.Event), zap.Error(err))
		return nil, false
	}
	return payload, true
}

func (c *Client) push(backlog bool, payloads ...[]byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	c.mu.Lock()
	if !backlog && len(c.queue)-c.backlog >= c.buffer {
		c.mu.Unlock()
		c.logger.Warn("client send buffer full, closing", zap.Int("buffer", c.buffer))
		c.Close()
		return false
	}
	for _, payload := range payloads {
		c.queue = append(c.queue, outbound{payload: payload, backlog: backlog})
	}
	if backlog {
		c.backlog += len(payloads)
	}
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
	return true
}

func (c *Client) next() ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) == 0 {
		return nil, false
	}
	item := c.queue[0]
	c.queue[0] = outbound{}
	c.queue = c.queue[1:]
	if item.backlog {
		c.backlog--
	}
	return item.payload, true
}

// flush writes every queued frame in order.
func (c *Client) flush() error {
	for {
		payload, ok := c.next()
		if !ok {
			return nil
		}
		c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return err
		}
	}
}

// Close stops the write loop, which flushes what is queued and closes the
// socket.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// WritePump writes queued frames onto the socket and keeps it alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.wake:
			if err := c.flush(); err != nil {
				c.Close()
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}

		case <-c.done:
			if err := c.flush(); err != nil {
				return
			}
			closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			c.conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(writeWait)) //nolint:errcheck
			return
		}
	}
}

// ReadPump decodes frames and hands each to dispatch until the socket fails.
// It returns the read error that ended the loop.
func (c *Client) ReadPump(dispatch func(*Client, models.Frame)) error {
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
		return nil
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			return err
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck

		var frame models.Frame
		if err := json.Unmarshal(payload, &frame); err != nil || frame.Event == "" {
			c.logger.Debug("dropping malformed frame", zap.String("conn_id", c.info.ConnID))
			continue
		}
		dispatch(c, frame)
	}
}
