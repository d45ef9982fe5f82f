package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-relay/internal/directory"
	"chat-relay/internal/models"
	"chat-relay/internal/repositories"
)

type wsFixture struct {
	server *httptest.Server
	router *Router
	dir    *directory.Service
}

func newWSFixture(t *testing.T) *wsFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := directory.NewService(repositories.NewMemoryAccountRepo(), nil)
	for _, name := range []string{"alice", "bob"} {
		_, err := dir.Create(context.Background(), name, "secret", name+"@mail.org")
		require.NoError(t, err)
	}

	router := NewRouter(repositories.NewMemoryMessageRepo(), nil)
	engine := gin.New()
	engine.GET("/ws", NewHandler(router, dir, nil, 16).Handle)

	server := httptest.NewServer(engine)
	t.Cleanup(server.Close)
	return &wsFixture{server: server, router: router, dir: dir}
}

func (f *wsFixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendFrame(t *testing.T, conn *websocket.Conn, event string, data any, ack int64) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	frame := models.Frame{Event: event, Data: raw}
	if ack > 0 {
		frame.Ack = &ack
	}
	require.NoError(t, conn.WriteJSON(frame))
}

// expectFrame reads until a frame matching event (and ack id, when set) shows up.
func expectFrame(t *testing.T, conn *websocket.Conn, event string, ack int64) models.Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var frame models.Frame
		require.NoError(t, conn.ReadJSON(&frame))
		if frame.Event != event {
			continue
		}
		if ack > 0 && (frame.Ack == nil || *frame.Ack != ack) {
			continue
		}
		return frame
	}
}

func login(t *testing.T, conn *websocket.Conn, username, password string, ack int64) map[string]any {
	t.Helper()
	sendFrame(t, conn, "login", map[string]string{"username": username, "password": password}, ack)
	var reply map[string]any
	require.NoError(t, json.Unmarshal(expectFrame(t, conn, "ack", ack).Data, &reply))
	return reply
}

func TestSocketLogin(t *testing.T) {
	f := newWSFixture(t)
	conn := f.dial(t)

	reply := login(t, conn, "alice", "nope", 1)
	assert.Equal(t, false, reply["ok"])
	assert.Equal(t, "invalid credentials", reply["error"])

	require.NoError(t, f.dir.SetStatus(context.Background(), "bob", models.StatusInactive))
	reply = login(t, conn, "bob", "secret", 2)
	assert.Equal(t, false, reply["ok"])
	assert.Equal(t, "user account is deactivated", reply["error"])

	require.NoError(t, f.dir.SetStatus(context.Background(), "bob", models.StatusActive))
	reply = login(t, conn, "alice", "secret", 3)
	assert.Equal(t, true, reply["ok"])
	assert.Equal(t, []any{"bob"}, reply["users"])

	var online []string
	require.NoError(t, json.Unmarshal(expectFrame(t, conn, "online", 0).Data, &online))
	assert.Equal(t, []string{"alice"}, online)
}

func TestSocketPing(t *testing.T) {
	f := newWSFixture(t)
	conn := f.dial(t)

	require.NoError(t, conn.WriteJSON(models.Frame{Event: "ping"}))
	assert.Equal(t, "pong", expectFrame(t, conn, "pong", 0).Event)
}

func TestSocketOfflineDeliveryAndHistory(t *testing.T) {
	f := newWSFixture(t)
	alice := f.dial(t)
	login(t, alice, "alice", "secret", 1)

	sendFrame(t, alice, "sendMessage", models.Message{From: "alice", To: "bob", Text: "are you there?"}, 2)

	var echo models.Message
	require.NoError(t, json.Unmarshal(expectFrame(t, alice, "message", 0).Data, &echo))
	var acked models.Message
	require.NoError(t, json.Unmarshal(expectFrame(t, alice, "ack", 2).Data, &acked))
	assert.Equal(t, echo, acked)
	assert.NotZero(t, acked.CreatedAt)

	bob := f.dial(t)
	login(t, bob, "bob", "secret", 1)
	var queued models.Message
	require.NoError(t, json.Unmarshal(expectFrame(t, bob, "message", 0).Data, &queued))
	assert.Equal(t, acked, queued)

	f.router.Wait()
	sendFrame(t, bob, "loadMessages", map[string]string{"withUser": "alice"}, 2)
	var history []models.Message
	require.NoError(t, json.Unmarshal(expectFrame(t, bob, "ack", 2).Data, &history))
	assert.Equal(t, []models.Message{acked}, history)
}

func TestSocketTypingReachesOnlineRecipient(t *testing.T) {
	f := newWSFixture(t)
	alice := f.dial(t)
	login(t, alice, "alice", "secret", 1)
	bob := f.dial(t)
	login(t, bob, "bob", "secret", 1)

	sendFrame(t, alice, "typing", map[string]string{"to": "bob"}, 0)

	var signal models.TypingEvent
	require.NoError(t, json.Unmarshal(expectFrame(t, bob, "typing", 0).Data, &signal))
	assert.Equal(t, models.TypingEvent{From: "alice", To: "bob"}, signal)
}

func TestSocketLoadMessagesBeforeLogin(t *testing.T) {
	f := newWSFixture(t)
	conn := f.dial(t)

	sendFrame(t, conn, "loadMessages", map[string]string{"withUser": "bob"}, 7)
	var history []models.Message
	require.NoError(t, json.Unmarshal(expectFrame(t, conn, "ack", 7).Data, &history))
	assert.Empty(t, history)
}

func TestSocketMailboxLargerThanClientBuffer(t *testing.T) {
	f := newWSFixture(t)
	const queued = 100 // fixture client buffer is 16
	for i := 1; i <= queued; i++ {
		f.router.Send(nil, models.Message{From: "alice", To: "bob", Text: strconv.Itoa(i)})
	}

	bob := f.dial(t)
	login(t, bob, "bob", "secret", 1)
	for i := 1; i <= queued; i++ {
		var msg models.Message
		require.NoError(t, json.Unmarshal(expectFrame(t, bob, "message", 0).Data, &msg))
		require.Equal(t, strconv.Itoa(i), msg.Text)
	}
	assert.Equal(t, 0, f.router.Pending("bob"))

	require.NoError(t, bob.WriteJSON(models.Frame{Event: "ping"}))
	assert.Equal(t, "pong", expectFrame(t, bob, "pong", 0).Event)
	assert.True(t, f.router.IsOnline("bob"))
	f.router.Wait()
}
