package ws

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-relay/internal/mocks"
	"chat-relay/internal/models"
	"chat-relay/internal/repositories"
)

type emitted struct {
	event string
	data  any
}

type fakeConn struct {
	mu     sync.Mutex
	events []emitted
}

func (f *fakeConn) Emit(event string, data any) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, emitted{event: event, data: data})
	return true
}

func (f *fakeConn) Close() {}

func (f *fakeConn) named(event string) []any {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []any
	for _, e := range f.events {
		if e.event == event {
			out = append(out, e.data)
		}
	}
	return out
}

func (f *fakeConn) messages() []models.Message {
	var out []models.Message
	for _, d := range f.named("message") {
		out = append(out, d.(models.Message))
	}
	return out
}

func (f *fakeConn) reset() {
	f.mu.Lock()
	f.events = nil
	f.mu.Unlock()
}

// closingConn accepts room emits and refuses everything after.
type closingConn struct {
	fakeConn
	room int
}

func (c *closingConn) Emit(event string, data any) bool {
	c.mu.Lock()
	full := len(c.events) >= c.room
	c.mu.Unlock()
	if full {
		return false
	}
	return c.fakeConn.Emit(event, data)
}

// batchConn takes mailbox flushes through EmitBacklog.
type batchConn struct {
	fakeConn
	batches int
	refuse  bool
}

func (c *batchConn) EmitBacklog(event string, items []any) bool {
	if c.refuse {
		return false
	}
	c.batches++
	for _, item := range items {
		c.fakeConn.Emit(event, item)
	}
	return true
}

func fixedClock(ms int64) func() time.Time {
	return func() time.Time { return time.UnixMilli(ms) }
}

func newTestRouter(opts ...RouterOption) (*Router, *repositories.MemoryMessageRepo) {
	store := repositories.NewMemoryMessageRepo()
	return NewRouter(store, nil, opts...), store
}

func TestSendToOnlineRecipient(t *testing.T) {
	router, store := newTestRouter()
	alice, bob := &fakeConn{}, &fakeConn{}
	router.Connect("alice", alice)
	router.Connect("bob", bob)

	sent := router.Send(alice, models.Message{From: "alice", To: "bob", Text: "hello"})
	router.Wait()

	assert.NotZero(t, sent.CreatedAt)
	require.Len(t, alice.messages(), 1)
	require.Len(t, bob.messages(), 1)
	assert.Equal(t, sent, bob.messages()[0])
	assert.Equal(t, 0, router.Pending("bob"))

	history, err := store.History(context.Background(), repositories.ChatKey("bob", "alice"))
	require.NoError(t, err)
	assert.Equal(t, []models.Message{sent}, history)
}

func TestSendToOfflineRecipientQueuesUntilConnect(t *testing.T) {
	router, _ := newTestRouter()
	alice := &fakeConn{}
	router.Connect("alice", alice)

	for i := 1; i <= 3; i++ {
		router.Send(alice, models.Message{From: "alice", To: "bob", Text: strconv.Itoa(i)})
	}
	assert.Len(t, alice.messages(), 3)
	assert.Equal(t, 3, router.Pending("bob"))

	bob := &fakeConn{}
	router.Connect("bob", bob)

	got := bob.messages()
	require.Len(t, got, 3)
	for i, msg := range got {
		assert.Equal(t, strconv.Itoa(i+1), msg.Text)
	}
	assert.Equal(t, 0, router.Pending("bob"))
	router.Wait()
}

func TestConversationHistoryIsSymmetric(t *testing.T) {
	router, _ := newTestRouter()
	alice := &fakeConn{}
	router.Connect("alice", alice)

	hi := router.Send(alice, models.Message{From: "alice", To: "bob", Text: "hi"})

	bob := &fakeConn{}
	router.Connect("bob", bob)
	require.Len(t, bob.messages(), 1)

	hey := router.Send(bob, models.Message{From: "bob", To: "alice", Text: "hey"})
	router.Wait()

	assert.Equal(t, []models.Message{hi, hey}, alice.messages())

	fromAlice, err := router.History(context.Background(), "alice", "bob")
	require.NoError(t, err)
	fromBob, err := router.History(context.Background(), "bob", "alice")
	require.NoError(t, err)
	assert.Equal(t, []models.Message{hi, hey}, fromAlice)
	assert.Equal(t, fromAlice, fromBob)
}

func TestSecondLoginReplacesFirst(t *testing.T) {
	router, _ := newTestRouter()
	first, second, alice := &fakeConn{}, &fakeConn{}, &fakeConn{}
	router.Connect("alice", alice)
	router.Connect("bob", first)
	router.Connect("bob", second)

	router.Send(alice, models.Message{From: "alice", To: "bob", Text: "which one"})
	assert.Empty(t, first.messages())
	assert.Len(t, second.messages(), 1)

	router.Disconnect(first)
	assert.True(t, router.IsOnline("bob"))

	router.Disconnect(second)
	assert.False(t, router.IsOnline("bob"))
	assert.Equal(t, []string{"alice"}, router.Online())
	router.Wait()
}

func TestOnlineListBroadcastToEveryConnection(t *testing.T) {
	router, _ := newTestRouter()
	watcher := &fakeConn{}
	router.Attach(watcher)

	alice := &fakeConn{}
	router.Connect("alice", alice)
	bob := &fakeConn{}
	router.Connect("bob", bob)

	lists := watcher.named("online")
	require.Len(t, lists, 2)
	assert.Equal(t, []string{"alice"}, lists[0])
	assert.Equal(t, []string{"alice", "bob"}, lists[1])

	watcher.reset()
	router.Disconnect(bob)
	assert.Equal(t, []any{[]string{"alice"}}, watcher.named("online"))

	// a connection that never logged in leaves quietly
	watcher.reset()
	router.Disconnect(&fakeConn{})
	assert.Empty(t, watcher.named("online"))
}

func TestTypingDroppedWhenRecipientOffline(t *testing.T) {
	router, _ := newTestRouter()
	alice := &fakeConn{}
	router.Connect("alice", alice)

	assert.False(t, router.Typing("typing", models.TypingEvent{From: "bob", To: "carol"}))

	assert.True(t, router.Typing("typing", models.TypingEvent{From: "bob", To: "alice"}))
	assert.Equal(t, []any{models.TypingEvent{From: "bob", To: "alice"}}, alice.named("typing"))
	assert.Equal(t, 0, router.Pending("carol"))
}

func TestReactionReachesBothParticipants(t *testing.T) {
	router, _ := newTestRouter()
	alice, bob := &fakeConn{}, &fakeConn{}
	router.Connect("alice", alice)
	router.Connect("bob", bob)

	reaction := models.Reaction{MsgID: []byte("1700000000000"), Emoji: "👍", From: "alice", To: "bob"}
	router.React(reaction)

	assert.Equal(t, []any{reaction}, alice.named("reaction"))
	assert.Equal(t, []any{reaction}, bob.named("reaction"))
}

func TestNotifyFriendJoined(t *testing.T) {
	router, _ := newTestRouter(WithClock(fixedClock(1700000000000)))
	alice := &fakeConn{}
	router.Connect("alice", alice)

	assert.False(t, router.NotifyFriendJoined("carol", "bob"))
	require.True(t, router.NotifyFriendJoined("carol", "alice"))

	got := alice.named("friendJoined")
	require.Len(t, got, 1)
	joined := got[0].(models.FriendJoined)
	assert.Equal(t, "carol", joined.Username)
	assert.Equal(t, "carol just joined your network!", joined.Message)
	assert.Equal(t, "2023-11-14T22:13:20Z", joined.Timestamp)
}

func TestMailboxCapacityEvictsOldest(t *testing.T) {
	router, _ := newTestRouter(WithMailboxCapacity(2))
	for _, text := range []string{"a", "b", "c"} {
		router.Send(nil, models.Message{From: "alice", To: "bob", Text: text})
	}
	assert.Equal(t, 2, router.Pending("bob"))

	bob := &fakeConn{}
	router.Connect("bob", bob)
	got := bob.messages()
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].Text)
	assert.Equal(t, "c", got[1].Text)
	router.Wait()
}

func TestStampsNeverRepeat(t *testing.T) {
	router, _ := newTestRouter(WithClock(fixedClock(1000)))
	first := router.Send(nil, models.Message{From: "alice", To: "bob"})
	second := router.Send(nil, models.Message{From: "alice", To: "bob"})
	router.Wait()

	assert.Equal(t, int64(1000), first.CreatedAt)
	assert.Equal(t, int64(1001), second.CreatedAt)
}

func TestPersistFailureDoesNotAffectDelivery(t *testing.T) {
	store := new(mocks.MessageRepositoryMock)
	store.On("Append", mock.Anything, mock.AnythingOfType("models.Message"), "alice|bob").Return(assert.AnError)
	router := NewRouter(store, nil)

	alice, bob := &fakeConn{}, &fakeConn{}
	router.Connect("alice", alice)
	router.Connect("bob", bob)

	router.Send(alice, models.Message{From: "alice", To: "bob", Text: "still delivered"})
	router.Wait()

	assert.Len(t, bob.messages(), 1)
	store.AssertExpectations(t)
}

func queueFor(router *Router, to string, n int) {
	for i := 1; i <= n; i++ {
		router.Send(nil, models.Message{From: "alice", To: to, Text: strconv.Itoa(i)})
	}
}

func TestInterruptedFlushRequeuesTail(t *testing.T) {
	router, _ := newTestRouter()
	queueFor(router, "bob", 5)

	first := &closingConn{room: 2}
	router.Connect("bob", first)
	require.Len(t, first.messages(), 2)
	assert.Equal(t, 3, router.Pending("bob"))

	router.Disconnect(first)
	second := &fakeConn{}
	router.Connect("bob", second)

	got := second.messages()
	require.Len(t, got, 3)
	for i, msg := range got {
		assert.Equal(t, strconv.Itoa(i+3), msg.Text)
	}
	assert.Equal(t, 0, router.Pending("bob"))
	router.Wait()
}

func TestRefusedLiveMessageGoesToMailbox(t *testing.T) {
	router, _ := newTestRouter()
	bob := &closingConn{room: 0}
	router.Connect("bob", bob)

	router.Send(nil, models.Message{From: "alice", To: "bob", Text: "hi"})
	assert.Equal(t, 1, router.Pending("bob"))
	router.Wait()
}

func TestMailboxFlushUsesBatchWhenAvailable(t *testing.T) {
	router, _ := newTestRouter()
	queueFor(router, "bob", 4)

	bob := &batchConn{}
	router.Connect("bob", bob)
	assert.Equal(t, 1, bob.batches)
	assert.Len(t, bob.messages(), 4)
	assert.Equal(t, 0, router.Pending("bob"))

	router.Disconnect(bob)
	queueFor(router, "bob", 2)
	refusing := &batchConn{refuse: true}
	router.Connect("bob", refusing)
	assert.Empty(t, refusing.messages())
	assert.Equal(t, 2, router.Pending("bob"))
	router.Wait()
}
