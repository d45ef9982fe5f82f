package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-relay/internal/mocks"
	"chat-relay/internal/models"
	"chat-relay/internal/repositories"
)

func setupMessageRouter(h *MessageHandler) *gin.Engine {
	r := newTestEngine()
	r.POST("/api/messages/save", h.Save)
	r.GET("/api/messages/history", h.History)
	return r
}

func TestSaveMessageThenHistory(t *testing.T) {
	store := repositories.NewMemoryMessageRepo()
	h := NewMessageHandler(store, nil)
	h.now = func() time.Time { return time.UnixMilli(5000) }
	r := setupMessageRouter(h)

	rec := doJSON(r, http.MethodPost, "/api/messages/save", `{"from":"bob","to":"alice","text":"second","createdAt":2000}`)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(r, http.MethodPost, "/api/messages/save", `{"from":"alice","to":"bob","text":"first","createdAt":1000}`)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(r, http.MethodPost, "/api/messages/save", `{"from":"alice","to":"bob","text":"unstamped"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(r, http.MethodGet, "/api/messages/history?user=bob&with=alice", "")
	require.Equal(t, http.StatusOK, rec.Code)
	msgs := decodeBody(t, rec)["messages"].([]any)
	require.Len(t, msgs, 3)
	assert.Equal(t, "first", msgs[0].(map[string]any)["text"])
	assert.Equal(t, "second", msgs[1].(map[string]any)["text"])
	assert.Equal(t, float64(5000), msgs[2].(map[string]any)["createdAt"])
}

func TestSaveMessageValidation(t *testing.T) {
	r := setupMessageRouter(NewMessageHandler(repositories.NewMemoryMessageRepo(), nil))

	rec := doJSON(r, http.MethodPost, "/api/messages/save", `{"from":"alice","text":"no recipient"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing required fields", decodeBody(t, rec)["error"])

	rec = doJSON(r, http.MethodGet, "/api/messages/history?user=alice", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSaveMessageStoreError(t *testing.T) {
	store := new(mocks.MessageRepositoryMock)
	r := setupMessageRouter(NewMessageHandler(store, nil))
	store.On("Append", mock.Anything, mock.AnythingOfType("models.Message"), "alice|bob").Return(assert.AnError).Once()
	store.On("History", mock.Anything, "alice|bob").Return(([]models.Message)(nil), assert.AnError).Once()

	rec := doJSON(r, http.MethodPost, "/api/messages/save", `{"from":"bob","to":"alice","text":"x"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = doJSON(r, http.MethodGet, "/api/messages/history?user=alice&with=bob", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	store.AssertExpectations(t)
}

func TestHistoryEmptyIsArray(t *testing.T) {
	r := setupMessageRouter(NewMessageHandler(repositories.NewMemoryMessageRepo(), nil))
	rec := doJSON(r, http.MethodGet, "/api/messages/history?user=alice&with=bob", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{}, decodeBody(t, rec)["messages"])
}
