package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"chat-relay/internal/models"
	"chat-relay/internal/repositories"
)

// MessageHandler writes and reads the message log over HTTP. Nothing here
// touches live delivery.
type MessageHandler struct {
	messages repositories.MessageRepository
	logger   *zap.Logger
	now      func() time.Time
}

// NewMessageHandler builds a MessageHandler.
func NewMessageHandler(messages repositories.MessageRepository, logger *zap.Logger) *MessageHandler {
	return &MessageHandler{messages: messages, logger: nopIfNil(logger), now: time.Now}
}

// Save appends a message to the store as sent by the client.
func (h *MessageHandler) Save(c *gin.Context) {
	var msg models.Message
	if err := c.ShouldBindJSON(&msg); err != nil || msg.From == "" || msg.To == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "Missing required fields"})
		return
	}
	if msg.CreatedAt == 0 {
		msg.CreatedAt = h.now().UnixMilli()
	}

	if err := h.messages.Append(c.Request.Context(), msg, repositories.ChatKey(msg.From, msg.To)); err != nil {
		h.logger.Error("save message failed", zap.String("request_id", requestIDFromContext(c)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "Server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// History returns the conversation between ?user= and ?with=, oldest first.
func (h *MessageHandler) History(c *gin.Context) {
	user, with := c.Query("user"), c.Query("with")
	if user == "" || with == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "user and with required"})
		return
	}

	msgs, err := h.messages.History(c.Request.Context(), repositories.ChatKey(user, with))
	if err != nil {
		h.logger.Error("load history failed", zap.String("request_id", requestIDFromContext(c)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "Server error"})
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "messages": msgs})
}
