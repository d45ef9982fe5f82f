package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// UserHandler serves contact lists and invite codes.
type UserHandler struct {
	dir    Directory
	logger *zap.Logger
}

// NewUserHandler builds a UserHandler.
func NewUserHandler(dir Directory, logger *zap.Logger) *UserHandler {
	return &UserHandler{dir: dir, logger: nopIfNil(logger)}
}

// ListUsers returns every active username.
func (h *UserHandler) ListUsers(c *gin.Context) {
	users, err := h.dir.ListActiveUsernames(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, "error", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "users": users})
}

// Connections returns the user's active friends.
func (h *UserHandler) Connections(c *gin.Context) {
	connections, err := h.dir.ListActiveConnections(c.Request.Context(), c.Param("username"))
	if err != nil {
		respondError(c, h.logger, "error", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "connections": connections})
}

// RemoveConnection drops the friendship in both directions.
func (h *UserHandler) RemoveConnection(c *gin.Context) {
	var req struct {
		Friend string `json:"friend"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Friend == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "msg": "Username and friend required"})
		return
	}

	if err := h.dir.RemoveConnection(c.Request.Context(), c.Param("username"), req.Friend); err != nil {
		respondError(c, h.logger, "msg", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "msg": "Friend removed successfully"})
}

// InviteCode issues a fresh invite code, invalidating the previous one.
func (h *UserHandler) InviteCode(c *gin.Context) {
	code, err := h.dir.RegenerateInviteCode(c.Request.Context(), c.Param("username"))
	if err != nil {
		respondError(c, h.logger, "error", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "inviteCode": code})
}
