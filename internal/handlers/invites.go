package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// InviteHandler resolves and accepts invite tokens and codes.
type InviteHandler struct {
	dir    Directory
	logger *zap.Logger
}

// NewInviteHandler builds an InviteHandler.
func NewInviteHandler(dir Directory, logger *zap.Logger) *InviteHandler {
	return &InviteHandler{dir: dir, logger: nopIfNil(logger)}
}

// Lookup names the inviter behind a token.
func (h *InviteHandler) Lookup(c *gin.Context) {
	inviter, err := h.dir.ResolveToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		respondError(c, h.logger, "msg", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "inviter": inviter})
}

// AcceptToken connects the invitee with the token's owner.
func (h *InviteHandler) AcceptToken(c *gin.Context) {
	var req struct {
		Token    string `json:"token"`
		Username string `json:"username"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "msg": "Token and username required"})
		return
	}

	inviter, err := h.dir.AcceptToken(c.Request.Context(), req.Token, req.Username)
	if err != nil {
		respondError(c, h.logger, "msg", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "inviter": inviter})
}

// AcceptCode connects the invitee with whoever currently holds the code.
func (h *InviteHandler) AcceptCode(c *gin.Context) {
	var req struct {
		Username   string `json:"username"`
		InviteCode string `json:"inviteCode"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "msg": "Username and invite code required"})
		return
	}

	inviter, err := h.dir.AcceptCode(c.Request.Context(), req.InviteCode, req.Username)
	if err != nil {
		respondError(c, h.logger, "msg", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "inviter": inviter})
}
