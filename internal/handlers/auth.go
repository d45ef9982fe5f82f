package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"chat-relay/internal/directory"
)

// AuthHandler serves self-service registration and password login.
type AuthHandler struct {
	dir    Directory
	logger *zap.Logger
}

// NewAuthHandler builds an AuthHandler.
func NewAuthHandler(dir Directory, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{dir: dir, logger: nopIfNil(logger)}
}

// Register creates an account from a signup form.
func (h *AuthHandler) Register(c *gin.Context) {
	var req directory.RegisterInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "msg": "All fields required"})
		return
	}

	username, err := h.dir.Register(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, "msg", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "msg": "Registration successful! You can now login.", "username": username})
}

// Login checks a username and password.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Username == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "Username and password required"})
		return
	}

	account, err := h.dir.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		respondError(c, h.logger, "error", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "username": account.Username, "msg": "Login successful"})
}
