package handlers

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"chat-relay/internal/middleware"
	"chat-relay/internal/models"
	"chat-relay/internal/observability"
	"chat-relay/internal/telemetry"
)

// AdminConfig holds the operator credentials. Secret doubles as the token
// signing key.
type AdminConfig struct {
	Username string
	Secret   string
	TokenTTL time.Duration
}

// AdminHandler manages accounts on behalf of an operator.
type AdminHandler struct {
	dir     Directory
	cfg     AdminConfig
	emitter *telemetry.AuditEmitter
	logger  *zap.Logger
	now     func() time.Time
}

// NewAdminHandler builds an AdminHandler. emitter may be nil.
func NewAdminHandler(dir Directory, cfg AdminConfig, emitter *telemetry.AuditEmitter, logger *zap.Logger) *AdminHandler {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 12 * time.Hour
	}
	return &AdminHandler{dir: dir, cfg: cfg, emitter: emitter, logger: nopIfNil(logger), now: time.Now}
}

type usernameRequest struct {
	Username string `json:"username"`
}

// Login exchanges operator credentials for a signed admin token.
func (h *AdminHandler) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "msg": "Username and password required"})
		return
	}

	if h.cfg.Secret == "" ||
		subtle.ConstantTimeCompare([]byte(req.Username), []byte(h.cfg.Username)) != 1 ||
		subtle.ConstantTimeCompare([]byte(req.Password), []byte(h.cfg.Secret)) != 1 {
		h.audit(c, "WARN", "admin login rejected", req.Username)
		c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "msg": "Invalid admin credentials"})
		return
	}

	token, err := middleware.IssueAdminToken(h.cfg.Secret, req.Username, h.cfg.TokenTTL, h.now())
	if err != nil {
		h.logger.Error("issue admin token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "msg": "Server error"})
		return
	}
	h.audit(c, "INFO", "admin login", req.Username)
	c.JSON(http.StatusOK, gin.H{"ok": true, "token": token, "msg": "Admin login successful"})
}

// CreateUser provisions an account and hands back its invite link.
func (h *AdminHandler) CreateUser(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Email    string `json:"email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "msg": "Username and password required"})
		return
	}

	ctx := c.Request.Context()
	inviteToken, err := h.dir.Create(ctx, req.Username, req.Password, req.Email)
	if err != nil {
		respondError(c, h.logger, "msg", err)
		return
	}
	if inviteToken == "" {
		if inviteToken, err = h.dir.EnsureInviteToken(ctx, req.Username); err != nil {
			respondError(c, h.logger, "msg", err)
			return
		}
	}

	h.audit(c, "INFO", "user created", req.Username)
	c.JSON(http.StatusOK, gin.H{
		"ok":          true,
		"msg":         "User created successfully",
		"inviteToken": inviteToken,
		"inviteLink":  observability.BaseURL(c.Request) + "/invite.html?token=" + inviteToken,
	})
}

// ListUsers returns every account with its status.
func (h *AdminHandler) ListUsers(c *gin.Context) {
	users, err := h.dir.ListUsers(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, "msg", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "users": users})
}

func (h *AdminHandler) Activate(c *gin.Context) {
	h.setStatus(c, models.StatusActive, "User activated")
}

func (h *AdminHandler) Deactivate(c *gin.Context) {
	h.setStatus(c, models.StatusInactive, "User deactivated")
}

func (h *AdminHandler) setStatus(c *gin.Context, status, done string) {
	var req usernameRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "msg": "Username required"})
		return
	}

	if err := h.dir.SetStatus(c.Request.Context(), req.Username, status); err != nil {
		respondError(c, h.logger, "msg", err)
		return
	}
	h.audit(c, "INFO", done, req.Username)
	c.JSON(http.StatusOK, gin.H{"ok": true, "msg": done})
}

// RemoveUser deletes an account.
func (h *AdminHandler) RemoveUser(c *gin.Context) {
	var req usernameRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "msg": "Username required"})
		return
	}

	if err := h.dir.Remove(c.Request.Context(), req.Username); err != nil {
		respondError(c, h.logger, "msg", err)
		return
	}
	h.audit(c, "INFO", "User removed", req.Username)
	c.JSON(http.StatusOK, gin.H{"ok": true, "msg": "User removed"})
}

func (h *AdminHandler) audit(c *gin.Context, level, text, target string) {
	h.emitter.Emit(c.Request.Context(), level, text, target, requestIDFromContext(c), adminActor(c))
}
