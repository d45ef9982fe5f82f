package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"chat-relay/internal/directory"
	"chat-relay/internal/models"
)

// Directory is the account, connection and invite surface handlers depend on.
// *directory.Service implements it.
type Directory interface {
	Register(ctx context.Context, in directory.RegisterInput) (string, error)
	Create(ctx context.Context, username, password, email string) (string, error)
	Authenticate(ctx context.Context, username, password string) (models.Account, error)
	SetStatus(ctx context.Context, username, status string) error
	Remove(ctx context.Context, username string) error
	ListUsers(ctx context.Context) ([]models.AccountSummary, error)
	ListActiveUsernames(ctx context.Context) ([]string, error)
	RemoveConnection(ctx context.Context, a, b string) error
	ListActiveConnections(ctx context.Context, username string) ([]string, error)
	RegenerateInviteCode(ctx context.Context, username string) (string, error)
	EnsureInviteToken(ctx context.Context, username string) (string, error)
	ResolveToken(ctx context.Context, token string) (string, error)
	AcceptToken(ctx context.Context, token, invitee string) (string, error)
	AcceptCode(ctx context.Context, code, invitee string) (string, error)
}

var _ Directory = (*directory.Service)(nil)

// respondError maps directory errors onto status codes. key is the response
// field carrying the message ("msg" or "error").
func respondError(c *gin.Context, logger *zap.Logger, key string, err error) {
	var validation *directory.ValidationError
	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, key: validation.Msg})
	case errors.Is(err, directory.ErrAlreadyExists):
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, key: "User already exists"})
	case errors.Is(err, directory.ErrEmailTaken):
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, key: "Email already registered"})
	case errors.Is(err, directory.ErrSelfInvite):
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, key: "Cannot invite yourself"})
	case errors.Is(err, directory.ErrFriendNotFound):
		c.JSON(http.StatusNotFound, gin.H{"ok": false, key: "Friend not found"})
	case errors.Is(err, directory.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"ok": false, key: "User not found"})
	case errors.Is(err, directory.ErrInviteNotFound):
		c.JSON(http.StatusNotFound, gin.H{"ok": false, key: "Invite not found"})
	case errors.Is(err, directory.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"ok": false, key: "Invalid credentials"})
	case errors.Is(err, directory.ErrDeactivated):
		c.JSON(http.StatusForbidden, gin.H{"ok": false, key: "User account is deactivated"})
	default:
		logger.Error("request failed",
			zap.String("route", c.FullPath()),
			zap.String("request_id", requestIDFromContext(c)),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, key: "Server error"})
	}
}

func nopIfNil(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
