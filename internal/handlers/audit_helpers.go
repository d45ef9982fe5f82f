package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"chat-relay/internal/middleware"
)

func requestIDFromContext(c *gin.Context) string {
	if id := c.GetString(middleware.RequestIDKey); id != "" {
		return id
	}

	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(middleware.RequestIDKey, requestID)
	return requestID
}

func adminActor(c *gin.Context) *string {
	subject := middleware.AdminSubject(c)
	if subject == "" {
		return nil
	}
	return &subject
}
