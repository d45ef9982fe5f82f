package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"chat-relay/internal/config"
	"chat-relay/internal/handlers"
	"chat-relay/internal/middleware"
	"chat-relay/internal/observability"
	"chat-relay/internal/repositories"
	"chat-relay/internal/telemetry"
	"chat-relay/internal/ws"
)

type engineDeps struct {
	logger   *zap.Logger
	dir      handlers.Directory
	messages repositories.MessageRepository
	relay    *ws.Router
	redis    *redis.Client
	audit    *telemetry.AuditEmitter
}

func newEngine(cfg config.Config, deps engineDeps) *gin.Engine {
	if cfg.Environment == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(middleware.RequestLogger(deps.logger))
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	limited := middleware.RateLimit(deps.redis, middleware.DefaultRateLimitConfig(cfg.RateLimitPerMinute), deps.logger)

	authHandler := handlers.NewAuthHandler(deps.dir, deps.logger)
	userHandler := handlers.NewUserHandler(deps.dir, deps.logger)
	inviteHandler := handlers.NewInviteHandler(deps.dir, deps.logger)
	messageHandler := handlers.NewMessageHandler(deps.messages, deps.logger)
	adminHandler := handlers.NewAdminHandler(deps.dir, handlers.AdminConfig{
		Username: cfg.AdminUsername,
		Secret:   cfg.AdminSecret,
		TokenTTL: cfg.AdminTokenTTL,
	}, deps.audit, deps.logger)

	api := router.Group("/api")
	api.POST("/auth/register", limited, authHandler.Register)
	api.POST("/auth/login", limited, authHandler.Login)

	api.GET("/users", userHandler.ListUsers)
	api.GET("/users/:username/connections", userHandler.Connections)
	api.POST("/users/:username/remove-connection", userHandler.RemoveConnection)
	api.GET("/users/:username/invite", userHandler.InviteCode)

	api.POST("/invite/accept-code", limited, inviteHandler.AcceptCode)
	api.GET("/invite/:token", inviteHandler.Lookup)
	api.POST("/invite/accept", limited, inviteHandler.AcceptToken)

	api.POST("/messages/save", messageHandler.Save)
	api.GET("/messages/history", messageHandler.History)

	api.POST("/admin/login", limited, adminHandler.Login)
	admin := api.Group("/admin", middleware.AdminAuth(cfg.AdminSecret))
	admin.POST("/create-user", adminHandler.CreateUser)
	admin.GET("/users", adminHandler.ListUsers)
	admin.POST("/user/activate", adminHandler.Activate)
	admin.POST("/user/deactivate", adminHandler.Deactivate)
	admin.DELETE("/user/remove", adminHandler.RemoveUser)

	router.GET("/ws", ws.NewHandler(deps.relay, deps.dir, deps.logger, cfg.ClientBuffer).Handle)

	handlers.RegisterDebugRoutes(router, deps.audit, deps.relay, cfg.DebugRoutes)

	return router
}
