package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/victorivanov/huddle/internal/auth"
	"github.com/victorivanov/huddle/internal/gateway"
	"github.com/victorivanov/huddle/internal/redis"
)

// Dependencies holds all handler instances and middleware for route wiring.
type Dependencies struct {
	Messages      *MessageHandler
	Standups      *StandupHandler
	Reactions     *ReactionHandler
	Notifications *NotificationHandler
	Gateway       *gateway.Manager

	TokenService *auth.TokenService
	Redis        *redis.Client

	// RateLimitPerMinute caps authenticated requests per user and route.
	// Zero disables rate limiting, as does a nil Redis.
	RateLimitPerMinute int

	// Metrics, when set, is served on GET /metrics.
	Metrics http.Handler
}

// SetupRouter registers all API routes on the Echo instance.
func SetupRouter(e *echo.Echo, deps *Dependencies) {
	e.HTTPErrorHandler = HTTPErrorHandler

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	if deps.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(deps.Metrics))
	}

	if deps.Gateway != nil {
		e.GET("/gateway", deps.Gateway.HandleWebSocket)
	}

	middlewares := []echo.MiddlewareFunc{deps.TokenService.Middleware()}
	if deps.Redis != nil && deps.RateLimitPerMinute > 0 {
		middlewares = append(middlewares, RateLimitMiddleware(deps.Redis, deps.RateLimitPerMinute, time.Minute))
	}
	protected := e.Group("/api/v1", middlewares...)

	// Conversation history, channels and dms alike.
	protected.POST("/:kind/:id/messages", deps.Messages.SendMessage)
	protected.GET("/:kind/:id/messages", deps.Messages.GetMessages)
	protected.POST("/:kind/:id/messages/scheduled", deps.Messages.ScheduleMessage)
	protected.DELETE("/:kind/:id/messages", deps.Messages.PurgeMessages)
	protected.POST("/:kind/:id/members", deps.Notifications.AnnounceMember)

	// Standups
	protected.POST("/:kind/:id/standup", deps.Standups.StartStandup)
	protected.GET("/:kind/:id/standup", deps.Standups.GetStandup)
	protected.POST("/:kind/:id/standup/messages", deps.Standups.SendStandupMessage)

	// Single messages
	protected.GET("/messages/:message_id", deps.Messages.GetMessage)
	protected.PATCH("/messages/:message_id", deps.Messages.EditMessage)
	protected.DELETE("/messages/:message_id", deps.Messages.DeleteMessage)
	protected.POST("/messages/:message_id/share", deps.Messages.ShareMessage)

	// Reactions and pins
	protected.PUT("/messages/:message_id/reactions/:react_kind", deps.Reactions.AddReaction)
	protected.DELETE("/messages/:message_id/reactions/:react_kind", deps.Reactions.RemoveReaction)
	protected.PUT("/messages/:message_id/pin", deps.Reactions.PinMessage)
	protected.DELETE("/messages/:message_id/pin", deps.Reactions.UnpinMessage)

	protected.GET("/notifications", deps.Notifications.GetNotifications)
	protected.GET("/search", deps.Messages.Search)
}
