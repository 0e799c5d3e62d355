package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/victorivanov/huddle/internal/auth"
	"github.com/victorivanov/huddle/internal/service"
)

// NotificationHandler serves the caller's notification feed.
type NotificationHandler struct {
	service *service.NotificationService
}

// NewNotificationHandler creates a NotificationHandler.
func NewNotificationHandler(svc *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{service: svc}
}

type announceMemberRequest struct {
	UserID int64 `json:"u_id,string"`
}

// GetNotifications handles GET /api/v1/notifications.
func (h *NotificationHandler) GetNotifications(c echo.Context) error {
	feed, err := h.service.Feed(c.Request().Context(), auth.GetUserID(c))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"notifications": feed})
}

// AnnounceMember handles POST /api/v1/:kind/:id/members. The directory has
// already added u_id; this sends them the "added" notification.
func (h *NotificationHandler) AnnounceMember(c echo.Context) error {
	ref, perr := conversationParam(c)
	if perr != nil {
		return perr.respond(c)
	}

	var req announceMemberRequest
	if err := c.Bind(&req); err != nil || req.UserID <= 0 {
		return Error(c, http.StatusBadRequest, "INVALID_BODY", "u_id is required")
	}

	if err := h.service.AnnounceMember(c.Request().Context(), ref, auth.GetUserID(c), req.UserID); err != nil {
		return mapServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
