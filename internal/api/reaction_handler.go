package api

import (
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"
	"github.com/victorivanov/huddle/internal/auth"
	"github.com/victorivanov/huddle/internal/service"
)

// ReactionHandler handles reaction and pin endpoints.
type ReactionHandler struct {
	reactions *service.ReactionService
	pins      *service.PinService
}

// NewReactionHandler creates a ReactionHandler.
func NewReactionHandler(reactions *service.ReactionService, pins *service.PinService) *ReactionHandler {
	return &ReactionHandler{reactions: reactions, pins: pins}
}

func reactKindParam(c echo.Context) (string, *paramError) {
	kind, err := url.PathUnescape(c.Param("react_kind"))
	if err != nil || kind == "" {
		return "", &paramError{http.StatusBadRequest, "INVALID_REACTION", "invalid react_kind"}
	}
	return kind, nil
}

// AddReaction handles PUT /api/v1/messages/:message_id/reactions/:react_kind.
func (h *ReactionHandler) AddReaction(c echo.Context) error {
	msgID, perr := messageIDParam(c)
	if perr != nil {
		return perr.respond(c)
	}
	kind, perr := reactKindParam(c)
	if perr != nil {
		return perr.respond(c)
	}

	if err := h.reactions.React(c.Request().Context(), msgID, auth.GetUserID(c), kind); err != nil {
		return mapServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// RemoveReaction handles DELETE /api/v1/messages/:message_id/reactions/:react_kind.
func (h *ReactionHandler) RemoveReaction(c echo.Context) error {
	msgID, perr := messageIDParam(c)
	if perr != nil {
		return perr.respond(c)
	}
	kind, perr := reactKindParam(c)
	if perr != nil {
		return perr.respond(c)
	}

	if err := h.reactions.Unreact(c.Request().Context(), msgID, auth.GetUserID(c), kind); err != nil {
		return mapServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// PinMessage handles PUT /api/v1/messages/:message_id/pin.
func (h *ReactionHandler) PinMessage(c echo.Context) error {
	msgID, perr := messageIDParam(c)
	if perr != nil {
		return perr.respond(c)
	}

	if err := h.pins.Pin(c.Request().Context(), msgID, auth.GetUserID(c)); err != nil {
		return mapServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// UnpinMessage handles DELETE /api/v1/messages/:message_id/pin.
func (h *ReactionHandler) UnpinMessage(c echo.Context) error {
	msgID, perr := messageIDParam(c)
	if perr != nil {
		return perr.respond(c)
	}

	if err := h.pins.Unpin(c.Request().Context(), msgID, auth.GetUserID(c)); err != nil {
		return mapServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
