package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/victorivanov/huddle/internal/auth"
	"github.com/victorivanov/huddle/internal/models"
	"github.com/victorivanov/huddle/internal/service"
)

// MessageHandler handles message endpoints for channels and DMs.
type MessageHandler struct {
	service *service.MessageService
}

// NewMessageHandler creates a MessageHandler.
func NewMessageHandler(svc *service.MessageService) *MessageHandler {
	return &MessageHandler{service: svc}
}

type sendMessageRequest struct {
	Message string `json:"message"`
}

type scheduleMessageRequest struct {
	Message  string `json:"message"`
	TimeSent int64  `json:"time_sent"`
}

type shareMessageRequest struct {
	Message   string `json:"message"`
	ChannelID int64  `json:"channel_id"`
	DMID      int64  `json:"dm_id"`
}

type messageIDResponse struct {
	MessageID int64 `json:"message_id,string"`
}

type sharedMessageResponse struct {
	SharedMessageID int64 `json:"shared_message_id,string"`
}

// SendMessage handles POST /api/v1/:kind/:id/messages.
func (h *MessageHandler) SendMessage(c echo.Context) error {
	ref, perr := conversationParam(c)
	if perr != nil {
		return perr.respond(c)
	}

	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return Error(c, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
	}

	id, err := h.service.Send(c.Request().Context(), ref, auth.GetUserID(c), req.Message)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, messageIDResponse{MessageID: id})
}

// GetMessages handles GET /api/v1/:kind/:id/messages?start=N.
func (h *MessageHandler) GetMessages(c echo.Context) error {
	ref, perr := conversationParam(c)
	if perr != nil {
		return perr.respond(c)
	}

	start := 0
	if s := c.QueryParam("start"); s != "" {
		parsed, err := strconv.Atoi(s)
		if err != nil {
			return Error(c, http.StatusBadRequest, "INVALID_START", "start must be an integer")
		}
		start = parsed
	}

	page, err := h.service.Page(c.Request().Context(), ref, auth.GetUserID(c), start)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, page)
}

// ScheduleMessage handles POST /api/v1/:kind/:id/messages/scheduled.
func (h *MessageHandler) ScheduleMessage(c echo.Context) error {
	ref, perr := conversationParam(c)
	if perr != nil {
		return perr.respond(c)
	}

	var req scheduleMessageRequest
	if err := c.Bind(&req); err != nil {
		return Error(c, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
	}

	id, err := h.service.ScheduleSend(c.Request().Context(), ref, auth.GetUserID(c), req.Message, time.Unix(req.TimeSent, 0))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusAccepted, messageIDResponse{MessageID: id})
}

// GetMessage handles GET /api/v1/messages/:message_id.
func (h *MessageHandler) GetMessage(c echo.Context) error {
	id, perr := messageIDParam(c)
	if perr != nil {
		return perr.respond(c)
	}

	view, err := h.service.Get(c.Request().Context(), id, auth.GetUserID(c))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, view)
}

// EditMessage handles PATCH /api/v1/messages/:message_id. An empty message
// removes it.
func (h *MessageHandler) EditMessage(c echo.Context) error {
	id, perr := messageIDParam(c)
	if perr != nil {
		return perr.respond(c)
	}

	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return Error(c, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
	}

	if err := h.service.Edit(c.Request().Context(), id, auth.GetUserID(c), req.Message); err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, empty)
}

// DeleteMessage handles DELETE /api/v1/messages/:message_id.
func (h *MessageHandler) DeleteMessage(c echo.Context) error {
	id, perr := messageIDParam(c)
	if perr != nil {
		return perr.respond(c)
	}

	if err := h.service.Remove(c.Request().Context(), id, auth.GetUserID(c)); err != nil {
		return mapServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ShareMessage handles POST /api/v1/messages/:message_id/share. Exactly one
// of channel_id and dm_id names the target; the other is -1.
func (h *MessageHandler) ShareMessage(c echo.Context) error {
	id, perr := messageIDParam(c)
	if perr != nil {
		return perr.respond(c)
	}

	req := shareMessageRequest{ChannelID: models.NoConversation, DMID: models.NoConversation}
	if err := c.Bind(&req); err != nil {
		return Error(c, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
	}

	var target models.ConversationRef
	switch {
	case req.ChannelID != models.NoConversation && req.DMID == models.NoConversation:
		target = models.ChannelRef(req.ChannelID)
	case req.DMID != models.NoConversation && req.ChannelID == models.NoConversation:
		target = models.DirectRef(req.DMID)
	default:
		return Error(c, http.StatusBadRequest, "INVALID_TARGET", "exactly one of channel_id and dm_id must be set")
	}

	shared, err := h.service.Share(c.Request().Context(), id, auth.GetUserID(c), target, req.Message)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, sharedMessageResponse{SharedMessageID: shared})
}

// Search handles GET /api/v1/search?query=.
func (h *MessageHandler) Search(c echo.Context) error {
	views, err := h.service.Search(c.Request().Context(), auth.GetUserID(c), c.QueryParam("query"))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"messages": views})
}

// PurgeMessages handles DELETE /api/v1/:kind/:id/messages, dropping the
// history of a conversation deleted from the directory.
func (h *MessageHandler) PurgeMessages(c echo.Context) error {
	ref, perr := conversationParam(c)
	if perr != nil {
		return perr.respond(c)
	}

	n, err := h.service.Purge(c.Request().Context(), ref, auth.GetUserID(c))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]int{"removed": n})
}
