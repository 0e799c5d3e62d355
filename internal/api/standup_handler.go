package api

import (
	"math"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/victorivanov/huddle/internal/auth"
	"github.com/victorivanov/huddle/internal/service"
)

// StandupHandler handles standup endpoints.
type StandupHandler struct {
	service *service.StandupService
}

// NewStandupHandler creates a StandupHandler.
func NewStandupHandler(svc *service.StandupService) *StandupHandler {
	return &StandupHandler{service: svc}
}

// maxStandupSeconds is the longest length that still fits a time.Duration.
const maxStandupSeconds = math.MaxInt64 / int64(time.Second)

type startStandupRequest struct {
	Length int64 `json:"length"`
}

// StartStandup handles POST /api/v1/:kind/:id/standup. length is in
// seconds.
func (h *StandupHandler) StartStandup(c echo.Context) error {
	ref, perr := conversationParam(c)
	if perr != nil {
		return perr.respond(c)
	}

	var req startStandupRequest
	if err := c.Bind(&req); err != nil {
		return Error(c, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
	}
	if req.Length > maxStandupSeconds {
		return Error(c, http.StatusBadRequest, "INVALID_DURATION", "length is too long")
	}

	deadline, err := h.service.Start(c.Request().Context(), ref, auth.GetUserID(c), time.Duration(req.Length)*time.Second)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, map[string]int64{"time_finish": deadline.Unix()})
}

// GetStandup handles GET /api/v1/:kind/:id/standup.
func (h *StandupHandler) GetStandup(c echo.Context) error {
	ref, perr := conversationParam(c)
	if perr != nil {
		return perr.respond(c)
	}

	status, err := h.service.Active(c.Request().Context(), ref, auth.GetUserID(c))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, status)
}

// SendStandupMessage handles POST /api/v1/:kind/:id/standup/messages.
func (h *StandupHandler) SendStandupMessage(c echo.Context) error {
	ref, perr := conversationParam(c)
	if perr != nil {
		return perr.respond(c)
	}

	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return Error(c, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
	}

	if err := h.service.Send(c.Request().Context(), ref, auth.GetUserID(c), req.Message); err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusAccepted, empty)
}
