package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/victorivanov/huddle/internal/models"
)

// paramError is a malformed path or query parameter.
type paramError struct {
	status  int
	code    string
	message string
}

func (e *paramError) respond(c echo.Context) error {
	return Error(c, e.status, e.code, e.message)
}

// conversationParam reads the :kind and :id path parameters.
func conversationParam(c echo.Context) (models.ConversationRef, *paramError) {
	var kind models.ConversationKind
	switch c.Param("kind") {
	case "channels":
		kind = models.KindChannel
	case "dms":
		kind = models.KindDirect
	default:
		return models.ConversationRef{}, &paramError{http.StatusNotFound, "NOT_FOUND", "unknown conversation kind"}
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return models.ConversationRef{}, &paramError{http.StatusBadRequest, "INVALID_ID", "invalid conversation ID"}
	}
	return models.ConversationRef{ID: id, Kind: kind}, nil
}

func messageIDParam(c echo.Context) (int64, *paramError) {
	id, err := strconv.ParseInt(c.Param("message_id"), 10, 64)
	if err != nil {
		return 0, &paramError{http.StatusBadRequest, "INVALID_ID", "invalid message ID"}
	}
	return id, nil
}
