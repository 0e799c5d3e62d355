package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/victorivanov/huddle/internal/service"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func Error(c echo.Context, status int, code, message string) error {
	return c.JSON(status, ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
}

// empty is the body of successful calls with nothing to return.
var empty = struct{}{}

// httpCodes names the framework-level failures that reach HTTPErrorHandler.
var httpCodes = map[int]string{
	http.StatusUnauthorized:          "UNAUTHORIZED",
	http.StatusNotFound:              "NOT_FOUND",
	http.StatusMethodNotAllowed:      "METHOD_NOT_ALLOWED",
	http.StatusRequestEntityTooLarge: "BODY_TOO_LARGE",
}

// HTTPErrorHandler renders errors returned by middleware or the router in
// the same envelope the handlers use.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status, message := http.StatusInternalServerError, "internal server error"
	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		if m, ok := he.Message.(string); ok {
			message = m
		}
	} else {
		slog.Error("unhandled request error", "path", c.Path(), "error", err)
	}

	code, ok := httpCodes[status]
	if !ok {
		code = "INTERNAL"
		if status < http.StatusInternalServerError {
			code = "BAD_REQUEST"
		}
	}
	if err := Error(c, status, code, message); err != nil {
		slog.Warn("writing error response failed", "error", err)
	}
}

// mapServiceError translates a service error into an HTTP error response.
func mapServiceError(c echo.Context, err error) error {
	var se *service.ServiceError
	if !errors.As(err, &se) {
		slog.Error("unhandled service error", "path", c.Path(), "error", err)
		return Error(c, http.StatusInternalServerError, "INTERNAL", "internal server error")
	}

	switch {
	case errors.Is(se, service.ErrBadRequest):
		return Error(c, http.StatusBadRequest, se.Code, se.Message)
	case errors.Is(se, service.ErrNotFound):
		return Error(c, http.StatusNotFound, se.Code, se.Message)
	case errors.Is(se, service.ErrForbidden):
		return Error(c, http.StatusForbidden, se.Code, se.Message)
	case errors.Is(se, service.ErrConflict):
		return Error(c, http.StatusConflict, se.Code, se.Message)
	case errors.Is(se, service.ErrOutOfRange):
		return Error(c, http.StatusRequestedRangeNotSatisfiable, se.Code, se.Message)
	default:
		return Error(c, http.StatusInternalServerError, se.Code, se.Message)
	}
}
