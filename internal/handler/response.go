package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/sumire/jobconsole/internal/domain"
)

// ErrorBody is the error payload of the job platform. Detail is a string,
// a list of DetailItem or an arbitrary object.
type ErrorBody struct {
	Detail any `json:"detail"`
}

// DetailItem is one entry of a list-shaped detail.
type DetailItem struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

// DetailError is an error response with an explicit status and detail payload.
type DetailError struct {
	Status int
	Detail any
}

func (e *DetailError) Error() string {
	return http.StatusText(e.Status)
}

// Violations is a set of request body validation failures.
type Violations []domain.ValidationError

func (v Violations) Error() string {
	msgs := make([]string, 0, len(v))
	for _, ve := range v {
		msgs = append(msgs, ve.Error())
	}
	return strings.Join(msgs, "; ")
}

func (v Violations) Unwrap() error {
	return domain.ErrInvalidInput
}

// JSON writes a JSON response.
func JSON(c echo.Context, status int, data any) error {
	return c.JSON(status, data)
}

// HTTPErrorHandler is the global error handler for echo.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status, detail := mapError(err)
	if jsonErr := c.JSON(status, ErrorBody{Detail: detail}); jsonErr != nil {
		slog.Error("failed to send error response", "error", jsonErr)
	}
}

func mapError(err error) (int, any) {
	var detailErr *DetailError
	if errors.As(err, &detailErr) {
		return detailErr.Status, detailErr.Detail
	}

	// Handle echo's own HTTP errors (404, 405, etc.)
	var echoErr *echo.HTTPError
	if errors.As(err, &echoErr) {
		msg, _ := echoErr.Message.(string)
		if msg == "" {
			msg = http.StatusText(echoErr.Code)
		}
		return echoErr.Code, msg
	}

	var violations Violations
	if errors.As(err, &violations) {
		return http.StatusUnprocessableEntity, detailItems(violations...)
	}

	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		return http.StatusUnprocessableEntity, detailItems(*validationErr)
	}

	var ineligibleErr *domain.IneligibleError
	if errors.As(err, &ineligibleErr) {
		return http.StatusBadRequest, ineligibleErr.Reason
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "Not found"
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "Not authenticated"
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, "Invalid request"
	default:
		slog.Error("unhandled error", "error", err)
		return http.StatusInternalServerError, "Internal Server Error"
	}
}

func detailItems(violations ...domain.ValidationError) []DetailItem {
	items := make([]DetailItem, 0, len(violations))
	for _, v := range violations {
		loc := []string{"body"}
		if v.Field != "" {
			loc = append(loc, v.Field)
		}
		items = append(items, DetailItem{Loc: loc, Msg: v.Error(), Type: "value_error"})
	}
	return items
}
