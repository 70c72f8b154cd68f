package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

const (
	contextKeySubject = "subject"
)

// TokenValidator validates a bearer token and returns its subject.
type TokenValidator interface {
	Validate(token string) (string, error)
}

// RequestLogger logs each HTTP request with structured fields. Server errors
// log at error level, client errors at warn, everything else at debug.
func RequestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			status := c.Response().Status
			if err != nil {
				status, _ = mapError(err)
			}

			level := slog.LevelDebug
			switch {
			case status >= http.StatusInternalServerError:
				level = slog.LevelError
			case status >= http.StatusBadRequest:
				level = slog.LevelWarn
			}

			attrs := []any{
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
				"status", status,
				"duration_ms", time.Since(start).Milliseconds(),
			}
			for _, key := range []string{"job_id", "job_execution_id", "schedule_id"} {
				if v := c.QueryParam(key); v != "" {
					attrs = append(attrs, key, v)
				}
			}
			slog.Log(context.Background(), level, "http request", attrs...)

			return err
		}
	}
}

// BearerAuth validates the Bearer token and injects its subject into echo context.
// A missing header and a rejected token are told apart in the 401 detail.
func BearerAuth(tokens TokenValidator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			scheme, token, ok := strings.Cut(c.Request().Header.Get(echo.HeaderAuthorization), " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
				return unauthorized(c, "Not authenticated")
			}

			sub, err := tokens.Validate(token)
			if err != nil {
				slog.Debug("bearer token rejected", "error", err)
				return unauthorized(c, "Could not validate credentials")
			}

			c.Set(contextKeySubject, sub)
			return next(c)
		}
	}
}

func unauthorized(c echo.Context, detail string) error {
	c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
	return &DetailError{Status: http.StatusUnauthorized, Detail: detail}
}

// GetSubject extracts the authenticated subject from echo context.
func GetSubject(c echo.Context) (string, bool) {
	sub, ok := c.Get(contextKeySubject).(string)
	return sub, ok
}
