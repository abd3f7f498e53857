// Package middleware holds the echo middleware shared by the admin and trigger routes
package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	appctx "github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/context"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/redis"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/tracing"
)

type ErrorResponse struct {
	Message   string         `json:"message"`
	RequestID string         `json:"request_id"`
	TraceID   string         `json:"trace_id,omitempty"`
	Meta      map[string]any `json:"meta,omitempty"`
}

// Error renders every handler error as an ErrorResponse. Unrecognized errors are a 500
// whose message does not leak the cause.
func Error(logger ectologger.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		ctx := c.Request().Context()
		code, body := classify(err)
		body.RequestID = appctx.GetRequestID(ctx)
		body.TraceID = tracing.TraceID(ctx)

		log := logger.WithContext(ctx).WithFields(appctx.LogFields(ctx)).WithError(err).WithField("status", code)
		if code >= http.StatusInternalServerError {
			log.Error("Request failed")
		} else {
			log.Warn("Request rejected")
		}

		_ = c.JSON(code, body)
	}
}

func classify(err error) (int, ErrorResponse) {
	var (
		echoErr    *echo.HTTPError
		validation validator.ValidationErrors
	)
	switch {
	case httperror.IsHTTPError(err):
		he := httperror.ToHTTPError(err)
		return httperror.GetStatusCode(err), ErrorResponse{Message: he.Error(), Meta: he.Meta}
	case errors.As(err, &validation):
		fields := make(map[string]string, len(validation))
		for _, fe := range validation {
			fields[fe.Field()] = fe.Tag()
		}
		return http.StatusBadRequest, ErrorResponse{Message: "invalid request", Meta: map[string]any{"fields": fields}}
	case errors.As(err, &echoErr):
		msg, ok := echoErr.Message.(string)
		if !ok {
			msg = http.StatusText(echoErr.Code)
		}
		return echoErr.Code, ErrorResponse{Message: msg}
	case errors.Is(err, redis.ErrLockNotAcquired):
		return http.StatusConflict, ErrorResponse{Message: "job is already running"}
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, ErrorResponse{Message: "request timed out"}
	}
	return http.StatusInternalServerError, ErrorResponse{Message: http.StatusText(http.StatusInternalServerError)}
}
