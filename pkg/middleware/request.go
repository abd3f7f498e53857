package middleware

import (
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	appctx "github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/context"
)

// HeaderUserID names the admin acting on a request
const HeaderUserID = "X-User-ID"

// Context tags the request context with its request id, admin and route, and echoes the request id back
func Context() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			id := req.Header.Get(echo.HeaderXRequestID)
			if id == "" {
				id = uuid.New().String()
			}
			c.Response().Header().Set(echo.HeaderXRequestID, id)

			ctx := appctx.SetRequestID(req.Context(), id)
			ctx = appctx.SetUserID(ctx, req.Header.Get(HeaderUserID))
			ctx = appctx.SetRoute(ctx, c.Path())
			c.SetRequest(req.WithContext(ctx))

			return next(c)
		}
	}
}

// Logger writes one line per request once the error handler has rendered the response.
// Requests under quietPrefixes, such as health checks and scrapes, log at debug.
func Logger(logger ectologger.Logger, quietPrefixes ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			if err := next(c); err != nil {
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()
			fields := appctx.LogFields(req.Context())
			fields["method"] = req.Method
			fields["status"] = res.Status
			fields["remote_ip"] = c.RealIP()
			fields["latency_ms"] = time.Since(start).Milliseconds()
			fields["bytes_out"] = res.Size

			log := logger.WithContext(req.Context()).WithFields(fields)
			switch {
			case quiet(req.URL.Path, quietPrefixes):
				log.Debug("Handled request")
			case res.Status >= 500:
				log.Error("Handled request")
			default:
				log.Info("Handled request")
			}
			return nil
		}
	}
}

func quiet(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
