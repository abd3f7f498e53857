// Package routes holds helpers shared by the HTTP route packages
package routes

import (
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

var validate = validator.New()

// Bind decodes the request into req. An empty body leaves req untouched.
func Bind(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	return nil
}

// Validate runs the struct's validate tags. Failures are validator.ValidationErrors for the error middleware.
func Validate(req any) error {
	return validate.Struct(req)
}

// QueryInt reads an integer query parameter, returning def when it is absent
func QueryInt(c echo.Context, name string, def int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, httperror.NewHTTPErrorf(http.StatusBadRequest, "%s must be an integer", name)
	}
	return n, nil
}

// QueryBool reads a boolean query parameter, returning false when it is absent
func QueryBool(c echo.Context, name string) (bool, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, httperror.NewHTTPErrorf(http.StatusBadRequest, "%s must be a boolean", name)
	}
	return b, nil
}
