package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"review-insights/internal/api/dto"
	"review-insights/internal/api/service"
)

// HeaderUserID identifies the requesting user. Authentication is handled
// upstream; this service trusts the header as set by the gateway.
const HeaderUserID = "X-User-ID"

func requestUserID(c echo.Context) string {
	return c.Request().Header.Get(HeaderUserID)
}

// writeServiceError maps service sentinel errors to HTTP status codes.
func writeServiceError(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, service.ErrForbidden):
		status = http.StatusForbidden
	}
	return c.JSON(status, dto.ErrorResponse{Error: err.Error()})
}
