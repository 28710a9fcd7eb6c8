package handler // handler defines http handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-seat-manager/internal/reservation"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// statusFor maps an error code to its HTTP status.
func statusFor(code string) int {
	switch code {
	case reservation.CodeSeatUnavailable,
		reservation.CodeSeatTaken,
		reservation.CodeEventFull,
		reservation.CodeDuplicateRegistration,
		reservation.CodeAlreadyQueued,
		reservation.CodeEventNotFull:
		return http.StatusConflict
	case reservation.CodeWaitlistDisabled, reservation.CodeInvalidState:
		return http.StatusUnprocessableEntity
	case reservation.CodeNotFound, reservation.CodeNotQueued:
		return http.StatusNotFound
	case reservation.CodeValidation:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// fail writes err as an ErrorResponse.  Errors outside the taxonomy are
// logged and answered with a fixed message.
func fail(c echo.Context, log *slog.Logger, err error) error {
	code := reservation.Code(err)
	if code == reservation.CodeInternal {
		log.Error("request failed",
			"method", c.Request().Method,
			"route", c.Path(),
			"error", err,
		)
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error", Code: code})
	}
	return c.JSON(statusFor(code), ErrorResponse{Error: err.Error(), Code: code})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg, Code: reservation.CodeValidation})
}

func forbidden(c echo.Context) error {
	return c.JSON(http.StatusForbidden, ErrorResponse{Error: "forbidden", Code: "FORBIDDEN"})
}

// pathID parses a positive numeric path parameter.
func pathID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

func orDefault(log *slog.Logger) *slog.Logger {
	if log == nil {
		return slog.Default()
	}
	return log
}
