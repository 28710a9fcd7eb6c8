package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-seat-manager/internal/middleware"
	"github.com/iliyamo/event-seat-manager/internal/model"
	"github.com/iliyamo/event-seat-manager/internal/reservation"
)

// WaitlistHandler serves the per-event waitlist of the caller.
type WaitlistHandler struct {
	Manager *reservation.Manager
	Log     *slog.Logger
}

// NewWaitlistHandler constructs a WaitlistHandler and panics if the
// manager is nil.
func NewWaitlistHandler(m *reservation.Manager, log *slog.Logger) *WaitlistHandler {
	if m == nil {
		panic("nil manager passed to NewWaitlistHandler")
	}
	return &WaitlistHandler{Manager: m, Log: orDefault(log)}
}

// Join handles POST /events/:id/waitlist/join.
func (h *WaitlistHandler) Join(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid event id")
	}
	entry, err := h.Manager.JoinWaitlist(c.Request().Context(), id, middleware.Email(c))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, entry)
}

// Leave handles DELETE /events/:id/waitlist/leave.
func (h *WaitlistHandler) Leave(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid event id")
	}
	if err := h.Manager.LeaveWaitlist(c.Request().Context(), id, middleware.Email(c)); err != nil {
		return fail(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Position handles GET /events/:id/waitlist/position.
func (h *WaitlistHandler) Position(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid event id")
	}
	entry, err := h.Manager.Position(c.Request().Context(), id, middleware.Email(c))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, entry)
}

// Count handles GET /events/:id/waitlist/count.
func (h *WaitlistHandler) Count(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid event id")
	}
	n, err := h.Manager.WaitlistCount(c.Request().Context(), id)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"eventId": id, "count": n})
}

// Confirm handles POST /events/:id/waitlist/confirm.
func (h *WaitlistHandler) Confirm(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid event id")
	}
	inv, err := h.Manager.ConfirmWaitlistSpot(c.Request().Context(), id, middleware.Email(c))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, inv)
}

// Redistribute handles POST /events/:id/waitlist/redistribute/:slots.
func (h *WaitlistHandler) Redistribute(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid event id")
	}
	slots, err := strconv.Atoi(c.Param("slots"))
	if err != nil {
		return badRequest(c, "invalid slot count")
	}
	notified, err := h.Manager.RedistributeSlots(c.Request().Context(), id, slots)
	if err != nil {
		return fail(c, h.Log, err)
	}
	if notified == nil {
		notified = []model.WaitlistEntry{}
	}
	return c.JSON(http.StatusOK, echo.Map{"notified": notified, "count": len(notified)})
}
