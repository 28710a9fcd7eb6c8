package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-seat-manager/internal/middleware"
	"github.com/iliyamo/event-seat-manager/internal/reservation"
)

// EventHandler serves event CRUD.  Reads are annotated for the caller.
type EventHandler struct {
	Manager *reservation.Manager
	Log     *slog.Logger
}

// NewEventHandler constructs an EventHandler and panics if the manager is nil.
func NewEventHandler(m *reservation.Manager, log *slog.Logger) *EventHandler {
	if m == nil {
		panic("nil manager passed to NewEventHandler")
	}
	return &EventHandler{Manager: m, Log: orDefault(log)}
}

type eventRequest struct {
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Location        string    `json:"location"`
	Date            time.Time `json:"date"`
	MaxCapacity     *int      `json:"maxCapacity"`
	WaitlistEnabled *bool     `json:"waitlistEnabled"`
}

// input converts the request; the waitlist is enabled unless switched off.
func (r eventRequest) input() reservation.EventInput {
	waitlist := true
	if r.WaitlistEnabled != nil {
		waitlist = *r.WaitlistEnabled
	}
	return reservation.EventInput{
		Title:           r.Title,
		Description:     r.Description,
		Location:        r.Location,
		Date:            r.Date,
		MaxCapacity:     r.MaxCapacity,
		WaitlistEnabled: waitlist,
	}
}

// List handles GET /events.
func (h *EventHandler) List(c echo.Context) error {
	events, err := h.Manager.Events(c.Request().Context(), middleware.Email(c))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, events)
}

// Get handles GET /events/:id.
func (h *EventHandler) Get(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid event id")
	}
	ev, err := h.Manager.Event(c.Request().Context(), id, middleware.Email(c))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, ev)
}

// Create handles POST /events.
func (h *EventHandler) Create(c echo.Context) error {
	var req eventRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	ev, err := h.Manager.CreateEvent(c.Request().Context(), req.input())
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, ev)
}

// Update handles PUT /events/:id.
func (h *EventHandler) Update(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid event id")
	}
	var req eventRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	ev, err := h.Manager.UpdateEvent(c.Request().Context(), id, req.input())
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, ev)
}

// Delete handles DELETE /events/:id.
func (h *EventHandler) Delete(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid event id")
	}
	if err := h.Manager.DeleteEvent(c.Request().Context(), id); err != nil {
		return fail(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}
