package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-seat-manager/internal/middleware"
	"github.com/iliyamo/event-seat-manager/internal/model"
	"github.com/iliyamo/event-seat-manager/internal/reservation"
)

// InvitationHandler serves seat locks and registrations.  Users act on
// their own behalf; AdminRole may act for anyone.
type InvitationHandler struct {
	Manager   *reservation.Manager
	Log       *slog.Logger
	AdminRole string
}

// NewInvitationHandler constructs an InvitationHandler and panics if the
// manager is nil.
func NewInvitationHandler(m *reservation.Manager, adminRole string, log *slog.Logger) *InvitationHandler {
	if m == nil {
		panic("nil manager passed to NewInvitationHandler")
	}
	return &InvitationHandler{Manager: m, Log: orDefault(log), AdminRole: adminRole}
}

type seatRequest struct {
	Row    int `json:"row" query:"row"`
	Number int `json:"number" query:"number"`
}

type invitationRequest struct {
	EventID    uint64          `json:"eventId"`
	EventTitle string          `json:"eventTitle"`
	UserEmail  string          `json:"userEmail"`
	Seat       *model.SeatInfo `json:"seatInfo"`
}

// actsFor reports whether the caller may act on behalf of email.
func (h *InvitationHandler) actsFor(c echo.Context, email string) bool {
	return strings.EqualFold(strings.TrimSpace(email), middleware.Email(c)) || middleware.HasRole(c, h.AdminRole)
}

// LockSeat handles POST /invitations/event/:id/lock-seat.
func (h *InvitationHandler) LockSeat(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid event id")
	}
	var req seatRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	lock, err := h.Manager.LockSeat(c.Request().Context(), id, model.SeatInfo{Row: req.Row, Number: req.Number}, middleware.Email(c))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, lock)
}

// ReleaseSeat handles DELETE /invitations/event/:id/release-seat.  The
// seat may come in the body or the query string.
func (h *InvitationHandler) ReleaseSeat(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid event id")
	}
	var req seatRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	released, err := h.Manager.ReleaseSeat(c.Request().Context(), id, model.SeatInfo{Row: req.Row, Number: req.Number}, middleware.Email(c))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"released": released})
}

// OccupiedSeats handles GET /invitations/event/:id/occupied-seats.
func (h *InvitationHandler) OccupiedSeats(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid event id")
	}
	seats, err := h.Manager.OccupiedSeats(c.Request().Context(), id, middleware.Email(c))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, seats)
}

// ByEvent handles GET /invitations/event/:id.
func (h *InvitationHandler) ByEvent(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid event id")
	}
	invs, err := h.Manager.Invitations(c.Request().Context(), id)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, invs)
}

// Stats handles GET /invitations/event/:id/stats.
func (h *InvitationHandler) Stats(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid event id")
	}
	stats, err := h.Manager.InvitationStats(c.Request().Context(), id)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, stats)
}

// Create handles POST /invitations.  An empty userEmail registers the
// caller.  A seat-bound registration consumes the caller's own seat lock,
// so it can only be made for the caller.
func (h *InvitationHandler) Create(c echo.Context) error {
	var req invitationRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.EventID == 0 {
		return badRequest(c, "eventId is required")
	}
	email := req.UserEmail
	if strings.TrimSpace(email) == "" {
		email = middleware.Email(c)
	}
	if !h.actsFor(c, email) {
		return forbidden(c)
	}
	if req.Seat != nil && !strings.EqualFold(strings.TrimSpace(email), middleware.Email(c)) {
		return badRequest(c, "seatInfo can only be used to register yourself")
	}
	inv, err := h.Manager.CreateInvitation(c.Request().Context(), reservation.InvitationRequest{
		EventID:   req.EventID,
		UserEmail: email,
		Seat:      req.Seat,
	})
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, inv)
}

// Check handles GET /invitations/check/:eventId/:userEmail.
func (h *InvitationHandler) Check(c echo.Context) error {
	id, ok := pathID(c, "eventId")
	if !ok {
		return badRequest(c, "invalid event id")
	}
	email := c.Param("userEmail")
	if !h.actsFor(c, email) {
		return forbidden(c)
	}
	registered, err := h.Manager.IsRegistered(c.Request().Context(), id, email)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"registered": registered})
}

// Cancel handles PATCH /invitations/cancel/:eventId/:userEmail.
func (h *InvitationHandler) Cancel(c echo.Context) error {
	id, ok := pathID(c, "eventId")
	if !ok {
		return badRequest(c, "invalid event id")
	}
	email := c.Param("userEmail")
	if !h.actsFor(c, email) {
		return forbidden(c)
	}
	if err := h.Manager.CancelInvitation(c.Request().Context(), id, email); err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"cancelled": true})
}

// Confirm handles PATCH /invitations/:id/confirm.
func (h *InvitationHandler) Confirm(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid invitation id")
	}
	inv, err := h.Manager.ConfirmInvitation(c.Request().Context(), id)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, inv)
}
