package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-seat-manager/internal/handler"
)

// RegisterInvitations registers seat locking and registration routes under
// /invitations.  Listing, stats and confirmation are admin only; cancel
// and check are allowed for the user concerned or an admin, which the
// handler enforces.
func RegisterInvitations(e *echo.Echo, h *handler.InvitationHandler, o Options) {
	g := e.Group("/invitations", authed(o)...)

	g.POST("/event/:id/lock-seat", h.LockSeat)
	g.DELETE("/event/:id/release-seat", h.ReleaseSeat)
	g.GET("/event/:id/occupied-seats", h.OccupiedSeats)
	g.GET("/event/:id", h.ByEvent, admin(o))
	g.GET("/event/:id/stats", h.Stats, admin(o))

	g.POST("", h.Create)
	g.GET("/check/:eventId/:userEmail", h.Check)
	g.PATCH("/cancel/:eventId/:userEmail", h.Cancel)
	g.PATCH("/:id/confirm", h.Confirm, admin(o))
}
