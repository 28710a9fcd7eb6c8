package router

import (
	"github.com/labstack/echo/v4"
)

// RegisterEvents registers event CRUD, the change stream and the waitlist
// routes under /events.  Every route needs a valid JWT; writes to events
// and redistribution need the admin role.
func RegisterEvents(e *echo.Echo, h Handlers, o Options) {
	g := e.Group("/events", authed(o)...)

	g.GET("", h.Events.List)
	if o.Cache != nil {
		g.GET("/:id", h.Events.Get, o.Cache)
	} else {
		g.GET("/:id", h.Events.Get)
	}
	g.POST("", h.Events.Create, admin(o))
	g.PUT("/:id", h.Events.Update, admin(o))
	g.DELETE("/:id", h.Events.Delete, admin(o))

	// the stream is long-lived, so it stays outside the rate limiter
	e.GET("/events/:id/stream", h.Stream.Stream, authed(Options{JWTSecret: o.JWTSecret})...)

	g.POST("/:id/waitlist/join", h.Waitlist.Join)
	g.DELETE("/:id/waitlist/leave", h.Waitlist.Leave)
	g.GET("/:id/waitlist/position", h.Waitlist.Position)
	g.GET("/:id/waitlist/count", h.Waitlist.Count)
	g.POST("/:id/waitlist/confirm", h.Waitlist.Confirm)
	g.POST("/:id/waitlist/redistribute/:slots", h.Waitlist.Redistribute, admin(o))
}
