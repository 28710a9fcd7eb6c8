package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iliyamo/event-seat-manager/internal/handler"
	"github.com/iliyamo/event-seat-manager/internal/middleware"
)

// Handlers bundles the HTTP handlers served by the API.
type Handlers struct {
	Events      *handler.EventHandler
	Invitations *handler.InvitationHandler
	Waitlist    *handler.WaitlistHandler
	Stream      *handler.StreamHandler
}

// Options configures authentication and the optional Redis-backed
// middleware.  A nil RateLimit or Cache is skipped.
type Options struct {
	JWTSecret string
	AdminRole string
	RateLimit echo.MiddlewareFunc
	Cache     echo.MiddlewareFunc
}

// RegisterRoutes registers the unauthenticated operational endpoints.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health(db))
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// Register wires every API route onto e.
func Register(e *echo.Echo, db handler.Pinger, h Handlers, o Options) {
	RegisterRoutes(e, db)
	RegisterEvents(e, h, o)
	RegisterInvitations(e, h.Invitations, o)
}

// authed returns the middleware chain shared by all authenticated routes.
func authed(o Options) []echo.MiddlewareFunc {
	mws := []echo.MiddlewareFunc{middleware.JWTAuth(o.JWTSecret)}
	if o.RateLimit != nil {
		mws = append(mws, o.RateLimit)
	}
	return mws
}

func admin(o Options) echo.MiddlewareFunc {
	return middleware.RequireRole(o.AdminRole)
}
