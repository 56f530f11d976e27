package router // router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/theater-seat-reservation/internal/handler"
	"github.com/iliyamo/theater-seat-reservation/internal/middleware"
)

// Setup installs the server-wide pieces: request ids, the access log,
// panic recovery, the JSON error handler and the request validator.
func Setup(e *echo.Echo) {
	e.HideBanner = true
	e.HTTPErrorHandler = middleware.ErrorHandler
	e.Validator = handler.NewValidator()
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger())
	e.Use(echomw.Recover())
}

// RegisterRoutes registers the liveness and readiness probes.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health)
	if db != nil {
		e.GET("/readyz", handler.Ready(db))
	}
}

// RegisterPublic registers the unauthenticated browse routes.  Theater and
// event listings go through the response cache; availability and the live
// feed never do.
func RegisterPublic(e *echo.Echo, p *handler.PublicHandler, live *handler.LiveHandler, cache *middleware.ResponseCache) {
	cached := cache.Middleware()

	e.GET("/v1/theaters", p.ListTheaters, cached)
	e.GET("/v1/theaters/:id", p.GetTheater, cached)
	e.GET("/v1/events", p.ListEvents, cached)
	e.GET("/v1/events/:id", p.GetEvent, cached)

	e.GET("/v1/events/:id/availability", p.Availability)
	if live != nil {
		e.GET("/v1/events/:id/live", live.Subscribe)
	}
}

// RegisterCustomer registers the booking routes.  Every route needs a valid
// access token and is rate limited per user.  Middleware is attached per
// route so unknown /v1 paths still answer 404 rather than 401.
func RegisterCustomer(e *echo.Echo, b *handler.BookingHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
	mw := []echo.MiddlewareFunc{
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(middleware.RoleCustomer, middleware.RoleOwner, middleware.RoleAdmin),
	}
	if limiter != nil {
		mw = append(mw, limiter)
	}
	g := e.Group("/v1")
	g.POST("/events/:id/bookings", b.Create, mw...)
	g.GET("/bookings", b.ListMine, mw...)
	g.GET("/bookings/:id", b.GetMine, mw...)
	g.DELETE("/bookings/:id", b.CancelMine, mw...)
}

// RegisterAdmin registers theater, event and booking administration under
// /v1/admin for the OWNER and ADMIN roles.
func RegisterAdmin(e *echo.Echo, a *handler.AdminHandler, b *handler.BookingHandler, jwtSecret string) {
	g := e.Group(
		"/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(middleware.RoleOwner, middleware.RoleAdmin),
	)

	// ---- Theaters ----
	g.POST("/theaters", a.CreateTheater)
	g.PUT("/theaters/:id", a.UpdateTheater)

	// ---- Events ----
	g.POST("/events", a.CreateEvent)
	g.PUT("/events/:id/seating", a.UpdateEventSeating)
	g.GET("/events/:id/bookings", b.ListForEvent)

	// ---- Bookings ----
	g.GET("/bookings/:id", b.AdminGet)
	g.DELETE("/bookings/:id", b.AdminCancel)
}
