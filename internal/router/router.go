// Package router defines how HTTP routes are registered for the API.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/avelsk/counselling-booking/internal/config"
	"github.com/avelsk/counselling-booking/internal/handler"
	"github.com/avelsk/counselling-booking/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication.
// Currently the health check and the public session browse endpoints.
func RegisterRoutes(e *echo.Echo, s *handler.SessionHandler) {
	e.GET("/healthz", handler.Health)
	// Sessions are browsable without an account so prospective clients
	// can see availability before registering.
	e.GET("/v1/sessions", s.ListSessions)
	e.GET("/v1/sessions/:id", s.GetSession)
}

// RegisterAuth registers all authentication-related routes.
// Unauthenticated operations live under /v1/auth.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.Use(middleware.RequireRole("ADMIN", "USER"))
	auth.GET("/me", a.Me)
	auth.POST("/auth/logout-all", a.LogoutAll)
}

// RegisterBooking registers the booking and session-management routes.
// All of them require a valid access token; session creation and the
// per-session booking listing additionally require the ADMIN role.
// Booking creation is rate limited per user via Redis when available.
func RegisterBooking(e *echo.Echo, b *handler.BookingHandler, s *handler.SessionHandler, jwtSecret string, rlCfg config.RateLimitConfig, rdb *redis.Client) {
	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.Use(middleware.RequireRole("ADMIN", "USER"))

	auth.POST("/sessions/:id/bookings", b.CreateBooking, middleware.RateLimit(rlCfg, rdb))
	auth.GET("/my-bookings", b.ListMyBookings)
	auth.GET("/bookings/:id", b.GetBooking)

	admin := e.Group("/v1")
	admin.Use(middleware.JWTAuth(jwtSecret))
	admin.Use(middleware.RequireRole("ADMIN"))

	admin.POST("/sessions", s.CreateSession)
	admin.GET("/sessions/:id/bookings", b.ListSessionBookings)
}
