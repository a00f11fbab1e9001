// Package router declares the HTTP routes of the API.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/calculations-api/internal/handler"
)

// Deps are the handlers and middleware the routes are built from.
type Deps struct {
	Auth         *handler.AuthHandler
	Calculations *handler.CalculationHandler

	// Guard requires a valid bearer access token.
	Guard echo.MiddlewareFunc
	// Limiter throttles the credential endpoints.
	Limiter echo.MiddlewareFunc
}

// RegisterRoutes mounts every route on e.
func RegisterRoutes(e *echo.Echo, d Deps) {
	if d.Limiter == nil {
		d.Limiter = func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}

	e.GET("/health", handler.Health)

	a := e.Group("/auth")
	a.POST("/register", d.Auth.Register, d.Limiter)
	a.POST("/login", d.Auth.Login, d.Limiter)
	a.POST("/token", d.Auth.Token, d.Limiter)
	a.POST("/refresh", d.Auth.Refresh)
	a.POST("/logout", d.Auth.Logout, d.Guard)
	a.GET("/me", d.Auth.Me, d.Guard)

	calc := e.Group("/calculations", d.Guard)
	calc.POST("", d.Calculations.Create)
	calc.GET("", d.Calculations.List)
	calc.GET("/:id", d.Calculations.Get)
	calc.PUT("/:id", d.Calculations.Update)
	calc.DELETE("/:id", d.Calculations.Delete)
}
