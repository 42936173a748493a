// Package main provides the API server entry point.
package main

import (
	"github.com/mixgram/mixgram/internal/infrastructure/httpserver"
	"github.com/mixgram/mixgram/internal/middleware"
)

// SetupRoutes configures all API routes and middleware chains.
func SetupRoutes(c *Container) *httpserver.Server {
	server := httpserver.NewServer(httpserver.ServerConfig{
		Host:            c.Config.Server.Host,
		Port:            c.Config.Server.Port,
		ReadTimeout:     c.Config.Server.ReadTimeout,
		WriteTimeout:    c.Config.Server.WriteTimeout,
		ShutdownTimeout: c.Config.Server.ShutdownTimeout,
	}, c.Logger)

	e := server.Echo()

	e.Use(middleware.Recovery(c.Logger))
	e.Use(middleware.Logging(middleware.LoggingConfig{
		Logger:    c.Logger,
		SkipPaths: []string{"/health", "/ready"},
	}))
	e.Use(middleware.CORS(c.Config.Server.AllowedOrigins...))
	e.Use(middleware.Auth(middleware.AuthConfig{
		Logger:            c.Logger,
		TokenValidator:    c.TokenValidator,
		SkipPaths:         []string{"/health", "/ready", "/ws"},
		TrustUserIDHeader: c.Config.App.IsMockMode(),
	}))

	server.HealthCheck("/health")
	server.Ready("/ready", c.IsReady)

	api := e.Group("/api/v1")
	c.MessagingHandler.RegisterRoutes(api)

	// The WebSocket handler authenticates on its own: browsers cannot
	// attach Authorization headers to upgrade requests, so the token
	// arrives as a query parameter instead.
	c.WSHandler.RegisterRoutes(e)

	return server
}
