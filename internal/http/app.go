// Package http provides HTTP server infrastructure including module registration.
package http

import (
	"context"

	"tanktally_backend/internal/events"
	"tanktally_backend/platform/config"
	"tanktally_backend/platform/httpkit"
	"tanktally_backend/platform/logger"

	"github.com/gin-gonic/gin"
)

// RouterConfig combines the config interfaces needed by the HTTP router.
type RouterConfig interface {
	config.HTTPConfig
	config.RateLimitConfig
}

// HealthChecker exposes minimal functionality for readiness checks.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// App holds the fully initialized application dependencies.
// This is populated by main.go (the composition root) and passed to the router.
type App struct {
	// Config holds the router configuration.
	Config RouterConfig
	// Logger is the structured logger.
	Logger *logger.Logger
	// Health is used for readiness checks. Nil means always healthy.
	Health HealthChecker
	// EventBus is the domain event bus for cross-module communication.
	EventBus events.Bus
	// RateLimit throttles /api/v1. Nil disables rate limiting.
	RateLimit gin.HandlerFunc
	// CreateRateLimiter is handed to modules for their expensive routes.
	CreateRateLimiter *httpkit.IPRateLimiter
	// Modules contains all HTTP-facing domain modules.
	Modules []Module
}
