// Package http provides HTTP server infrastructure including the Module interface
// that all domain modules must implement for route registration.
package http

import (
	"tanktally_backend/platform/config"
	"tanktally_backend/platform/httpkit"
	"tanktally_backend/platform/logger"

	"github.com/gin-gonic/gin"
)

// Module represents a bounded context that can register its HTTP routes.
// Each domain module implements this interface to encapsulate its own
// route setup, keeping the main router decoupled from specific endpoints.
type Module interface {
	// Name returns the module's identifier for logging purposes.
	Name() string
	// RegisterRoutes mounts the module's routes on the provided router group.
	RegisterRoutes(ctx *RouterContext)
}

// RouterContext provides shared dependencies for module route registration.
type RouterContext struct {
	// Engine is the root Gin engine for modules that need engine-level access.
	Engine *gin.Engine
	// V1 is the /api/v1 route group.
	V1 *gin.RouterGroup
	// Config is the HTTP configuration.
	Config config.HTTPConfig
	// Log is the structured logger.
	Log *logger.Logger
	// CreateRateLimiter is the stricter per-IP limiter for routes that start
	// provider work. May be nil.
	CreateRateLimiter *httpkit.IPRateLimiter
}
