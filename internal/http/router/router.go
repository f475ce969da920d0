// Package router assembles the Gin engine from the application modules.
package router

import (
	"context"
	"net/http"
	"time"

	apphttp "tanktally_backend/internal/http"
	"tanktally_backend/platform/httpkit"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

const healthTimeout = 2 * time.Second

// New builds the HTTP engine with shared middleware, the health endpoint and
// every module's routes under /api/v1.
func New(app *apphttp.App) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(httpkit.RequestID())
	engine.Use(httpkit.RequestLogger(app.Logger))
	engine.Use(httpkit.SecurityHeaders())
	engine.Use(cors.New(corsConfig(app.Config)))

	engine.GET("/api/health", health(app.Health))

	v1 := engine.Group("/api/v1")
	if app.RateLimit != nil {
		v1.Use(app.RateLimit)
	}

	ctx := &apphttp.RouterContext{
		Engine: engine,
		V1:     v1,
		Config: app.Config,
		Log:    app.Logger,

		CreateRateLimiter: app.CreateRateLimiter,
	}
	for _, m := range app.Modules {
		m.RegisterRoutes(ctx)
		app.Logger.Debug("module registered", "module", m.Name())
	}

	return engine
}

func corsConfig(cfg apphttp.RouterConfig) cors.Config {
	c := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", httpkit.HeaderRequestID},
		ExposeHeaders:    []string{httpkit.HeaderRequestID},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	switch origins := cfg.GetCORSOrigins(); {
	case cfg.GetCORSAllowAll():
		c.AllowAllOrigins = true
	case len(origins) == 0:
		c.AllowOriginFunc = func(string) bool { return false }
	default:
		c.AllowOrigins = origins
	}
	return c
}

func health(checker apphttp.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if checker != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
			defer cancel()
			if err := checker.Ping(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
