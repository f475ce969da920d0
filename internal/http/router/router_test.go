package router

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	apphttp "tanktally_backend/internal/http"
	"tanktally_backend/platform/httpkit"
	"tanktally_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testConfig struct {
	allowAll bool
	origins  []string
}

func (c testConfig) GetHTTPAddr() string      { return ":0" }
func (c testConfig) GetCORSAllowAll() bool    { return c.allowAll }
func (c testConfig) GetCORSOrigins() []string { return c.origins }
func (c testConfig) GetRedisURL() string      { return "" }
func (c testConfig) GetAPIRateLimit() string  { return "2-M" }

type pingModule struct{}

func (pingModule) Name() string { return "ping" }

func (pingModule) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.V1.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
}

type healthFunc func(ctx context.Context) error

func (f healthFunc) Ping(ctx context.Context) error { return f(ctx) }

func newApp(health apphttp.HealthChecker) *apphttp.App {
	return &apphttp.App{
		Config:  testConfig{origins: []string{"http://localhost:3000"}},
		Logger:  logger.Discard(),
		Health:  health,
		Modules: []apphttp.Module{pingModule{}},
	}
}

func do(engine *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func TestModulesMountUnderV1(t *testing.T) {
	engine := New(newApp(nil))

	rec := do(engine, httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pong", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(httpkit.HeaderRequestID))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestHealthReflectsChecker(t *testing.T) {
	healthy := New(newApp(healthFunc(func(context.Context) error { return nil })))
	assert.Equal(t, http.StatusOK, do(healthy, httptest.NewRequest(http.MethodGet, "/api/health", nil)).Code)

	down := New(newApp(healthFunc(func(context.Context) error { return errors.New("redis down") })))
	assert.Equal(t, http.StatusServiceUnavailable, do(down, httptest.NewRequest(http.MethodGet, "/api/health", nil)).Code)
}

func TestCORSAllowsConfiguredOrigin(t *testing.T) {
	engine := New(newApp(nil))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := do(engine, req)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = do(engine, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRateLimitAppliesToAPIOnly(t *testing.T) {
	limit, err := httpkit.NewAPIRateLimiter("2-M", nil, logger.Discard())
	require.NoError(t, err)
	app := newApp(nil)
	app.RateLimit = limit
	engine := New(app)

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, do(engine, httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil)).Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, do(engine, httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil)).Code)
	assert.Equal(t, http.StatusOK, do(engine, httptest.NewRequest(http.MethodGet, "/api/health", nil)).Code)
}
