package planner

import (
	apphttp "tanktally_backend/internal/http"
	"tanktally_backend/platform/validator"
)

// Module wires the planner HTTP routes.
type Module struct {
	handler *Handler
}

func NewModule(registry *Registry, val *validator.Validator) *Module {
	return &Module{handler: NewHandler(registry, val)}
}

func (m *Module) Name() string {
	return "planner"
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.V1.Group("/planners")
	if ctx.CreateRateLimiter != nil {
		group.POST("", ctx.CreateRateLimiter.RateLimit(), m.handler.Create)
	} else {
		group.POST("", m.handler.Create)
	}
	group.GET("/:id", m.handler.Get)
	group.DELETE("/:id", m.handler.Delete)
	group.PUT("/:id/fields/:field/text", m.handler.SetText)
	group.POST("/:id/fields/:field/selection", m.handler.Select)
	group.POST("/:id/session/rotate", m.handler.RotateSession)
}

var _ apphttp.Module = (*Module)(nil)
