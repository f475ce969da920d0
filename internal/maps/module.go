package maps

import (
	apphttp "tanktally_backend/internal/http"
	"tanktally_backend/internal/ports"
	"tanktally_backend/internal/resolver"
	"tanktally_backend/platform/validator"
)

// Module wires the stateless lookup routes.
type Module struct {
	handler *Handler
}

func NewModule(geocoder ports.Geocoder, router ports.Router, res *resolver.Resolver, val *validator.Validator) *Module {
	return &Module{handler: NewHandler(geocoder, router, res, val)}
}

func (m *Module) Name() string {
	return "maps"
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.V1.Group("/maps")
	group.GET("/suggest", m.handler.Suggest)
	group.GET("/retrieve/:id", m.handler.Retrieve)
	group.GET("/route", m.handler.Route)
}

var _ apphttp.Module = (*Module)(nil)
