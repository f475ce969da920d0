package stream

import (
	apphttp "tanktally_backend/internal/http"
)

// Module wires the planner event stream route.
type Module struct {
	svc      *Service
	snapshot SnapshotFunc
}

func NewModule(svc *Service, snapshot SnapshotFunc) *Module {
	return &Module{svc: svc, snapshot: snapshot}
}

func (m *Module) Name() string {
	return "stream"
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.V1.GET("/planners/:id/events", m.svc.Handler(m.snapshot))
}

var _ apphttp.Module = (*Module)(nil)
