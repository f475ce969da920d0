package planner

import (
	"net/http"

	"tanktally_backend/internal/geo"
	"tanktally_backend/internal/planner/transport"
	"tanktally_backend/platform/httpkit"
	"tanktally_backend/platform/sanitize"
	"tanktally_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

const (
	msgInvalidRequest = "invalid request"
	statusAccepted    = "accepted"
)

// Handler exposes planner operations over HTTP.
type Handler struct {
	registry *Registry
	val      *validator.Validator
}

func NewHandler(registry *Registry, val *validator.Validator) *Handler {
	return &Handler{registry: registry, val: val}
}

// Create handles POST /api/v1/planners
func (h *Handler) Create(c *gin.Context) {
	p, res, err := h.registry.Create(c.Request.Context(), c.ClientIP())
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, transport.CreatePlannerResponse{
		PlannerID: p.ID(),
		View:      res.View,
		Source:    string(res.Source),
		Region:    res.Region,
	})
}

// Get handles GET /api/v1/planners/:id
func (h *Handler) Get(c *gin.Context) {
	p, ok := h.planner(c)
	if !ok {
		return
	}

	snap, err := p.Snapshot(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, snap)
}

// SetText handles PUT /api/v1/planners/:id/fields/:field/text
func (h *Handler) SetText(c *gin.Context) {
	p, field, ok := h.plannerField(c)
	if !ok {
		return
	}

	var req transport.SetTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if httpkit.HandleError(c, h.val.Validate(req)) {
		return
	}

	if httpkit.HandleError(c, p.SetText(c.Request.Context(), field, sanitize.Text(*req.Text))) {
		return
	}
	httpkit.JSON(c, http.StatusAccepted, transport.AcceptedResponse{PlannerID: p.ID(), Field: field, Status: statusAccepted})
}

// Select handles POST /api/v1/planners/:id/fields/:field/selection
func (h *Handler) Select(c *gin.Context) {
	p, field, ok := h.plannerField(c)
	if !ok {
		return
	}

	var req transport.SelectSuggestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if httpkit.HandleError(c, h.val.Validate(req)) {
		return
	}

	if httpkit.HandleError(c, p.Select(c.Request.Context(), field, req.SuggestionID)) {
		return
	}
	httpkit.JSON(c, http.StatusAccepted, transport.AcceptedResponse{PlannerID: p.ID(), Field: field, Status: statusAccepted})
}

// RotateSession handles POST /api/v1/planners/:id/session/rotate
func (h *Handler) RotateSession(c *gin.Context) {
	p, ok := h.planner(c)
	if !ok {
		return
	}

	token, err := p.RotateSession(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.RotateSessionResponse{PlannerID: p.ID(), Session: token})
}

// Delete handles DELETE /api/v1/planners/:id
func (h *Handler) Delete(c *gin.Context) {
	var uri transport.PlannerURI
	if !h.bindURI(c, &uri) {
		return
	}
	if httpkit.HandleError(c, h.registry.Delete(uri.ID)) {
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) planner(c *gin.Context) (*Planner, bool) {
	var uri transport.PlannerURI
	if !h.bindURI(c, &uri) {
		return nil, false
	}
	p, err := h.registry.Get(uri.ID)
	if httpkit.HandleError(c, err) {
		return nil, false
	}
	return p, true
}

func (h *Handler) plannerField(c *gin.Context) (*Planner, geo.FieldID, bool) {
	var uri transport.FieldURI
	if !h.bindURI(c, &uri) {
		return nil, "", false
	}
	field, err := geo.ParseFieldID(uri.Field)
	if httpkit.HandleError(c, err) {
		return nil, "", false
	}
	p, err := h.registry.Get(uri.ID)
	if httpkit.HandleError(c, err) {
		return nil, "", false
	}
	return p, field, true
}

func (h *Handler) bindURI(c *gin.Context, out interface{}) bool {
	if err := c.ShouldBindUri(out); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return false
	}
	return !httpkit.HandleError(c, h.val.Validate(out))
}
