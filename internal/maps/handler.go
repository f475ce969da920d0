package maps

import (
	"net/http"

	"tanktally_backend/internal/ports"
	"tanktally_backend/internal/resolver"
	"tanktally_backend/platform/httpkit"
	"tanktally_backend/platform/sanitize"
	"tanktally_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const msgInvalidQuery = "invalid query"

// Handler exposes stateless lookups for clients that keep their own state.
type Handler struct {
	geocoder ports.Geocoder
	router   ports.Router
	resolver *resolver.Resolver
	val      *validator.Validator
}

func NewHandler(geocoder ports.Geocoder, router ports.Router, res *resolver.Resolver, val *validator.Validator) *Handler {
	return &Handler{geocoder: geocoder, router: router, resolver: res, val: val}
}

// Suggest handles GET /api/v1/maps/suggest?q=...
func (h *Handler) Suggest(c *gin.Context) {
	var req SuggestRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidQuery, nil)
		return
	}
	req.Query = sanitize.Text(req.Query)
	if httpkit.HandleError(c, h.val.Validate(req)) {
		return
	}
	if req.SessionToken == "" {
		req.SessionToken = uuid.NewString()
	}

	results, err := h.geocoder.Suggest(c.Request.Context(), req.Query, req.SessionToken)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, SuggestResponse{SessionToken: req.SessionToken, Suggestions: results})
}

// Retrieve handles GET /api/v1/maps/retrieve/:id
func (h *Handler) Retrieve(c *gin.Context) {
	var req RetrieveRequest
	if err := c.ShouldBindUri(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidQuery, nil)
		return
	}
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidQuery, nil)
		return
	}
	if httpkit.HandleError(c, h.val.Validate(req)) {
		return
	}

	coords, err := h.resolver.Resolve(c.Request.Context(), req.ID, req.SessionToken)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, RetrieveResponse{ID: req.ID, Coordinates: coords})
}

// Route handles GET /api/v1/maps/route?fromLon=&fromLat=&toLon=&toLat=
func (h *Handler) Route(c *gin.Context) {
	var req RouteRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidQuery, nil)
		return
	}
	if httpkit.HandleError(c, h.val.Validate(req)) {
		return
	}

	start, end := req.endpoints()
	geometry, err := h.router.Route(c.Request.Context(), start, end)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, RouteResponse{Start: start, End: end, Geometry: geometry.Pairs()})
}
