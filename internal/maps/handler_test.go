package maps

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"tanktally_backend/internal/geo"
	apphttp "tanktally_backend/internal/http"
	"tanktally_backend/internal/ports/portstest"
	"tanktally_backend/internal/resolver"
	"tanktally_backend/platform/apperr"
	"tanktally_backend/platform/logger"
	"tanktally_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(geocoder *portstest.Geocoder, router *portstest.Router) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	NewModule(geocoder, router, resolver.New(geocoder, logger.Discard()), validator.New()).
		RegisterRoutes(&apphttp.RouterContext{Engine: engine, V1: engine.Group("/api/v1")})
	return engine
}

func get(engine *gin.Engine, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestSuggestIssuesSessionToken(t *testing.T) {
	geocoder := portstest.NewGeocoder()
	geocoder.OnSuggest("Boston", []geo.Suggestion{{ID: "s-bos", Label: "Boston, MA"}}, nil)
	engine := newEngine(geocoder, portstest.NewRouter())

	rec := get(engine, "/api/v1/maps/suggest?q=Boston")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp SuggestResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Suggestions, 1)
	assert.Equal(t, "s-bos", resp.Suggestions[0].ID)
	assert.NotEmpty(t, resp.SessionToken)
	assert.Equal(t, resp.SessionToken, geocoder.Queries()[0].Token)

	rec = get(engine, "/api/v1/maps/suggest?q=Boston&sessionToken=tok-7")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "tok-7", geocoder.Queries()[1].Token)
}

func TestSuggestRejectsMissingQuery(t *testing.T) {
	engine := newEngine(portstest.NewGeocoder(), portstest.NewRouter())
	assert.Equal(t, http.StatusBadRequest, get(engine, "/api/v1/maps/suggest").Code)
	assert.Equal(t, http.StatusBadRequest, get(engine, "/api/v1/maps/suggest?q=%3Cb%3E%3C%2Fb%3E").Code)
}

func TestSuggestMapsProviderErrors(t *testing.T) {
	geocoder := portstest.NewGeocoder()
	geocoder.OnSuggest("Bos", nil, apperr.Provider("upstream failed"))
	engine := newEngine(geocoder, portstest.NewRouter())

	assert.Equal(t, http.StatusBadGateway, get(engine, "/api/v1/maps/suggest?q=Bos").Code)
}

func TestRetrieve(t *testing.T) {
	geocoder := portstest.NewGeocoder()
	geocoder.OnRetrieve("s-bos", geo.Coordinates{Longitude: -71.06, Latitude: 42.36}, nil)
	engine := newEngine(geocoder, portstest.NewRouter())

	rec := get(engine, "/api/v1/maps/retrieve/s-bos?sessionToken=tok-1")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp RetrieveResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, -71.06, resp.Coordinates.Longitude)
	assert.Equal(t, "tok-1", geocoder.Retrieves()[0].Token)

	assert.Equal(t, http.StatusNotFound, get(engine, "/api/v1/maps/retrieve/unknown").Code)
}

func TestRoute(t *testing.T) {
	engine := newEngine(portstest.NewGeocoder(), portstest.NewRouter())

	rec := get(engine, "/api/v1/maps/route?fromLon=-71.06&fromLat=42.36&toLon=-71.41&toLat=41.82")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp RouteResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, [][2]float64{{-71.06, 42.36}, {-71.41, 41.82}}, resp.Geometry)

	assert.Equal(t, http.StatusBadRequest, get(engine, "/api/v1/maps/route?fromLon=-71.06&fromLat=42.36").Code)
	assert.Equal(t, http.StatusBadRequest, get(engine, "/api/v1/maps/route?fromLon=200&fromLat=42.36&toLon=1&toLat=1").Code)
}
