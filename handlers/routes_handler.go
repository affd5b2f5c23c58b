package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/paulmach/orb/maptile"

	"github.com/mohamedthameursassi/saferoute/engine"
	"github.com/mohamedthameursassi/saferoute/estimator"
	"github.com/mohamedthameursassi/saferoute/models"
)

const (
	defaultHeatmapZoom = 12
	maxHeatmapZoom     = 20
)

// Geocoder resolves a free-text place.
type Geocoder interface {
	Geocode(ctx context.Context, query string) (models.Place, error)
}

type RouteHandler struct {
	engine   *engine.Engine
	geocoder Geocoder
}

func NewRouteHandler(e *engine.Engine, geocoder Geocoder) *RouteHandler {
	return &RouteHandler{
		engine:   e,
		geocoder: geocoder,
	}
}

func (h *RouteHandler) RegisterRoutes(r gin.IRouter) {
	r.GET("/health", h.Health)
	r.GET("/mappings", h.Mappings)

	api := r.Group("/api")
	api.POST("/safe-route", h.SafeRoute)
	api.POST("/routes/alternatives", h.Alternatives)
	api.POST("/risk", h.Risk)
	api.GET("/risk/heatmap", h.Heatmap)
	api.GET("/geocode", h.Geocode)
}

func (h *RouteHandler) Health(c *gin.Context) {
	snap := h.engine.Snapshot()
	c.JSON(http.StatusOK, models.HealthResponse{
		Status:          "healthy",
		ModelLoaded:     snap.ModelLoaded(),
		RiskPoints:      snap.Surface.Len(),
		SnapshotVersion: snap.Version,
	})
}

func (h *RouteHandler) Mappings(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.Snapshot().Encoder.Mapping())
}

func (h *RouteHandler) SafeRoute(c *gin.Context) {
	q, ok := h.bindQuery(c)
	if !ok {
		return
	}

	log.Printf("Safe route request: (%.6f, %.6f) -> (%.6f, %.6f), weather=%q",
		q.Origin.Latitude, q.Origin.Longitude, q.Destination.Latitude, q.Destination.Longitude, q.Weather)

	res, err := h.engine.ComputeSafeRoute(c.Request.Context(), q)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *RouteHandler) Alternatives(c *gin.Context) {
	q, ok := h.bindQuery(c)
	if !ok {
		return
	}

	res, err := h.engine.Alternatives(c.Request.Context(), q)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *RouteHandler) Risk(c *gin.Context) {
	var req models.RiskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := validateCoordinates(*req.Latitude, *req.Longitude); err != nil {
		badRequest(c, err.Error())
		return
	}

	cond := estimator.Conditions{
		Weather: req.Weather,
		Region:  req.Region,
		Place:   req.Place,
	}
	if req.At != nil {
		cond.At = *req.At
	}
	c.JSON(http.StatusOK, h.engine.AssessPoint(c.Request.Context(), *req.Latitude, *req.Longitude, cond))
}

func (h *RouteHandler) Heatmap(c *gin.Context) {
	zoom := defaultHeatmapZoom
	if z := c.Query("zoom"); z != "" {
		v, err := strconv.Atoi(z)
		if err != nil || v < 0 || v > maxHeatmapZoom {
			badRequest(c, fmt.Sprintf("zoom must be an integer between 0 and %d", maxHeatmapZoom))
			return
		}
		zoom = v
	}

	cells := h.engine.Snapshot().Surface.Heatmap(maptile.Zoom(zoom))
	resp := models.HeatmapResponse{
		Zoom:  uint32(zoom),
		Cells: make([]models.HeatmapCell, len(cells)),
		Count: len(cells),
	}
	for i, cell := range cells {
		resp.Cells[i] = models.HeatmapCell{
			X:        cell.Tile.X,
			Y:        cell.Tile.Y,
			Count:    cell.Count,
			MaxScore: cell.MaxScore,
			Lat:      cell.Centroid.Lat(),
			Lon:      cell.Centroid.Lon(),
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (h *RouteHandler) Geocode(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		badRequest(c, "query parameter q is required")
		return
	}
	p, err := h.geocode(c.Request.Context(), q)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *RouteHandler) bindQuery(c *gin.Context) (engine.Query, bool) {
	var req models.SafeRouteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Printf("ERROR: Failed to parse request: %v", err)
		badRequest(c, err.Error())
		return engine.Query{}, false
	}

	origin, err := h.resolve(c.Request.Context(), "origin", req.Origin)
	if err != nil {
		writeError(c, err)
		return engine.Query{}, false
	}
	dest, err := h.resolve(c.Request.Context(), "destination", req.Destination)
	if err != nil {
		writeError(c, err)
		return engine.Query{}, false
	}

	q := engine.Query{
		Origin:      origin,
		Destination: dest,
		Weather:     req.Weather,
	}
	if req.DepartureTime != nil {
		q.At = *req.DepartureTime
	}
	return q, true
}

// resolve turns an endpoint into a place, geocoding it when no coordinates
// were given. Explicit region and place names win over geocoded ones.
func (h *RouteHandler) resolve(ctx context.Context, name string, e models.Endpoint) (models.Place, error) {
	var p models.Place
	switch {
	case e.HasCoordinates():
		if err := validateCoordinates(*e.Latitude, *e.Longitude); err != nil {
			return models.Place{}, validationError{fmt.Sprintf("%s: %v", name, err)}
		}
		p.Latitude, p.Longitude = *e.Latitude, *e.Longitude
	case strings.TrimSpace(e.Query) != "":
		var err error
		if p, err = h.geocode(ctx, e.Query); err != nil {
			return models.Place{}, fmt.Errorf("%s: %w", name, err)
		}
	default:
		return models.Place{}, validationError{name + ": coordinates or query required"}
	}

	if e.Region != "" {
		p.Region = strings.ToUpper(e.Region)
	}
	if e.Place != "" {
		p.Place = strings.ToUpper(e.Place)
	}
	return p, nil
}

func (h *RouteHandler) geocode(ctx context.Context, q string) (models.Place, error) {
	if h.geocoder == nil {
		return models.Place{}, fmt.Errorf("%w: geocoding disabled", engine.ErrLocationNotFound)
	}
	ctx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()
	return h.geocoder.Geocode(ctx, q)
}

func validateCoordinates(lat, lon float64) error {
	if lat < -90 || lat > 90 {
		return fmt.Errorf("latitude %v out of range", lat)
	}
	if lon < -180 || lon > 180 {
		return fmt.Errorf("longitude %v out of range", lon)
	}
	return nil
}

type validationError struct{ msg string }

func (e validationError) Error() string { return e.msg }

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg, "code": "invalid_request"})
}

// writeError maps engine errors onto HTTP statuses.
func writeError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "internal_error"
	var verr validationError
	switch {
	case errors.As(err, &verr):
		status, code = http.StatusBadRequest, "invalid_request"
	case errors.Is(err, engine.ErrLocationNotFound):
		status, code = http.StatusNotFound, "location_not_found"
	case errors.Is(err, engine.ErrNodeNotFound):
		status, code = http.StatusNotFound, "node_not_found"
	case errors.Is(err, engine.ErrNoPathFound):
		status, code = http.StatusUnprocessableEntity, "no_path_found"
	case errors.Is(err, engine.ErrNetworkUnavailable):
		status, code = http.StatusBadGateway, "network_unavailable"
	case errors.Is(err, engine.ErrTimeout):
		status, code = http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, context.Canceled):
		status, code = 499, "canceled"
	}
	c.JSON(status, gin.H{"error": err.Error(), "code": code})
}
