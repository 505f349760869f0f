package http

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"review-insights/internal/api/dto"
	"review-insights/internal/api/service"
	"review-insights/pkg/logger"
)

// LocationHandler handles HTTP requests for locations.
type LocationHandler struct {
	locationService service.LocationService
	logger          *logger.Logger
}

// NewLocationHandler creates a new LocationHandler.
func NewLocationHandler(locationService service.LocationService, logger *logger.Logger) *LocationHandler {
	return &LocationHandler{locationService: locationService, logger: logger}
}

// RegisterRoutes registers the location routes to the Echo group.
func (h *LocationHandler) RegisterRoutes(g *echo.Group) {
	g.POST("", h.CreateLocation)
	g.GET("", h.ListLocations)
	g.GET("/insight", h.GetInsightSummary)
	g.GET("/:id", h.GetLocation)
	g.GET("/:id/reviews", h.GetLocationReviews)
	g.GET("/:id/summaries", h.GetLocationSummaries)
	g.GET("/:id/coverage", h.GetLocationCoverage)
}

// CreateLocation registers a location for the requesting user, linking the
// existing record when the place is already known.
func (h *LocationHandler) CreateLocation(c echo.Context) error {
	var req dto.CreateLocationRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request payload"})
	}
	req.UserID = requestUserID(c)

	locationResponse, err := h.locationService.Create(c.Request().Context(), &req)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, locationResponse)
}

// ListLocations returns every location linked to the requesting user.
func (h *LocationHandler) ListLocations(c echo.Context) error {
	locations, err := h.locationService.ListByUser(c.Request().Context(), requestUserID(c))
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, locations)
}

// GetLocation returns one location with its sentiment aggregate.
func (h *LocationHandler) GetLocation(c echo.Context) error {
	locationResponse, err := h.locationService.Get(c.Request().Context(), requestUserID(c), c.Param("id"))
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, locationResponse)
}

// GetLocationReviews returns the location's raw reviews.
func (h *LocationHandler) GetLocationReviews(c echo.Context) error {
	reviews, err := h.locationService.GetReviews(c.Request().Context(), requestUserID(c), c.Param("id"))
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, reviews)
}

// GetLocationSummaries returns the location's per-review analysis results.
func (h *LocationHandler) GetLocationSummaries(c echo.Context) error {
	summaries, err := h.locationService.GetSummaries(c.Request().Context(), requestUserID(c), c.Param("id"))
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, summaries)
}

// GetLocationCoverage reports how much of the location's review set has
// been analyzed.
func (h *LocationHandler) GetLocationCoverage(c echo.Context) error {
	coverage, err := h.locationService.GetCoverage(c.Request().Context(), requestUserID(c), c.Param("id"))
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, coverage)
}

// GetInsightSummary returns the combined insight report for the locations
// named in the location_ids query parameter, or for all of the user's
// locations when the parameter is absent.
func (h *LocationHandler) GetInsightSummary(c echo.Context) error {
	var locationIDs []string
	if raw := c.QueryParam("location_ids"); raw != "" {
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				locationIDs = append(locationIDs, id)
			}
		}
	}

	summary, err := h.locationService.InsightSummary(c.Request().Context(), requestUserID(c), locationIDs)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, summary)
}
