package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"review-insights/internal/api/dto"
	"review-insights/internal/api/service"
	"review-insights/internal/entity"
	"review-insights/pkg/logger"
)

// ScraperHandler handles HTTP requests for scrape jobs.
type ScraperHandler struct {
	jobService   service.ScrapeJobService
	pollInterval time.Duration
	logger       *logger.Logger
}

// NewScraperHandler creates a new ScraperHandler. pollInterval controls how
// often the progress stream re-reads job state.
func NewScraperHandler(jobService service.ScrapeJobService, pollInterval time.Duration, logger *logger.Logger) *ScraperHandler {
	return &ScraperHandler{jobService: jobService, pollInterval: pollInterval, logger: logger}
}

// RegisterRoutes registers the scrape job routes to the Echo group.
func (h *ScraperHandler) RegisterRoutes(g *echo.Group) {
	g.POST("", h.SubmitJob)
	g.GET("", h.ListJobs)
	g.GET("/stats", h.GetQueueStats)
	g.GET("/:jobId", h.GetJobStatus)
	g.GET("/:jobId/stream", h.StreamJobProgress)
	g.DELETE("/:jobId", h.CancelJob)
}

// SubmitJob starts a scrape-and-analyze run for a location.
func (h *ScraperHandler) SubmitJob(c echo.Context) error {
	var req dto.SubmitScrapeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request payload"})
	}
	req.UserID = requestUserID(c)

	jobResponse, err := h.jobService.Submit(c.Request().Context(), &req)
	if err != nil {
		return writeServiceError(c, err)
	}

	return c.JSON(http.StatusCreated, jobResponse)
}

// GetJobStatus returns the current state of a job.
func (h *ScraperHandler) GetJobStatus(c echo.Context) error {
	statusResponse, err := h.jobService.GetStatus(c.Request().Context(), c.Param("jobId"))
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, statusResponse)
}

// ListJobs returns recent jobs, filtered by location when the location_id
// query parameter is present and by the requesting user otherwise.
func (h *ScraperHandler) ListJobs(c echo.Context) error {
	ctx := c.Request().Context()

	var (
		jobs []dto.JobStatusResponse
		err  error
	)
	if locationID := c.QueryParam("location_id"); locationID != "" {
		jobs, err = h.jobService.ListByLocation(ctx, locationID)
	} else {
		jobs, err = h.jobService.ListByUser(ctx, requestUserID(c))
	}
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, jobs)
}

// GetQueueStats reports job counts per lifecycle state.
func (h *ScraperHandler) GetQueueStats(c echo.Context) error {
	stats, err := h.jobService.QueueStats(c.Request().Context())
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}

// CancelJob cancels a queued or active job. The job is gone afterwards;
// subsequent status lookups return 404.
func (h *ScraperHandler) CancelJob(c echo.Context) error {
	jobID := c.Param("jobId")
	if err := h.jobService.Cancel(c.Request().Context(), jobID, requestUserID(c)); err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": fmt.Sprintf("Job %s cancelled", jobID)})
}

// StreamJobProgress streams job progress as server-sent events until the
// job reaches a terminal state, disappears, or the client disconnects.
func (h *ScraperHandler) StreamJobProgress(c echo.Context) error {
	ctx := c.Request().Context()
	jobID := c.Param("jobId")

	statusResponse, err := h.jobService.GetStatus(ctx, jobID)
	if err != nil {
		return writeServiceError(c, err)
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)

	if err := writeSSE(res, statusResponse); err != nil {
		return nil
	}
	if isTerminalStatus(statusResponse.Status) {
		return nil
	}

	ticker := time.NewTicker(h.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			statusResponse, err = h.jobService.GetStatus(ctx, jobID)
			if err != nil {
				if errors.Is(err, service.ErrNotFound) {
					writeSSEEvent(res, "cancelled", echo.Map{"job_id": jobID})
					return nil
				}
				h.logger.Error("Failed to poll job for stream",
					logger.ErrorField(err),
					logger.StringField("job_id", jobID))
				return nil
			}
			if err := writeSSE(res, statusResponse); err != nil {
				return nil
			}
			if isTerminalStatus(statusResponse.Status) {
				return nil
			}
		}
	}
}

func writeSSE(res *echo.Response, payload interface{}) error {
	return writeSSEEvent(res, "progress", payload)
}

func writeSSEEvent(res *echo.Response, event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(res, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	res.Flush()
	return nil
}

func isTerminalStatus(status string) bool {
	return status == entity.JobStatusCompleted || status == entity.JobStatusFailed
}
