package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apidomain "github.com/cuongbtq/file-processor/internal/api/domain"
	"github.com/cuongbtq/file-processor/internal/api/dto"
	"github.com/cuongbtq/file-processor/internal/api/model"
	"github.com/cuongbtq/file-processor/internal/api/storage"
	"github.com/cuongbtq/file-processor/internal/worker/domain"
)

const (
	defaultLimit    = 20
	maxLimit        = 100
	defaultPageSize = 20
	maxPageSize     = 100
)

// GetStats handles GET /api/v1/stats
func (h *OutcomeHandler) GetStats(c *gin.Context) {
	stats := h.stats.Stats()
	counters := h.recent.Counters()

	c.JSON(http.StatusOK, dto.StatsResponse{
		WorkerID:    stats.WorkerID,
		Concurrency: stats.Concurrency,
		Active:      stats.Active,
		InFlight:    stats.InFlight,
		Succeeded:   counters.Succeeded,
		Failed:      counters.Failed,
		Retries:     counters.Retries,
	})
}

// ListRecent handles GET /api/v1/outcomes
// Lists the most recent outcomes held in memory
func (h *OutcomeHandler) ListRecent(c *gin.Context) {
	var req dto.ListRecentRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Error("Invalid query parameters", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	if !apidomain.ValidStatus(req.Status) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": apidomain.ErrInvalidStatus.Error(),
		})
		return
	}

	if req.Limit <= 0 {
		req.Limit = defaultLimit
	}
	if req.Limit > maxLimit {
		req.Limit = maxLimit
	}

	outcomes := h.recent.Recent(req.Status, req.Limit)
	resp := make([]dto.OutcomeDTO, len(outcomes))
	for i, o := range outcomes {
		resp[i] = fromDomain(o)
	}

	c.JSON(http.StatusOK, dto.ListOutcomesResponse{
		Outcomes: resp,
	})
}

// GetOutcome handles GET /api/v1/outcomes/:job_id
// Looks the job up in memory first, then in the database when enabled
func (h *OutcomeHandler) GetOutcome(c *gin.Context) {
	jobID := c.Param("job_id")

	if _, err := uuid.Parse(jobID); err != nil {
		h.logger.Error("Invalid job_id format", slog.String("job_id", jobID), slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id must be a valid UUID",
		})
		return
	}

	if o, ok := h.recent.Get(jobID); ok {
		c.JSON(http.StatusOK, fromDomain(o))
		return
	}

	if h.history == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": apidomain.ErrOutcomeNotFound.Error(),
		})
		return
	}

	row, err := h.history.GetOutcome(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, apidomain.ErrOutcomeNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": err.Error(),
			})
			return
		}
		h.logger.Error("Failed to get outcome", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get outcome",
		})
		return
	}

	c.JSON(http.StatusOK, fromModel(*row))
}

// ListHistory handles GET /api/v1/outcomes/history
// Lists persisted outcomes with keyset pagination
func (h *OutcomeHandler) ListHistory(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Outcome history requires the database",
		})
		return
	}

	var req dto.ListHistoryRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Error("Invalid query parameters", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	if !apidomain.ValidStatus(req.Status) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": apidomain.ErrInvalidStatus.Error(),
		})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = defaultPageSize
	}
	if req.PageSize > maxPageSize {
		req.PageSize = maxPageSize
	}

	cursor, err := DecodeOutcomeCursor(req.Cursor)
	if err != nil {
		h.logger.Error("Invalid cursor", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid cursor",
		})
		return
	}

	rows, err := h.history.ListOutcomes(c.Request.Context(), storage.OutcomeFilter{
		Status:   req.Status,
		PageSize: req.PageSize,
		Cursor:   cursor,
	})
	if err != nil {
		h.logger.Error("Failed to list outcomes", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list outcomes",
		})
		return
	}

	hasMore := len(rows) > req.PageSize
	if hasMore {
		rows = rows[:req.PageSize]
	}

	resp := make([]dto.OutcomeDTO, len(rows))
	for i, row := range rows {
		resp[i] = fromModel(row)
	}

	var nextCursor string
	if hasMore {
		last := rows[len(rows)-1]
		nextCursor = EncodeOutcomeCursor(&storage.OutcomeCursor{
			FinishedAt: last.FinishedAt,
			JobID:      last.JobID,
		})
	}

	c.JSON(http.StatusOK, dto.ListOutcomesResponse{
		Outcomes:   resp,
		NextCursor: nextCursor,
	})
}

func fromDomain(o domain.Outcome) dto.OutcomeDTO {
	return dto.OutcomeDTO{
		JobID:      o.JobID,
		Path:       o.Path,
		Status:     o.Status,
		OutputPath: o.OutputPath,
		Summary:    o.Summary,
		Reason:     o.Reason,
		Kind:       o.Kind,
		Attempts:   o.Attempts,
		Retries:    o.Retries,
		InputSize:  int64(o.InputSize),
		OutputSize: int64(o.OutputSize),
		DurationMS: o.Duration.Milliseconds(),
		FinishedAt: o.FinishedAt.Format(time.RFC3339Nano),
	}
}

func fromModel(row model.Outcome) dto.OutcomeDTO {
	return dto.OutcomeDTO{
		JobID:      row.JobID,
		Path:       row.Path,
		Status:     row.Status,
		OutputPath: row.OutputPath.String,
		Summary:    row.Summary.String,
		Reason:     row.Reason.String,
		Kind:       row.Kind.String,
		Attempts:   row.Attempts,
		Retries:    row.Retries,
		InputSize:  row.InputSize,
		OutputSize: row.OutputSize,
		DurationMS: row.DurationMS,
		FinishedAt: row.FinishedAt.Format(time.RFC3339Nano),
	}
}
