package handler

import (
	"context"
	"log/slog"

	"github.com/cuongbtq/file-processor/internal/api/model"
	"github.com/cuongbtq/file-processor/internal/api/storage"
	"github.com/cuongbtq/file-processor/internal/report"
	"github.com/cuongbtq/file-processor/internal/worker"
	"github.com/cuongbtq/file-processor/internal/worker/domain"
)

// RecentSource serves outcomes kept in memory
type RecentSource interface {
	Recent(status string, limit int) []domain.Outcome
	Get(jobID string) (domain.Outcome, bool)
	Counters() report.Counters
}

// StatsSource reports pool state
type StatsSource interface {
	Stats() worker.Stats
}

// HistoryStore serves persisted outcomes
type HistoryStore interface {
	GetOutcome(ctx context.Context, jobID string) (*model.Outcome, error)
	ListOutcomes(ctx context.Context, filter storage.OutcomeFilter) ([]model.Outcome, error)
}

// HealthChecker verifies a backing service
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// BrokerStatus reports whether the outcome publisher holds a connection
type BrokerStatus interface {
	IsConnected() bool
}

// Dependencies holds all dependencies needed by handlers. History and
// Database are nil when the database is disabled, Broker when RabbitMQ is.
type Dependencies struct {
	Logger   *slog.Logger
	Recent   RecentSource
	Stats    StatsSource
	History  HistoryStore
	Database HealthChecker
	Broker   BrokerStatus
}

// OutcomeHandler handles outcome and stats requests
type OutcomeHandler struct {
	logger  *slog.Logger
	recent  RecentSource
	stats   StatsSource
	history HistoryStore
}

// NewOutcomeHandler creates a new OutcomeHandler instance
func NewOutcomeHandler(deps *Dependencies) *OutcomeHandler {
	return &OutcomeHandler{
		logger:  deps.Logger,
		recent:  deps.Recent,
		stats:   deps.Stats,
		history: deps.History,
	}
}
