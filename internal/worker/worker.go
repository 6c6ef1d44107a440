package worker

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/cuongbtq/file-processor/internal/report"
	"github.com/cuongbtq/file-processor/internal/worker/domain"
	"github.com/cuongbtq/file-processor/internal/worker/output"
	"github.com/cuongbtq/file-processor/internal/worker/retry"
	"github.com/cuongbtq/file-processor/internal/worker/strategy"
)

// Config holds worker configuration
type Config struct {
	ID          string
	Logger      *slog.Logger
	Strategy    strategy.Strategy
	Retry       *retry.Executor
	Classifier  *domain.Classifier
	Writer      *output.Writer
	Reporter    report.Reporter
	Concurrency int
	DeleteInput bool

	// ReadFile defaults to os.ReadFile
	ReadFile func(name string) ([]byte, error)
}

// Stats is a point-in-time view of the pool
type Stats struct {
	WorkerID    string `json:"worker_id"`
	Concurrency int    `json:"concurrency"`
	Active      int64  `json:"active"`
	InFlight    int    `json:"in_flight"`
}

// Worker drains ReadyJobs with a fixed pool of goroutines
type Worker struct {
	workerID    string
	logger      *slog.Logger
	strategy    strategy.Strategy
	retry       *retry.Executor
	classifier  *domain.Classifier
	writer      *output.Writer
	reporter    report.Reporter
	concurrency int
	deleteInput bool
	readFile    func(name string) ([]byte, error)

	inFlight *inFlight
	active   atomic.Int64
	jobsChan chan domain.ReadyJob
	wg       sync.WaitGroup
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}

	workerID := cfg.ID
	if workerID == "" {
		workerID = "worker-" + uuid.NewString()[:8]
	}

	readFile := cfg.ReadFile
	if readFile == nil {
		readFile = os.ReadFile
	}

	return &Worker{
		workerID:    workerID,
		logger:      cfg.Logger,
		strategy:    cfg.Strategy,
		retry:       cfg.Retry,
		classifier:  cfg.Classifier,
		writer:      cfg.Writer,
		reporter:    cfg.Reporter,
		concurrency: concurrency,
		deleteInput: cfg.DeleteInput,
		readFile:    readFile,
		inFlight:    newInFlight(),
		jobsChan:    make(chan domain.ReadyJob),
	}
}

// Start processes jobs from ready until it is closed and drained, or until
// ctx is done. It blocks until every worker goroutine has exited.
func (w *Worker) Start(ctx context.Context, ready <-chan domain.ReadyJob) error {
	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
		slog.Int("concurrency", w.concurrency),
		slog.Int("max_attempts", w.retry.Policy().MaxAttempts()),
	)

	w.spawnWorkerPool(ctx)
	w.startJobDispatcher(ctx, ready)

	w.wg.Wait()
	w.logger.Info("Worker stopped",
		slog.String("worker_id", w.workerID),
	)
	return nil
}

// Stats returns the current pool state
func (w *Worker) Stats() Stats {
	return Stats{
		WorkerID:    w.workerID,
		Concurrency: w.concurrency,
		Active:      w.active.Load(),
		InFlight:    w.inFlight.Len(),
	}
}
