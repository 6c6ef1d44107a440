package domain

import (
	"errors"
	"time"
)

// Outcome is the terminal result of one ReadyJob. Status selects which
// fields are meaningful: OutputPath and Summary for SUCCEEDED, Reason and
// Kind for FAILED.
type Outcome struct {
	JobID      string        `json:"job_id"`
	Path       string        `json:"path"`
	Status     string        `json:"status"`
	OutputPath string        `json:"output_path,omitempty"`
	Summary    string        `json:"summary,omitempty"`
	Reason     string        `json:"reason,omitempty"`
	Kind       string        `json:"kind,omitempty"`
	Attempts   int           `json:"attempts"`
	Retries    int           `json:"retries"`
	InputSize  int           `json:"input_size"`
	OutputSize int           `json:"output_size"`
	Duration   time.Duration `json:"duration"`
	FinishedAt time.Time     `json:"finished_at"`

	Err error `json:"-"`
}

// Succeeded reports whether the outcome is a success
func (o Outcome) Succeeded() bool {
	return o.Status == OutcomeSucceeded
}

// NewSuccess builds a success outcome
func NewSuccess(job ReadyJob, outputPath, summary string) Outcome {
	return Outcome{
		JobID:      job.ID,
		Path:       job.Path,
		Status:     OutcomeSucceeded,
		OutputPath: outputPath,
		Summary:    summary,
		FinishedAt: time.Now(),
	}
}

// NewFailure builds a failure outcome from the error that ended the job
func NewFailure(job ReadyJob, err error, attempts int) Outcome {
	if err == nil {
		err = errors.New("unknown failure")
	}
	return Outcome{
		JobID:      job.ID,
		Path:       job.Path,
		Status:     OutcomeFailed,
		Reason:     err.Error(),
		Kind:       Kind(err),
		Attempts:   attempts,
		Retries:    max(attempts-1, 0),
		FinishedAt: time.Now(),
		Err:        err,
	}
}
