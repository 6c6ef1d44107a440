package report

import (
	"context"
	"sync"

	"github.com/cuongbtq/file-processor/internal/worker/domain"
)

const defaultCapacity = 100

// Counters are running totals since start
type Counters struct {
	Succeeded int64 `json:"succeeded"`
	Failed    int64 `json:"failed"`
	Retries   int64 `json:"retries"`
}

// Memory keeps the most recent outcomes in a ring buffer
type Memory struct {
	mu       sync.RWMutex
	ring     []domain.Outcome
	next     int
	full     bool
	counters Counters
}

// NewMemory creates a recorder holding up to capacity outcomes
func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Memory{ring: make([]domain.Outcome, capacity)}
}

// Report records the outcome, evicting the oldest when full
func (m *Memory) Report(_ context.Context, o domain.Outcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ring[m.next] = o
	m.next = (m.next + 1) % len(m.ring)
	if m.next == 0 {
		m.full = true
	}

	if o.Succeeded() {
		m.counters.Succeeded++
	} else {
		m.counters.Failed++
	}
	m.counters.Retries += int64(o.Retries)
	return nil
}

// Recent returns up to limit outcomes, newest first. An empty status
// matches every outcome.
func (m *Memory) Recent(status string, limit int) []domain.Outcome {
	m.mu.RLock()
	defer m.mu.RUnlock()

	size := m.next
	if m.full {
		size = len(m.ring)
	}
	if limit <= 0 || limit > size {
		limit = size
	}

	result := make([]domain.Outcome, 0, limit)
	for i := 1; i <= size && len(result) < limit; i++ {
		o := m.ring[(m.next-i+len(m.ring))%len(m.ring)]
		if status != "" && o.Status != status {
			continue
		}
		result = append(result, o)
	}
	return result
}

// Counters returns a snapshot of the totals
func (m *Memory) Counters() Counters {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counters
}

// Get returns the outcome for jobID if it is still held
func (m *Memory) Get(jobID string) (domain.Outcome, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, o := range m.ring {
		if o.JobID != "" && o.JobID == jobID {
			return o, true
		}
	}
	return domain.Outcome{}, false
}
