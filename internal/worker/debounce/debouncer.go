// Package debounce turns bursts of filesystem events into one ReadyJob per
// path once the path has been quiet for the processing delay.
package debounce

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/cuongbtq/file-processor/internal/worker/domain"
)

// pendingFile tracks one path waiting for its quiet period
type pendingFile struct {
	path        string
	lastEventAt time.Time
	timer       *time.Timer
	gen         uint64
}

// Debouncer coalesces events per path. Timers run independently of the
// event source, so Record never blocks on the ready queue.
type Debouncer struct {
	logger *slog.Logger
	delay  time.Duration

	mu      sync.Mutex
	pending map[string]*pendingFile
	closed  bool

	// wg counts armed timers whose emit has not finished
	wg    sync.WaitGroup
	out   chan domain.ReadyJob
	quit  chan struct{}
	once  sync.Once
	clock func() time.Time
}

// New creates a debouncer with the given quiet period. bufferSize bounds
// the ready queue handed to the dispatcher.
func New(logger *slog.Logger, delay time.Duration, bufferSize int) *Debouncer {
	return &Debouncer{
		logger:  logger,
		delay:   delay,
		pending: make(map[string]*pendingFile),
		out:     make(chan domain.ReadyJob, bufferSize),
		quit:    make(chan struct{}),
		clock:   time.Now,
	}
}

// Ready returns the queue of jobs whose path has gone quiet. It is closed
// once Run returns.
func (d *Debouncer) Ready() <-chan domain.ReadyJob {
	return d.out
}

// Pending returns the number of paths currently waiting
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Record registers an event and restarts the path's quiet timer.
// Repeated events for the same path collapse into a single job.
func (d *Debouncer) Record(event domain.FileEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}

	p, ok := d.pending[event.Path]
	if !ok {
		p = &pendingFile{path: event.Path}
		d.pending[event.Path] = p
	} else if p.timer.Stop() {
		// the stopped timer will never call Done itself
		d.wg.Done()
	}

	p.lastEventAt = d.clock()
	p.gen++
	gen := p.gen

	d.wg.Add(1)
	p.timer = time.AfterFunc(d.delay, func() {
		defer d.wg.Done()
		d.fire(event.Path, gen)
	})

	d.logger.Debug("Event recorded",
		slog.String("path", event.Path),
		slog.String("kind", string(event.Kind)),
	)
}

// fire emits the job unless a later event re-armed the path
func (d *Debouncer) fire(path string, gen uint64) {
	d.mu.Lock()
	p, ok := d.pending[path]
	if !ok || p.gen != gen {
		d.mu.Unlock()
		return
	}
	delete(d.pending, path)
	d.mu.Unlock()

	d.emit(domain.NewReadyJob(path))
}

func (d *Debouncer) emit(job domain.ReadyJob) {
	select {
	case d.out <- job:
		d.logger.Debug("File ready",
			slog.String("path", job.Path),
			slog.String("job_id", job.ID),
		)
	case <-d.quit:
		d.logger.Warn("Dropping ready file on shutdown",
			slog.String("path", job.Path),
		)
	}
}

// Run consumes events until the channel is closed or ctx is done, then
// closes the ready queue. When events closes, pending paths are emitted
// immediately so queued work can drain. When ctx ends, pending paths are
// dropped, including paths a flush has not handed over yet.
func (d *Debouncer) Run(ctx context.Context, events <-chan domain.FileEvent) error {
	defer close(d.out)

	d.logger.Info("Debouncer started",
		slog.Duration("processing_delay", d.delay),
	)

	for {
		select {
		case <-ctx.Done():
			d.stop()
			d.logger.Info("Debouncer stopped - context canceled")
			return nil

		case event, ok := <-events:
			if !ok {
				d.flush(ctx)
				d.logger.Info("Debouncer stopped - event source closed")
				return nil
			}
			d.Record(event)
		}
	}
}

// flush emits every pending path now, in order of last activity. Canceling
// ctx unblocks emits still waiting on a full ready queue.
func (d *Debouncer) flush(ctx context.Context) {
	stopWatch := context.AfterFunc(ctx, d.closeQuit)
	defer stopWatch()

	d.mu.Lock()
	d.closed = true
	ready := make([]*pendingFile, 0, len(d.pending))
	for path, p := range d.pending {
		if p.timer.Stop() {
			d.wg.Done()
			ready = append(ready, p)
			delete(d.pending, path)
		}
	}
	d.mu.Unlock()

	slices.SortFunc(ready, func(a, b *pendingFile) int {
		return a.lastEventAt.Compare(b.lastEventAt)
	})
	for _, p := range ready {
		d.emit(domain.NewReadyJob(p.path))
	}

	// timers that already fired finish their own emit
	d.wg.Wait()
}

// stop cancels every timer and unblocks emits waiting on the ready queue
func (d *Debouncer) stop() {
	d.mu.Lock()
	d.closed = true
	for path, p := range d.pending {
		if p.timer.Stop() {
			d.wg.Done()
		}
		delete(d.pending, path)
	}
	d.mu.Unlock()

	d.closeQuit()
	d.wg.Wait()
}

func (d *Debouncer) closeQuit() {
	d.once.Do(func() { close(d.quit) })
}
