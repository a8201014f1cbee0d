// Package queue runs uploaded videos through a processor one at a time.
//
// A single consumer goroutine, started once with Run, drains the queue.
// Enqueue only appends and signals; it never starts goroutines, so there is
// no window in which a job can be added while the consumer is winding down.
package queue

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"brick-detector/internal/metrics"
	"brick-detector/internal/store"

	"go.uber.org/zap"
)

// Job is one video waiting to be processed.
type Job struct {
	Path string // source file
	Name string // base filename without extension
}

// Order selects which end of the queue the consumer pops from.
type Order int

const (
	// OrderLIFO processes the most recent upload first.
	OrderLIFO Order = iota
	// OrderFIFO processes uploads in arrival order.
	OrderFIFO
)

func (o Order) String() string {
	if o == OrderFIFO {
		return "fifo"
	}
	return "lifo"
}

// ParseOrder parses "lifo" or "fifo", case-insensitively.
func ParseOrder(s string) (Order, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "lifo":
		return OrderLIFO, nil
	case "fifo":
		return OrderFIFO, nil
	}
	return 0, fmt.Errorf("unknown queue order %q", s)
}

// Processor turns one video into its annotated output and detection log.
type Processor interface {
	Process(ctx context.Context, job Job) error
}

// RecordStore is the subset of the record store the queue updates.
type RecordStore interface {
	EnsureRecord(name, infoPath string) (store.Record, bool, error)
	MarkProcessed(name string) error
	MarkFailed(name string, cause error) error
}

// Queue is the job coordinator. It owns the pending slice; only Enqueue and
// Run mutate it.
type Queue struct {
	mu   sync.Mutex
	jobs []Job
	wake chan struct{}

	order    Order
	proc     Processor
	records  RecordStore
	infoPath func(name string) string
	metrics  *metrics.Metrics
	logger   *zap.SugaredLogger
}

// Option configures a Queue.
type Option func(*Queue)

// WithOrder sets the pop order.
func WithOrder(o Order) Option {
	return func(q *Queue) { q.order = o }
}

// WithInfoPath sets how a new record's detection log path is derived.
func WithInfoPath(fn func(name string) string) Option {
	return func(q *Queue) { q.infoPath = fn }
}

// WithMetrics attaches job and queue-depth metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(q *Queue) { q.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(q *Queue) { q.logger = l }
}

// New creates a queue feeding proc and recording outcomes in records.
func New(proc Processor, records RecordStore, opts ...Option) *Queue {
	q := &Queue{
		wake:     make(chan struct{}, 1),
		order:    OrderLIFO,
		proc:     proc,
		records:  records,
		infoPath: func(name string) string { return name + ".txt" },
		logger:   zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue puts the record for name in the pending state and schedules the
// video at path for processing.
func (q *Queue) Enqueue(ctx context.Context, path, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, created, err := q.records.EnsureRecord(name, q.infoPath(name)); err != nil {
		return fmt.Errorf("failed to record %s: %w", name, err)
	} else if created {
		q.logger.Debugw("created record", "name", name)
	} else {
		q.logger.Debugw("reset record for rerun", "name", name)
	}

	q.mu.Lock()
	q.jobs = append(q.jobs, Job{Path: path, Name: name})
	depth := len(q.jobs)
	q.metrics.SetQueueDepth(depth)
	q.mu.Unlock()

	q.logger.Infow("queued video", "name", name, "depth", depth)

	select {
	case q.wake <- struct{}{}:
	default:
		// A wakeup is already pending.
	}
	return nil
}

// Run consumes jobs until ctx is cancelled. It must be called exactly once.
func (q *Queue) Run(ctx context.Context) error {
	q.logger.Infow("consumer started", "order", q.order)
	for {
		if err := ctx.Err(); err != nil {
			q.logger.Info("consumer stopped")
			return err
		}

		job, ok := q.pop()
		if !ok {
			select {
			case <-ctx.Done():
				q.logger.Info("consumer stopped")
				return ctx.Err()
			case <-q.wake:
				continue
			}
		}

		err := q.runJob(ctx, job)
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			// Shutting down mid-video; the record stays pending.
			q.logger.Warnw("processing interrupted", "name", job.Name)
			return ctx.Err()
		}
		q.finish(job, err)
	}
}

// pop removes the next job according to the queue order.
func (q *Queue) pop() (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.jobs)
	if n == 0 {
		return Job{}, false
	}

	var job Job
	if q.order == OrderFIFO {
		job = q.jobs[0]
		q.jobs[0] = Job{}
		q.jobs = q.jobs[1:]
	} else {
		job = q.jobs[n-1]
		q.jobs = q.jobs[:n-1]
	}
	q.metrics.SetQueueDepth(len(q.jobs))
	return job, true
}

// runJob processes one job, converting a panic into an error.
func (q *Queue) runJob(ctx context.Context, job Job) (err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			q.logger.Errorw("processor panicked", "name", job.Name, "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("processing %s panicked: %v", job.Name, r)
		}
		q.metrics.ObserveJob(time.Since(start), err)
	}()

	q.logger.Infow("processing video", "name", job.Name, "path", job.Path)
	return q.proc.Process(ctx, job)
}

// finish stores the outcome of a job.
func (q *Queue) finish(job Job, procErr error) {
	if procErr != nil {
		q.logger.Errorw("processing failed", "name", job.Name, "error", procErr)
		if err := q.records.MarkFailed(job.Name, procErr); err != nil {
			q.logger.Errorw("failed to mark record failed", "name", job.Name, "error", err)
		}
		return
	}

	if err := q.records.MarkProcessed(job.Name); err != nil {
		q.logger.Errorw("failed to mark record processed", "name", job.Name, "error", err)
		return
	}
	q.logger.Infow("processed video", "name", job.Name)
}

// Len returns the number of waiting jobs.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// Pending returns a copy of the waiting jobs in storage order, oldest first.
func (q *Queue) Pending() []Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Job, len(q.jobs))
	copy(out, q.jobs)
	return out
}
