// Package worker drains the frame queue and hands frames to a processor.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/okian/rollcall/internal/adapters/mq/queue"
	"github.com/okian/rollcall/pkg/logger"
	"github.com/okian/rollcall/pkg/metrics"
)

const defaultFrameTimeout = time.Minute

// Processor runs the recognition pipeline for one frame.
type Processor interface {
	ProcessFrame(ctx context.Context, f queue.Frame) error
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, f queue.Frame) error

// ProcessFrame calls fn.
func (fn ProcessorFunc) ProcessFrame(ctx context.Context, f queue.Frame) error { return fn(ctx, f) }

// Queue defines how workers receive frames.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Frame
}

// Worker processes frames until stopped.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue closes.
	Run(ctx context.Context)

	// Shutdown stops the worker after its current frame.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker for processing frames.
type InMemoryWorker struct {
	queue        Queue
	processor    Processor
	name         string
	frameTimeout time.Duration

	stopOnce sync.Once
	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, p Processor, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:        q,
		processor:    p,
		name:         "worker",
		frameTimeout: defaultFrameTimeout,
		shutdown:     make(chan struct{}),
		done:         make(chan struct{}),
		logger:       logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.With(logger.String("worker", w.name))
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	frames := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case f, ok := <-frames:
			if !ok {
				return
			}
			metrics.RecordQueueDequeue()
			if err := w.process(ctx, f); err != nil {
				w.logger.Error(ctx, "frame processing failed",
					logger.String("frame_id", f.ID),
					logger.String("course_id", f.CourseID),
					logger.Error(err),
				)
			}
		}
	}
}

// Shutdown stops the worker after its current frame.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.stop()
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) stop() {
	w.stopOnce.Do(func() { close(w.shutdown) })
}

func (w *InMemoryWorker) process(ctx context.Context, f queue.Frame) error {
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	if w.frameTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.frameTimeout)
		defer cancel()
	}

	if err := w.processor.ProcessFrame(ctx, f); err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "process_frame")
		return fmt.Errorf("process frame %s: %w", f.ID, err)
	}
	return nil
}

// Pool manages multiple workers reading the same queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	logger  logger.Logger
}

// NewPool creates a new worker pool. A count below one uses runtime.NumCPU.
func NewPool(workerCount int, q Queue, p Processor, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}

	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		workerOpts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		pool.workers[i] = NewInMemoryWorker(q, p, workerOpts...)
	}
	metrics.UpdateWorkerCount(workerCount)
	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Shutdown closes the queue and lets workers drain what is already queued.
// When ctx expires first, workers are stopped after their current frame and
// the remaining frames are dropped.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	for _, w := range p.workers {
		select {
		case <-w.done:
		case <-ctx.Done():
			p.logger.Warn(ctx, "drain timed out, stopping workers")
			for _, w := range p.workers {
				w.stop()
			}
			return fmt.Errorf("drain queue: %w", ctx.Err())
		}
	}
	return nil
}
