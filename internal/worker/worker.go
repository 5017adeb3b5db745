package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/safemind/go-crisis-alerts/internal/logging"
	"github.com/safemind/go-crisis-alerts/internal/models"
)

// ErrStopped is returned by Submit once the pool has shut down.
var ErrStopped = errors.New("worker pool stopped")

// ProcessFunc runs the processing pipeline for one queued report.
type ProcessFunc func(ctx context.Context, report *models.Report) error

// Pool runs report processing off the request path. The API enqueues freshly
// created reports; workers drive them through the pipeline.
type Pool struct {
	numWorkers int
	jobs       chan *models.Report
	processor  ProcessFunc
	done       chan struct{}
	log        *slog.Logger
	stopOnce   sync.Once
	wg         sync.WaitGroup
}

func NewPool(numWorkers int, bufferSize int, processor ProcessFunc) *Pool {
	return &Pool{
		numWorkers: numWorkers,
		jobs:       make(chan *models.Report, bufferSize),
		processor:  processor,
		done:       make(chan struct{}),
		log:        logging.With("worker_pool"),
	}
}

func (p *Pool) Start(ctx context.Context) {
	for i := 1; i <= p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case report := <-p.jobs:
			p.process(ctx, id, report)
		case <-p.done:
			// Drain what is already buffered, then exit.
			for {
				select {
				case report := <-p.jobs:
					p.process(ctx, id, report)
				default:
					return
				}
			}
		}
	}
}

func (p *Pool) process(ctx context.Context, id int, report *models.Report) {
	if err := p.processor(ctx, report); err != nil {
		p.log.Error("report processing failed", "worker", id, "report_id", report.ID, "error", err)
	}
}

// Submit queues a report for processing. Blocks once the buffer is full,
// providing backpressure to the API layer. Returns ErrStopped after Stop.
func (p *Pool) Submit(report *models.Report) error {
	select {
	case p.jobs <- report:
		return nil
	case <-p.done:
		return ErrStopped
	}
}

func (p *Pool) Stop() {
	p.stopOnce.Do(func() { close(p.done) })
	p.wg.Wait()
}
