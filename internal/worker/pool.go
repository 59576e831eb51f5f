// Package worker runs a fixed number of pipeline consumers against a job
// queue.
package worker

import (
	"context"
	"errors"
	"sync"

	"meeting-insights-go/internal/logger"
	"meeting-insights-go/internal/pipeline"
	"meeting-insights-go/internal/queue"
	"meeting-insights-go/internal/types"
)

type Runner interface {
	Run(ctx context.Context, job types.Job) pipeline.Result
	Abandon(ctx context.Context, job types.Job)
}

type Pool struct {
	queue   queue.Queue
	runner  Runner
	workers int
	log     *logger.Logger
}

func NewPool(q queue.Queue, r Runner, workers int, log *logger.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Pool{queue: q, runner: r, workers: workers, log: log.Component("worker")}
}

// Run consumes jobs until ctx is cancelled or the queue is closed. Jobs that
// have started are allowed to finish. Jobs still buffered in an in-process
// queue are abandoned so that their meetings fail instead of staying queued.
// Run returns once every worker has stopped.
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.loop(ctx, id)
		}(i)
	}
	p.log.WithField("workers", p.workers).Info("worker pool started")
	wg.Wait()
	p.drain(context.WithoutCancel(ctx))
	p.log.Info("worker pool stopped")
}

func (p *Pool) drain(ctx context.Context) {
	d, ok := p.queue.(queue.Drainer)
	if !ok {
		return
	}
	jobs := d.Drain()
	if len(jobs) > 0 {
		p.log.WithField("jobs", len(jobs)).Warn("abandoning queued jobs")
	}
	for _, job := range jobs {
		p.runner.Abandon(ctx, job)
	}
}

func (p *Pool) loop(ctx context.Context, id int) {
	log := p.log.WithField("worker", id)
	for {
		if ctx.Err() != nil {
			return
		}
		d, err := p.queue.Dequeue(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) && !errors.Is(err, queue.ErrClosed) {
				log.WithError(err).Error("dequeue failed")
			}
			return
		}

		log.WithField("meeting_id", d.Job.MeetingID).Info("job picked up")
		res := p.runner.Run(context.WithoutCancel(ctx), d.Job)

		if err := d.Ack(); err != nil {
			log.WithError(err).WithField("meeting_id", d.Job.MeetingID).Warn("ack failed")
		}
		log.WithField("meeting_id", res.MeetingID).
			WithField("status", res.Status).
			WithField("duration_ms", res.DurationMs).
			Info("job done")
	}
}
