// Package queue hands pipeline jobs from the upload path to workers.
package queue

import (
	"context"
	"errors"
	"sync"

	"meeting-insights-go/internal/types"
)

var (
	ErrFull   = errors.New("job queue is full")
	ErrClosed = errors.New("job queue is closed")
)

// Delivery is a dequeued job. Ack must be called once the job has reached a
// terminal status.
type Delivery struct {
	Job types.Job
	ack func() error
}

func (d Delivery) Ack() error {
	if d.ack == nil {
		return nil
	}
	return d.ack()
}

type Queue interface {
	Enqueue(ctx context.Context, job types.Job) error
	// Dequeue blocks until a job is available, ctx is done or the queue is
	// closed.
	Dequeue(ctx context.Context) (Delivery, error)
	Close() error
}

// Drainer is implemented by queues whose buffered jobs do not survive the
// process. Drain stops intake and returns every job not yet dequeued.
type Drainer interface {
	Drain() []types.Job
}

// ChanQueue is an in-process queue backed by a buffered channel.
type ChanQueue struct {
	mu     sync.RWMutex
	ch     chan types.Job
	closed bool
}

func NewChanQueue(size int) *ChanQueue {
	if size < 1 {
		size = 1
	}
	return &ChanQueue{ch: make(chan types.Job, size)}
}

// Enqueue never blocks; a full buffer yields ErrFull.
func (q *ChanQueue) Enqueue(ctx context.Context, job types.Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrClosed
	}
	select {
	case q.ch <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrFull
	}
}

func (q *ChanQueue) Dequeue(ctx context.Context) (Delivery, error) {
	select {
	case job, ok := <-q.ch:
		if !ok {
			return Delivery{}, ErrClosed
		}
		return Delivery{Job: job}, nil
	case <-ctx.Done():
		return Delivery{}, ctx.Err()
	}
}

// Close stops intake. Jobs already buffered can still be dequeued.
func (q *ChanQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
	return nil
}

func (q *ChanQueue) Drain() []types.Job {
	q.Close()
	var jobs []types.Job
	for job := range q.ch {
		jobs = append(jobs, job)
	}
	return jobs
}

func (q *ChanQueue) Len() int { return len(q.ch) }
