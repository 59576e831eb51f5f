package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"meeting-insights-go/internal/types"
)

func TestChanQueueFIFO(t *testing.T) {
	ctx := context.Background()
	q := NewChanQueue(4)
	for i := int64(1); i <= 3; i++ {
		if err := q.Enqueue(ctx, types.Job{MeetingID: i}); err != nil {
			t.Fatal(err)
		}
	}
	for i := int64(1); i <= 3; i++ {
		d, err := q.Dequeue(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if d.Job.MeetingID != i {
			t.Errorf("got job %d, want %d", d.Job.MeetingID, i)
		}
		if err := d.Ack(); err != nil {
			t.Errorf("Ack: %v", err)
		}
	}
}

func TestChanQueueFull(t *testing.T) {
	q := NewChanQueue(1)
	ctx := context.Background()
	if err := q.Enqueue(ctx, types.Job{MeetingID: 1}); err != nil {
		t.Fatal(err)
	}
	if err := q.Enqueue(ctx, types.Job{MeetingID: 2}); !errors.Is(err, ErrFull) {
		t.Errorf("err = %v, want ErrFull", err)
	}
}

func TestChanQueueDequeueHonoursContext(t *testing.T) {
	q := NewChanQueue(1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := q.Dequeue(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v", err)
	}
}

func TestChanQueueClose(t *testing.T) {
	ctx := context.Background()
	q := NewChanQueue(2)
	q.Enqueue(ctx, types.Job{MeetingID: 1})
	q.Close()
	q.Close()

	if err := q.Enqueue(ctx, types.Job{MeetingID: 2}); !errors.Is(err, ErrClosed) {
		t.Errorf("enqueue after close: %v", err)
	}
	if d, err := q.Dequeue(ctx); err != nil || d.Job.MeetingID != 1 {
		t.Errorf("buffered job lost: %+v, %v", d, err)
	}
	if _, err := q.Dequeue(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("drained queue: %v", err)
	}
}

func TestChanQueueDrain(t *testing.T) {
	ctx := context.Background()
	q := NewChanQueue(4)
	for i := int64(1); i <= 3; i++ {
		q.Enqueue(ctx, types.Job{MeetingID: i})
	}
	if _, err := q.Dequeue(ctx); err != nil {
		t.Fatal(err)
	}

	var d Drainer = q
	jobs := d.Drain()
	if len(jobs) != 2 || jobs[0].MeetingID != 2 || jobs[1].MeetingID != 3 {
		t.Errorf("drained = %+v, want jobs 2 and 3", jobs)
	}
	if err := q.Enqueue(ctx, types.Job{MeetingID: 4}); !errors.Is(err, ErrClosed) {
		t.Errorf("enqueue after drain: %v", err)
	}
	if again := q.Drain(); len(again) != 0 {
		t.Errorf("second drain = %+v", again)
	}
}
