package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"meeting-insights-go/internal/logger"
	"meeting-insights-go/internal/types"
)

const (
	StreamName   = "MEETING_JOBS"
	Subject      = "meetings.jobs"
	ConsumerName = "meeting-pipeline"

	fetchWait = 2 * time.Second
)

// NATSQueue persists jobs on a JetStream work-queue stream so they survive a
// restart of the worker process.
type NATSQueue struct {
	nc       *nats.Conn
	js       jetstream.JetStream
	consumer jetstream.Consumer
	log      *logger.Logger
}

// NewNATSQueue connects, ensures the stream and durable consumer exist and
// returns the queue. ackWait must exceed the longest job.
func NewNATSQueue(ctx context.Context, url string, ackWait time.Duration, log *logger.Logger) (*NATSQueue, error) {
	if log == nil {
		log = logger.Discard()
	}
	log = log.Component("queue")

	nc, err := nats.Connect(url,
		nats.Name("meeting-insights"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.WithError(err).Warn("NATS disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Info("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	stream, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      StreamName,
		Subjects:  []string{Subject},
		Retention: jetstream.WorkQueuePolicy,
		MaxAge:    7 * 24 * time.Hour,
		Storage:   jetstream.FileStorage,
		Replicas:  1,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create stream %s: %w", StreamName, err)
	}

	consumer, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Name:          ConsumerName,
		Durable:       ConsumerName,
		DeliverPolicy: jetstream.DeliverAllPolicy,
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxDeliver:    3,
		AckWait:       ackWait,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create consumer %s: %w", ConsumerName, err)
	}

	log.WithField("stream", StreamName).WithField("consumer", ConsumerName).Info("job queue ready")
	return &NATSQueue{nc: nc, js: js, consumer: consumer, log: log}, nil
}

func (q *NATSQueue) Enqueue(ctx context.Context, job types.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if _, err := q.js.Publish(ctx, Subject, data); err != nil {
		return fmt.Errorf("publish job %d: %w", job.MeetingID, err)
	}
	return nil
}

func (q *NATSQueue) Dequeue(ctx context.Context) (Delivery, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Delivery{}, err
		}
		batch, err := q.consumer.Fetch(1, jetstream.FetchMaxWait(fetchWait))
		if err != nil {
			if q.nc.IsClosed() {
				return Delivery{}, ErrClosed
			}
			q.log.WithError(err).Warn("fetch failed")
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}
		for msg := range batch.Messages() {
			var job types.Job
			if err := json.Unmarshal(msg.Data(), &job); err != nil {
				q.log.WithError(err).WithField("subject", msg.Subject()).Warn("malformed job, dropping")
				_ = msg.Term()
				continue
			}
			return Delivery{Job: job, ack: msg.Ack}, nil
		}
		if err := batch.Error(); err != nil && !errors.Is(err, nats.ErrTimeout) {
			q.log.WithError(err).Debug("fetch batch ended")
		}
	}
}

func (q *NATSQueue) Close() error {
	return q.nc.Drain()
}
