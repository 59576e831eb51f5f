// Package transcription fans audio segments out to a speech-to-text backend
// and stitches the results back together in recording order.
package transcription

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"meeting-insights-go/internal/audio"
	"meeting-insights-go/internal/logger"
)

const DefaultWorkers = 8

// TranscriptionError identifies the first segment that failed.
type TranscriptionError struct {
	Index int
	Err   error
}

func (e *TranscriptionError) Error() string {
	return fmt.Sprintf("transcribe segment %d: %v", e.Index, e.Err)
}

func (e *TranscriptionError) Unwrap() error { return e.Err }

type Coordinator struct {
	Backend Backend
	Workers int
	// Timeout bounds a single segment call, retries included. Zero means none.
	Timeout time.Duration
	log     *logger.Logger
}

func NewCoordinator(b Backend, workers int, timeout time.Duration, log *logger.Logger) *Coordinator {
	if workers < 1 {
		workers = DefaultWorkers
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Coordinator{Backend: b, Workers: workers, Timeout: timeout, log: log.Component("transcription")}
}

// Transcribe runs every segment through the backend with at most c.Workers in
// flight. The first failure cancels the rest.
func (c *Coordinator) Transcribe(ctx context.Context, segments []audio.Segment) (string, error) {
	if len(segments) == 0 {
		return "", nil
	}

	texts := make([]string, len(segments))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.Workers)

	for i, seg := range segments {
		i, seg := i, seg
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return &TranscriptionError{Index: seg.Index, Err: err}
			}
			callCtx := gctx
			if c.Timeout > 0 {
				var cancel context.CancelFunc
				callCtx, cancel = context.WithTimeout(gctx, c.Timeout)
				defer cancel()
			}
			start := time.Now()
			text, err := c.Backend.Transcribe(callCtx, seg)
			if err != nil {
				return &TranscriptionError{Index: seg.Index, Err: err}
			}
			texts[i] = text
			c.log.WithField("segment", seg.Index).WithField("took", time.Since(start).String()).Debug("segment transcribed")
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return "", err
	}
	return joinTexts(texts), nil
}

func joinTexts(texts []string) string {
	parts := make([]string, 0, len(texts))
	for _, t := range texts {
		if t = strings.TrimSpace(t); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}
