// Package pipeline runs one uploaded recording through transcription,
// insight extraction and indexing, recording status as it goes.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"meeting-insights-go/internal/audio"
	"meeting-insights-go/internal/logger"
	"meeting-insights-go/internal/store"
	"meeting-insights-go/internal/types"
)

const statusWriteTimeout = 10 * time.Second

type Chunker interface {
	Chunk(ctx context.Context, path string) ([]audio.Segment, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, segments []audio.Segment) (string, error)
}

type InsightExtractor interface {
	Extract(ctx context.Context, transcript string) types.InsightResult
}

type TranscriptIndexer interface {
	Index(ctx context.Context, meetingID int64, transcript string) error
}

type Deps struct {
	Chunker     Chunker
	Transcriber Transcriber
	Extractor   InsightExtractor
	Indexer     TranscriptIndexer
	Store       store.MeetingStore
}

// Result summarises one run.
type Result struct {
	MeetingID  int64
	Status     types.Status
	Segments   int
	Words      int
	DurationMs int64
	Err        error
}

type Orchestrator struct {
	deps       Deps
	timeout    time.Duration
	log        *logger.Logger
	removeFile func(string) error
}

func New(d Deps, jobTimeout time.Duration, log *logger.Logger) *Orchestrator {
	if log == nil {
		log = logger.Discard()
	}
	return &Orchestrator{
		deps:       d,
		timeout:    jobTimeout,
		log:        log.Component("pipeline"),
		removeFile: os.Remove,
	}
}

// Run processes job to a terminal status. The uploaded file is removed
// before Run returns, whatever the outcome.
func (o *Orchestrator) Run(ctx context.Context, job types.Job) Result {
	start := time.Now()
	res := Result{MeetingID: job.MeetingID}
	log := o.log.WithMeeting(job.MeetingID)

	defer o.cleanup(log, job.FilePath)

	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	err := o.run(ctx, job, &res, log)
	res.DurationMs = time.Since(start).Milliseconds()
	if err != nil {
		res.Err = err
		res.Status = types.StatusFailed
		o.markFailed(ctx, job.MeetingID, log)
		log.WithError(err).WithField("duration_ms", res.DurationMs).Error("pipeline failed")
		return res
	}

	res.Status = types.StatusCompleted
	log.WithFields(logrus.Fields{
		"segments":    res.Segments,
		"words":       res.Words,
		"duration_ms": res.DurationMs,
	}).Info("pipeline finished")
	return res
}

func (o *Orchestrator) run(ctx context.Context, job types.Job, res *Result, log *logrus.Entry) error {
	s := o.deps.Store

	if err := s.UpdateStatus(ctx, job.MeetingID, types.StatusTranscribing); err != nil {
		return fmt.Errorf("set transcribing: %w", err)
	}

	segments, err := o.deps.Chunker.Chunk(ctx, job.FilePath)
	if err != nil {
		return fmt.Errorf("normalize audio: %w", err)
	}
	res.Segments = len(segments)

	transcript, err := o.deps.Transcriber.Transcribe(ctx, segments)
	if err != nil {
		return fmt.Errorf("transcribe: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	res.Words = wordCount(transcript)
	if err := s.UpdateTranscript(ctx, job.MeetingID, transcript); err != nil {
		return fmt.Errorf("save transcript: %w", err)
	}
	log.WithField("words", res.Words).Info("transcript saved")

	if err := s.UpdateStatus(ctx, job.MeetingID, types.StatusAnalyzing); err != nil {
		return fmt.Errorf("set analyzing: %w", err)
	}

	insights := o.deps.Extractor.Extract(ctx, transcript)
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.UpdateInsights(ctx, job.MeetingID, insights); err != nil {
		return fmt.Errorf("save insights: %w", err)
	}

	if err := o.deps.Indexer.Index(ctx, job.MeetingID, transcript); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		log.WithError(err).Warn("indexing failed, search will be unavailable for this meeting")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.UpdateStatus(ctx, job.MeetingID, types.StatusCompleted); err != nil {
		return fmt.Errorf("set completed: %w", err)
	}
	return nil
}

// Abandon settles a job that will never run: the meeting is marked failed
// and the upload removed.
func (o *Orchestrator) Abandon(ctx context.Context, job types.Job) {
	log := o.log.WithMeeting(job.MeetingID)
	defer o.cleanup(log, job.FilePath)
	o.markFailed(ctx, job.MeetingID, log)
	log.Warn("job abandoned before it ran")
}

// markFailed writes the failed status on a context detached from the job so
// an expired deadline does not prevent it.
func (o *Orchestrator) markFailed(ctx context.Context, id int64, log *logrus.Entry) {
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), statusWriteTimeout)
	defer cancel()
	if err := o.deps.Store.UpdateStatus(wctx, id, types.StatusFailed); err != nil {
		log.WithError(err).Error("could not record failed status")
	}
}

func (o *Orchestrator) cleanup(log *logrus.Entry, path string) {
	if path == "" {
		return
	}
	if err := o.removeFile(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.WithError(err).WithField("file", path).Warn("could not remove upload")
	}
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}
