// Package testutil holds hand-written fakes shared by package tests.
package testutil

import (
	"context"
	"sync"

	"meeting-insights-go/internal/audio"
	"meeting-insights-go/internal/llm"
	"meeting-insights-go/internal/store"
	"meeting-insights-go/internal/types"
)

// RecordingStore wraps a MemoryStore and remembers every status written.
type RecordingStore struct {
	*store.MemoryStore

	mu        sync.Mutex
	Statuses  map[int64][]types.Status
	StatusErr error

	// StatusCtxErrs records ctx.Err() seen by each UpdateStatus call.
	StatusCtxErrs []error
}

func NewRecordingStore() *RecordingStore {
	return &RecordingStore{
		MemoryStore: store.NewMemoryStore(),
		Statuses:    make(map[int64][]types.Status),
	}
}

func (r *RecordingStore) UpdateStatus(ctx context.Context, id int64, st types.Status) error {
	r.mu.Lock()
	r.StatusCtxErrs = append(r.StatusCtxErrs, ctx.Err())
	failErr := r.StatusErr
	r.mu.Unlock()
	if failErr != nil && st != types.StatusFailed {
		return failErr
	}
	if err := r.MemoryStore.UpdateStatus(ctx, id, st); err != nil {
		return err
	}
	r.mu.Lock()
	r.Statuses[id] = append(r.Statuses[id], st)
	r.mu.Unlock()
	return nil
}

func (r *RecordingStore) History(id int64) []types.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.Status(nil), r.Statuses[id]...)
}

type FakeChunker struct {
	Segments []audio.Segment
	Err      error
}

func (f *FakeChunker) Chunk(ctx context.Context, _ string) ([]audio.Segment, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Segments, ctx.Err()
}

// FakeTranscriber returns Text, or blocks until ctx is done when Block is set.
type FakeTranscriber struct {
	Text  string
	Err   error
	Block bool
}

func (f *FakeTranscriber) Transcribe(ctx context.Context, _ []audio.Segment) (string, error) {
	if f.Block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.Text, f.Err
}

type FakeExtractor struct {
	Result types.InsightResult
	Calls  int
}

func (f *FakeExtractor) Extract(context.Context, string) types.InsightResult {
	f.Calls++
	return f.Result
}

type FakeIndexer struct {
	Err   error
	Calls int
}

func (f *FakeIndexer) Index(context.Context, int64, string) error {
	f.Calls++
	return f.Err
}

// FakeLLM serves both embedding and generation calls.
type FakeLLM struct {
	mu        sync.Mutex
	Vector    []float32
	EmbedErr  error
	Fragments []string
	GenErr    error
	Prompts   []string
}

func (f *FakeLLM) Embed(context.Context, string) ([]float32, error) {
	if f.EmbedErr != nil {
		return nil, f.EmbedErr
	}
	if f.Vector == nil {
		return []float32{1, 0, 0}, nil
	}
	return f.Vector, nil
}

func (f *FakeLLM) Generate(_ context.Context, req llm.GenerateRequest, fn func(string) error) error {
	f.mu.Lock()
	f.Prompts = append(f.Prompts, req.Prompt)
	f.mu.Unlock()
	for _, s := range f.Fragments {
		if err := fn(s); err != nil {
			return err
		}
	}
	return f.GenErr
}

// FakeAnswerer returns a fixed answer and records the queries it saw.
type FakeAnswerer struct {
	Reply string

	mu      sync.Mutex
	Queries []string
}

func (f *FakeAnswerer) Answer(_ context.Context, _ int64, query string, _ int) string {
	f.mu.Lock()
	f.Queries = append(f.Queries, query)
	f.mu.Unlock()
	return f.Reply
}
