package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"meeting-insights-go/internal/types"
)

func TestMemoryStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	m, err := s.Create(ctx, "standup.mp3")
	if err != nil {
		t.Fatal(err)
	}
	if m.ID != 1 || m.Status != types.StatusProcessing {
		t.Fatalf("created %+v", m)
	}

	for _, st := range []types.Status{types.StatusTranscribing, types.StatusAnalyzing, types.StatusCompleted} {
		if err := s.UpdateStatus(ctx, m.ID, st); err != nil {
			t.Fatalf("UpdateStatus(%s): %v", st, err)
		}
	}
	if err := s.UpdateStatus(ctx, m.ID, types.StatusFailed); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("completed -> failed: err = %v", err)
	}

	if err := s.UpdateTranscript(ctx, m.ID, "hello"); err != nil {
		t.Fatal(err)
	}
	in := types.FailedInsights()
	in.Participants = []string{"Ana"}
	if err := s.UpdateInsights(ctx, m.ID, in); err != nil {
		t.Fatal(err)
	}

	got, err := s.Get(ctx, m.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Transcript != "hello" || got.Summary != types.ExtractionFailedSummary || got.Participants[0] != "Ana" {
		t.Errorf("got %+v", got)
	}

	got.Participants[0] = "mutated"
	again, _ := s.Get(ctx, m.ID)
	if again.Participants[0] != "Ana" {
		t.Error("Get returned shared slice")
	}
}

func TestMemoryStoreRejectsSkippedStates(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	m, _ := s.Create(ctx, "a.wav")
	if err := s.UpdateStatus(ctx, m.ID, types.StatusCompleted); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("processing -> completed: err = %v", err)
	}
	if err := s.UpdateStatus(ctx, m.ID, types.StatusFailed); err != nil {
		t.Errorf("processing -> failed: %v", err)
	}
}

func TestMemoryStoreNotFound(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if _, err := s.Get(ctx, 42); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get: %v", err)
	}
	if err := s.UpdateStatus(ctx, 42, types.StatusFailed); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateStatus: %v", err)
	}
	if err := s.UpdateTranscript(ctx, 42, "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateTranscript: %v", err)
	}
}

func TestMemoryStoreListNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	tick := 0
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}
	for _, name := range []string{"a", "b", "c", "d"} {
		s.Create(ctx, name)
	}

	all, _ := s.List(ctx, 0, 0)
	if len(all) != 4 || all[0].Filename != "d" || all[3].Filename != "a" {
		t.Fatalf("order = %v", filenames(all))
	}

	page, _ := s.List(ctx, 1, 2)
	if got := filenames(page); len(got) != 2 || got[0] != "c" || got[1] != "b" {
		t.Errorf("page = %v", got)
	}

	if empty, _ := s.List(ctx, 10, 5); len(empty) != 0 {
		t.Errorf("skip past end = %v", filenames(empty))
	}
}

func filenames(ms []types.Meeting) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.Filename
	}
	return out
}
