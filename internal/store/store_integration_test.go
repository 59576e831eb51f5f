package store

import (
	"context"
	"errors"
	"os"
	"testing"

	"meeting-insights-go/internal/types"
)

func setupPostgresStore(t *testing.T) *PostgresStore {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}
	ctx := context.Background()
	pool, err := Connect(ctx, url)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	t.Cleanup(pool.Close)

	s := NewPostgresStore(pool)
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

func TestIntegration_MeetingRoundTrip(t *testing.T) {
	s := setupPostgresStore(t)
	ctx := context.Background()

	m, err := s.Create(ctx, "integration.wav")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if m.Status != types.StatusProcessing || m.CreatedAt.IsZero() {
		t.Fatalf("created %+v", m)
	}

	if err := s.UpdateStatus(ctx, m.ID, types.StatusTranscribing); err != nil {
		t.Fatal(err)
	}
	if err := s.UpdateStatus(ctx, m.ID, types.StatusCompleted); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("skip to completed: %v", err)
	}
	if err := s.UpdateTranscript(ctx, m.ID, "we shipped it"); err != nil {
		t.Fatal(err)
	}
	err = s.UpdateInsights(ctx, m.ID, types.InsightResult{
		Participants: []string{"Ana"},
		Summary:      "Shipped.",
		ActionItems:  []types.ActionItem{{Task: "Write notes", AssignedTo: "Ana"}},
		Decisions:    []string{"Ship"},
		Keywords:     []types.Keyword{{Keyword: "shipped", Count: 1}},
		Sentiment:    types.SentimentPositive,
	})
	if err != nil {
		t.Fatal(err)
	}

	got, err := s.Get(ctx, m.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Transcript != "we shipped it" || got.ActionItems[0].AssignedTo != "Ana" || got.Keywords[0].Count != 1 {
		t.Errorf("got %+v", got)
	}

	list, err := s.List(ctx, 0, 1)
	if err != nil || len(list) != 1 {
		t.Fatalf("List: %v, %d rows", err, len(list))
	}

	if _, err := s.Get(ctx, -1); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(-1): %v", err)
	}
}
