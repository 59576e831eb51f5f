package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"meeting-insights-go/internal/types"
)

func chunk(meeting int64, pos int, text string, emb ...float32) types.TranscriptChunk {
	return types.TranscriptChunk{
		ID:        chunkID(meeting, pos),
		MeetingID: meeting,
		Position:  pos,
		Text:      text,
		Embedding: emb,
	}
}

func chunkID(meeting int64, pos int) string {
	return fmt.Sprintf("%d_%d", meeting, pos)
}

func TestCosine(t *testing.T) {
	tests := []struct {
		a, b []float32
		want float64
	}{
		{[]float32{1, 0}, []float32{1, 0}, 1},
		{[]float32{1, 0}, []float32{0, 1}, 0},
		{[]float32{1, 0}, []float32{-1, 0}, -1},
		{[]float32{0, 0}, []float32{1, 1}, 0},
		{[]float32{1}, []float32{1, 1}, 0},
	}
	for _, tt := range tests {
		if got := Cosine(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Cosine(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestMemoryIndexScopesByMeeting(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()

	err := idx.Upsert(ctx, []types.TranscriptChunk{
		chunk(1, 0, "budget for meeting one", 1, 0),
		chunk(2, 0, "budget for meeting two", 1, 0),
		chunk(2, 1, "hiring for meeting two", 0, 1),
	})
	if err != nil {
		t.Fatal(err)
	}

	got, err := idx.Query(ctx, []float32{1, 0}, 3, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].MeetingID != 1 {
		t.Fatalf("meeting 1 query returned %+v", got)
	}

	got, _ = idx.Query(ctx, []float32{0, 1}, 3, 2)
	if len(got) != 2 || got[0].Text != "hiring for meeting two" {
		t.Errorf("meeting 2 ranking = %+v", got)
	}

	if got, _ := idx.Query(ctx, []float32{1, 0}, 3, 99); len(got) != 0 {
		t.Errorf("unknown meeting returned %d chunks", len(got))
	}
}

func TestMemoryIndexTopK(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()
	idx.Upsert(ctx, []types.TranscriptChunk{
		chunk(1, 0, "far", 0, 1),
		chunk(1, 1, "close", 1, 0.1),
		chunk(1, 2, "closest", 1, 0),
		chunk(1, 3, "middle", 1, 1),
	})

	got, _ := idx.Query(ctx, []float32{1, 0}, 2, 1)
	if len(got) != 2 || got[0].Text != "closest" || got[1].Text != "close" {
		t.Errorf("top 2 = %+v", got)
	}
}

func TestMemoryIndexUpsertReplacesAndDelete(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()
	idx.Upsert(ctx, []types.TranscriptChunk{chunk(1, 0, "old", 1)})
	idx.Upsert(ctx, []types.TranscriptChunk{chunk(1, 0, "new", 1)})

	if n := idx.Len(1); n != 1 {
		t.Fatalf("Len = %d, want 1", n)
	}
	got, _ := idx.Query(ctx, []float32{1}, 3, 1)
	if got[0].Text != "new" {
		t.Errorf("upsert did not replace: %q", got[0].Text)
	}

	if err := idx.DeleteMeeting(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if n := idx.Len(1); n != 0 {
		t.Errorf("Len after delete = %d", n)
	}
}

func TestMemoryIndexReplaceMeeting(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()
	idx.Upsert(ctx, []types.TranscriptChunk{
		chunk(1, 0, "old a", 1), chunk(1, 1, "old b", 1), chunk(1, 2, "old c", 1),
		chunk(2, 0, "other", 1),
	})

	if err := idx.ReplaceMeeting(ctx, 1, []types.TranscriptChunk{chunk(1, 0, "new", 1)}); err != nil {
		t.Fatal(err)
	}
	if n := idx.Len(1); n != 1 {
		t.Errorf("Len = %d, want 1", n)
	}
	if n := idx.Len(2); n != 1 {
		t.Errorf("other meeting touched: Len = %d", n)
	}

	err := idx.ReplaceMeeting(ctx, 1, []types.TranscriptChunk{chunk(1, 0, "a", 1), chunk(2, 1, "stray", 1)})
	var ie *IndexError
	if !errors.As(err, &ie) || ie.Op != "replace" {
		t.Fatalf("err = %v, want replace IndexError", err)
	}
	got, _ := idx.Query(ctx, []float32{1}, 5, 1)
	if len(got) != 1 || got[0].Text != "new" {
		t.Errorf("rejected replace changed the meeting: %+v", got)
	}
}
