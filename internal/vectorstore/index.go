// Package vectorstore holds embedded transcript chunks and answers
// meeting-scoped similarity queries.
package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"

	"meeting-insights-go/internal/types"
)

// Index is a meeting-scoped vector store.
type Index interface {
	// Upsert inserts or replaces chunks by ID.
	Upsert(ctx context.Context, chunks []types.TranscriptChunk) error
	// Query returns at most k chunks of meetingID, most similar first.
	Query(ctx context.Context, embedding []float32, k int, meetingID int64) ([]types.TranscriptChunk, error)
	DeleteMeeting(ctx context.Context, meetingID int64) error
	// ReplaceMeeting swaps every chunk of meetingID for chunks in one step.
	// On error the previous chunks stay in place.
	ReplaceMeeting(ctx context.Context, meetingID int64, chunks []types.TranscriptChunk) error
}

// IndexError wraps a failure of the underlying store.
type IndexError struct {
	Op  string
	Err error
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("vector index %s: %v", e.Op, e.Err)
}

func (e *IndexError) Unwrap() error { return e.Err }

// Cosine returns the cosine similarity of a and b, or 0 when either is zero
// or their lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

type scored struct {
	chunk types.TranscriptChunk
	score float64
}

// topK ranks candidates by similarity to q. Equal scores keep chunk position
// order.
func topK(q []float32, candidates []types.TranscriptChunk, k int) []types.TranscriptChunk {
	if k <= 0 || len(candidates) == 0 {
		return nil
	}
	ranked := make([]scored, len(candidates))
	for i, c := range candidates {
		ranked[i] = scored{chunk: c, score: Cosine(q, c.Embedding)}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].chunk.Position < ranked[j].chunk.Position
	})
	if len(ranked) > k {
		ranked = ranked[:k]
	}
	out := make([]types.TranscriptChunk, len(ranked))
	for i, r := range ranked {
		out[i] = r.chunk
	}
	return out
}
