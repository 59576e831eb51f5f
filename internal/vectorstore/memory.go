package vectorstore

import (
	"context"
	"fmt"
	"sync"

	"meeting-insights-go/internal/types"
)

// MemoryIndex keeps chunks in process. Used when no database is configured.
type MemoryIndex struct {
	mu     sync.RWMutex
	chunks map[int64]map[string]types.TranscriptChunk
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{chunks: make(map[int64]map[string]types.TranscriptChunk)}
}

func (m *MemoryIndex) Upsert(_ context.Context, chunks []types.TranscriptChunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(chunks)
	return nil
}

func (m *MemoryIndex) put(chunks []types.TranscriptChunk) {
	for _, c := range chunks {
		byID, ok := m.chunks[c.MeetingID]
		if !ok {
			byID = make(map[string]types.TranscriptChunk)
			m.chunks[c.MeetingID] = byID
		}
		c.Embedding = append([]float32(nil), c.Embedding...)
		byID[c.ID] = c
	}
}

func (m *MemoryIndex) Query(ctx context.Context, embedding []float32, k int, meetingID int64) ([]types.TranscriptChunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, &IndexError{Op: "query", Err: err}
	}
	m.mu.RLock()
	candidates := make([]types.TranscriptChunk, 0, len(m.chunks[meetingID]))
	for _, c := range m.chunks[meetingID] {
		candidates = append(candidates, c)
	}
	m.mu.RUnlock()
	return topK(embedding, candidates, k), nil
}

func (m *MemoryIndex) DeleteMeeting(_ context.Context, meetingID int64) error {
	m.mu.Lock()
	delete(m.chunks, meetingID)
	m.mu.Unlock()
	return nil
}

func (m *MemoryIndex) ReplaceMeeting(ctx context.Context, meetingID int64, chunks []types.TranscriptChunk) error {
	if err := ctx.Err(); err != nil {
		return &IndexError{Op: "replace", Err: err}
	}
	for _, c := range chunks {
		if c.MeetingID != meetingID {
			return &IndexError{Op: "replace", Err: fmt.Errorf("chunk %s belongs to meeting %d, not %d", c.ID, c.MeetingID, meetingID)}
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.chunks, meetingID)
	m.put(chunks)
	return nil
}

// Len reports how many chunks are stored for meetingID.
func (m *MemoryIndex) Len(meetingID int64) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.chunks[meetingID])
}
