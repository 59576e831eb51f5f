package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"meeting-insights-go/internal/types"
)

type MemoryStore struct {
	mu       sync.RWMutex
	nextID   int64
	meetings map[int64]*types.Meeting
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{meetings: make(map[int64]*types.Meeting), now: time.Now}
}

func (s *MemoryStore) Create(_ context.Context, filename string) (types.Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	m := &types.Meeting{
		ID:        s.nextID,
		Filename:  filename,
		Status:    types.StatusProcessing,
		CreatedAt: s.now().UTC(),
	}
	s.meetings[m.ID] = m
	return clone(m), nil
}

func (s *MemoryStore) Get(_ context.Context, id int64) (types.Meeting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.meetings[id]
	if !ok {
		return types.Meeting{}, ErrNotFound
	}
	return clone(m), nil
}

func (s *MemoryStore) List(_ context.Context, skip, limit int) ([]types.Meeting, error) {
	s.mu.RLock()
	all := make([]types.Meeting, 0, len(s.meetings))
	for _, m := range s.meetings {
		all = append(all, clone(m))
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})
	if skip < 0 {
		skip = 0
	}
	if skip >= len(all) {
		return []types.Meeting{}, nil
	}
	all = all[skip:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (s *MemoryStore) UpdateStatus(_ context.Context, id int64, status types.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.meetings[id]
	if !ok {
		return ErrNotFound
	}
	if !m.Status.CanTransition(status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, m.Status, status)
	}
	m.Status = status
	return nil
}

func (s *MemoryStore) UpdateTranscript(_ context.Context, id int64, transcript string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.meetings[id]
	if !ok {
		return ErrNotFound
	}
	m.Transcript = transcript
	return nil
}

func (s *MemoryStore) UpdateInsights(_ context.Context, id int64, in types.InsightResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.meetings[id]
	if !ok {
		return ErrNotFound
	}
	m.ApplyInsights(in)
	return nil
}

func clone(m *types.Meeting) types.Meeting {
	c := *m
	c.ActionItems = append([]types.ActionItem(nil), m.ActionItems...)
	c.Decisions = append([]string(nil), m.Decisions...)
	c.Keywords = append([]types.Keyword(nil), m.Keywords...)
	c.Participants = append([]string(nil), m.Participants...)
	return c
}
