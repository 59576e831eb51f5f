package store

import (
	"context"
	"errors"

	"meeting-insights-go/internal/types"
)

var (
	ErrNotFound          = errors.New("meeting not found")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// MeetingStore persists meeting records. Implementations are safe for
// concurrent use.
type MeetingStore interface {
	Create(ctx context.Context, filename string) (types.Meeting, error)
	Get(ctx context.Context, id int64) (types.Meeting, error)
	// List returns meetings newest first. limit <= 0 means no limit.
	List(ctx context.Context, skip, limit int) ([]types.Meeting, error)
	// UpdateStatus rejects moves the status machine does not allow.
	UpdateStatus(ctx context.Context, id int64, status types.Status) error
	UpdateTranscript(ctx context.Context, id int64, transcript string) error
	UpdateInsights(ctx context.Context, id int64, in types.InsightResult) error
}
