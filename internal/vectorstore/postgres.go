package vectorstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"meeting-insights-go/internal/types"
)

const chunkSchema = `
CREATE TABLE IF NOT EXISTS transcript_chunks (
	id         TEXT PRIMARY KEY,
	meeting_id BIGINT NOT NULL,
	position   INT NOT NULL,
	content    TEXT NOT NULL,
	embedding  REAL[] NOT NULL
);
CREATE INDEX IF NOT EXISTS transcript_chunks_meeting_idx ON transcript_chunks (meeting_id);
`

// PostgresIndex stores embeddings as real[] and ranks a meeting's rows by
// cosine similarity in process.
type PostgresIndex struct {
	pool *pgxpool.Pool
}

func NewPostgresIndex(pool *pgxpool.Pool) *PostgresIndex {
	return &PostgresIndex{pool: pool}
}

func (p *PostgresIndex) Migrate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, chunkSchema); err != nil {
		return &IndexError{Op: "migrate", Err: err}
	}
	return nil
}

func (p *PostgresIndex) Upsert(ctx context.Context, chunks []types.TranscriptChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := p.pool.SendBatch(ctx, upsertBatch(chunks)).Close(); err != nil {
		return &IndexError{Op: "upsert", Err: err}
	}
	return nil
}

func upsertBatch(chunks []types.TranscriptChunk) *pgx.Batch {
	batch := &pgx.Batch{}
	for _, c := range chunks {
		batch.Queue(`
			INSERT INTO transcript_chunks (id, meeting_id, position, content, embedding)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE
			SET meeting_id = EXCLUDED.meeting_id, position = EXCLUDED.position,
			    content = EXCLUDED.content, embedding = EXCLUDED.embedding
		`, c.ID, c.MeetingID, c.Position, c.Text, c.Embedding)
	}
	return batch
}

// ReplaceMeeting deletes and reinserts the meeting's rows in one transaction.
func (p *PostgresIndex) ReplaceMeeting(ctx context.Context, meetingID int64, chunks []types.TranscriptChunk) error {
	for _, c := range chunks {
		if c.MeetingID != meetingID {
			return &IndexError{Op: "replace", Err: fmt.Errorf("chunk %s belongs to meeting %d, not %d", c.ID, c.MeetingID, meetingID)}
		}
	}
	err := pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM transcript_chunks WHERE meeting_id = $1`, meetingID); err != nil {
			return err
		}
		if len(chunks) == 0 {
			return nil
		}
		return tx.SendBatch(ctx, upsertBatch(chunks)).Close()
	})
	if err != nil {
		return &IndexError{Op: "replace", Err: err}
	}
	return nil
}

func (p *PostgresIndex) Query(ctx context.Context, embedding []float32, k int, meetingID int64) ([]types.TranscriptChunk, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, position, content, embedding
		FROM transcript_chunks
		WHERE meeting_id = $1
	`, meetingID)
	if err != nil {
		return nil, &IndexError{Op: "query", Err: err}
	}
	defer rows.Close()

	var candidates []types.TranscriptChunk
	for rows.Next() {
		c := types.TranscriptChunk{MeetingID: meetingID}
		if err := rows.Scan(&c.ID, &c.Position, &c.Text, &c.Embedding); err != nil {
			return nil, &IndexError{Op: "scan", Err: err}
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, &IndexError{Op: "query", Err: err}
	}
	return topK(embedding, candidates, k), nil
}

func (p *PostgresIndex) DeleteMeeting(ctx context.Context, meetingID int64) error {
	if _, err := p.pool.Exec(ctx, `DELETE FROM transcript_chunks WHERE meeting_id = $1`, meetingID); err != nil {
		return &IndexError{Op: "delete", Err: err}
	}
	return nil
}
