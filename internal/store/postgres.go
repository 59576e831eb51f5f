package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"meeting-insights-go/internal/types"
)

const meetingSchema = `
CREATE TABLE IF NOT EXISTS meetings (
	id           BIGSERIAL PRIMARY KEY,
	filename     TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'processing',
	transcript   TEXT,
	summary      TEXT,
	action_items TEXT,
	decisions    TEXT,
	keywords     TEXT,
	participants TEXT,
	sentiment    TEXT,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS meetings_created_at_idx ON meetings (created_at DESC);
`

const meetingColumns = `id, filename, status, transcript, summary, action_items, decisions, keywords, participants, sentiment, created_at`

// Connect opens a pgx pool and verifies it with a ping.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, meetingSchema); err != nil {
		return fmt.Errorf("migrate meetings: %w", err)
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, filename string) (types.Meeting, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO meetings (filename, status) VALUES ($1, $2) RETURNING `+meetingColumns,
		filename, string(types.StatusProcessing),
	)
	m, err := scanMeeting(row)
	if err != nil {
		return types.Meeting{}, fmt.Errorf("create meeting: %w", err)
	}
	return m, nil
}

func (s *PostgresStore) Get(ctx context.Context, id int64) (types.Meeting, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+meetingColumns+` FROM meetings WHERE id = $1`, id)
	m, err := scanMeeting(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return types.Meeting{}, ErrNotFound
	}
	if err != nil {
		return types.Meeting{}, fmt.Errorf("get meeting %d: %w", id, err)
	}
	return m, nil
}

func (s *PostgresStore) List(ctx context.Context, skip, limit int) ([]types.Meeting, error) {
	if skip < 0 {
		skip = 0
	}
	var lim any // NULL means no limit
	if limit > 0 {
		lim = limit
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+meetingColumns+` FROM meetings ORDER BY created_at DESC, id DESC OFFSET $1 LIMIT $2`,
		skip, lim,
	)
	if err != nil {
		return nil, fmt.Errorf("list meetings: %w", err)
	}
	defer rows.Close()

	out := []types.Meeting{}
	for rows.Next() {
		m, err := scanMeeting(rows)
		if err != nil {
			return nil, fmt.Errorf("scan meeting: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, id int64, status types.Status) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var current types.Status
		err := tx.QueryRow(ctx, `SELECT status FROM meetings WHERE id = $1 FOR UPDATE`, id).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("read status of meeting %d: %w", id, err)
		}
		if !current.CanTransition(status) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, status)
		}
		if _, err := tx.Exec(ctx, `UPDATE meetings SET status = $2 WHERE id = $1`, id, string(status)); err != nil {
			return fmt.Errorf("update status of meeting %d: %w", id, err)
		}
		return nil
	})
}

func (s *PostgresStore) UpdateTranscript(ctx context.Context, id int64, transcript string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE meetings SET transcript = $2 WHERE id = $1`, id, transcript)
	if err != nil {
		return fmt.Errorf("update transcript of meeting %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) UpdateInsights(ctx context.Context, id int64, in types.InsightResult) error {
	items, err := json.Marshal(in.ActionItems)
	if err != nil {
		return err
	}
	decisions, err := json.Marshal(in.Decisions)
	if err != nil {
		return err
	}
	keywords, err := json.Marshal(in.Keywords)
	if err != nil {
		return err
	}
	participants, err := json.Marshal(in.Participants)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE meetings
		SET summary = $2, action_items = $3, decisions = $4, keywords = $5, participants = $6, sentiment = $7
		WHERE id = $1
	`, id, in.Summary, string(items), string(decisions), string(keywords), string(participants), string(in.Sentiment))
	if err != nil {
		return fmt.Errorf("update insights of meeting %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanMeeting(row pgx.Row) (types.Meeting, error) {
	var (
		m                                              types.Meeting
		transcript, summary, sentiment                 *string
		actionItems, decisions, keywords, participants *string
	)
	err := row.Scan(&m.ID, &m.Filename, &m.Status, &transcript, &summary,
		&actionItems, &decisions, &keywords, &participants, &sentiment, &m.CreatedAt)
	if err != nil {
		return types.Meeting{}, err
	}
	m.Transcript = deref(transcript)
	m.Summary = deref(summary)
	m.Sentiment = types.Sentiment(deref(sentiment))

	if err := decodeList(actionItems, &m.ActionItems); err != nil {
		return types.Meeting{}, fmt.Errorf("action_items: %w", err)
	}
	if err := decodeList(decisions, &m.Decisions); err != nil {
		return types.Meeting{}, fmt.Errorf("decisions: %w", err)
	}
	if err := decodeList(keywords, &m.Keywords); err != nil {
		return types.Meeting{}, fmt.Errorf("keywords: %w", err)
	}
	if err := decodeList(participants, &m.Participants); err != nil {
		return types.Meeting{}, fmt.Errorf("participants: %w", err)
	}
	return m, nil
}

func decodeList[T any](raw *string, dst *[]T) error {
	if raw == nil || *raw == "" {
		*dst = nil
		return nil
	}
	return json.Unmarshal([]byte(*raw), dst)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
