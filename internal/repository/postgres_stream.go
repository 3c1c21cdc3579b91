package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/sasagram/streamlog/internal/domain"
)

const streamColumns = `id, started_at, duration_hours::float8, title, stream_url, created_at`

type postgresStreamRepository struct {
	conn Connection
}

func NewPostgresStream(conn Connection) domain.StreamRepository {
	return &postgresStreamRepository{conn: conn}
}

func (p *postgresStreamRepository) fetch(ctx context.Context, query string, args ...interface{}) ([]domain.StreamRecord, error) {
	rows, err := p.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var srs []domain.StreamRecord
	for rows.Next() {
		var sr domain.StreamRecord
		if err := rows.Scan(
			&sr.ID,
			&sr.StartedAt,
			&sr.DurationHours,
			&sr.Title,
			&sr.StreamURL,
			&sr.CreatedAt,
		); err != nil {
			return nil, err
		}
		srs = append(srs, sr)
	}
	return srs, rows.Err()
}

func (p *postgresStreamRepository) List(ctx context.Context) ([]domain.StreamRecord, error) {
	query := `
		SELECT ` + streamColumns + `
		FROM streams
		ORDER BY started_at DESC`

	return p.fetch(ctx, query)
}

func (p *postgresStreamRepository) ListSince(ctx context.Context, since time.Time) ([]domain.StreamRecord, error) {
	query := `
		SELECT ` + streamColumns + `
		FROM streams
		WHERE started_at >= $1
		ORDER BY started_at DESC`

	return p.fetch(ctx, query, since.UTC())
}

func upsertStream(ctx context.Context, conn Connection, in domain.StreamInput) (domain.StreamRecord, error) {
	query := `
		INSERT INTO streams (started_at, duration_hours, title, stream_url)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (started_at) DO UPDATE SET
			duration_hours = GREATEST(streams.duration_hours, EXCLUDED.duration_hours),
			title = COALESCE(EXCLUDED.title, streams.title),
			stream_url = COALESCE(EXCLUDED.stream_url, streams.stream_url)
		RETURNING ` + streamColumns

	var sr domain.StreamRecord
	err := conn.QueryRow(
		ctx,
		query,
		in.StartedAt,
		domain.RoundHours(in.DurationHours),
		in.Title,
		in.StreamURL,
	).Scan(
		&sr.ID,
		&sr.StartedAt,
		&sr.DurationHours,
		&sr.Title,
		&sr.StreamURL,
		&sr.CreatedAt,
	)
	if err != nil {
		return domain.StreamRecord{}, fmt.Errorf("upsert stream %s: %w", in.StartedAt.Format(time.RFC3339), err)
	}
	return sr, nil
}

func (p *postgresStreamRepository) Upsert(ctx context.Context, in domain.StreamInput) (domain.StreamRecord, error) {
	if err := in.Validate(); err != nil {
		return domain.StreamRecord{}, err
	}

	return upsertStream(ctx, p.conn, in.Normalized())
}

func (p *postgresStreamRepository) UpsertMany(ctx context.Context, ins []domain.StreamInput) ([]domain.StreamRecord, error) {
	normalized := make([]domain.StreamInput, 0, len(ins))
	for i, in := range ins {
		if err := in.Validate(); err != nil {
			return nil, &domain.ValidationError{Err: fmt.Errorf("streams[%d]: %w", i, err)}
		}
		normalized = append(normalized, in.Normalized())
	}

	srs := make([]domain.StreamRecord, 0, len(normalized))
	err := pgx.BeginFunc(ctx, p.conn, func(tx pgx.Tx) error {
		for _, in := range normalized {
			sr, err := upsertStream(ctx, tx, in)
			if err != nil {
				return err
			}
			srs = append(srs, sr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return srs, nil
}
