package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/sasagram/streamlog/internal/domain"
)

type postgresMediaRepository struct {
	conn Connection
}

func NewPostgresMedia(conn Connection) domain.MediaRepository {
	return &postgresMediaRepository{conn: conn}
}

func (p *postgresMediaRepository) ListVods(ctx context.Context, limit int) ([]domain.Vod, error) {
	query := `
		SELECT id, title, url, COALESCE(thumbnail_url, ''), view_count, COALESCE(duration, ''),
			created_at, COALESCE(description, ''), updated_at
		FROM platform_vods
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := p.conn.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vods []domain.Vod
	for rows.Next() {
		var v domain.Vod
		if err := rows.Scan(
			&v.ID,
			&v.Title,
			&v.URL,
			&v.ThumbnailURL,
			&v.ViewCount,
			&v.Duration,
			&v.CreatedAt,
			&v.Description,
			&v.UpdatedAt,
		); err != nil {
			return nil, err
		}
		vods = append(vods, v)
	}
	return vods, rows.Err()
}

func (p *postgresMediaRepository) ListClips(ctx context.Context, limit int) ([]domain.Clip, error) {
	query := `
		SELECT id, title, url, COALESCE(thumbnail_url, ''), view_count, created_at,
			COALESCE(duration_seconds, 0)::float8, COALESCE(creator_name, ''), updated_at
		FROM platform_clips
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := p.conn.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clips []domain.Clip
	for rows.Next() {
		var c domain.Clip
		if err := rows.Scan(
			&c.ID,
			&c.Title,
			&c.URL,
			&c.ThumbnailURL,
			&c.ViewCount,
			&c.CreatedAt,
			&c.DurationSeconds,
			&c.CreatorName,
			&c.UpdatedAt,
		); err != nil {
			return nil, err
		}
		clips = append(clips, c)
	}
	return clips, rows.Err()
}

func (p *postgresMediaRepository) ReplaceSnapshot(ctx context.Context, vods []domain.Vod, clips []domain.Clip, syncedAt time.Time) error {
	vodQuery := `
		INSERT INTO platform_vods (id, title, url, thumbnail_url, view_count, duration, created_at, description, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			url = EXCLUDED.url,
			thumbnail_url = EXCLUDED.thumbnail_url,
			view_count = EXCLUDED.view_count,
			duration = EXCLUDED.duration,
			created_at = EXCLUDED.created_at,
			description = EXCLUDED.description,
			updated_at = NOW()`

	clipQuery := `
		INSERT INTO platform_clips (id, title, url, thumbnail_url, view_count, created_at, duration_seconds, creator_name, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			url = EXCLUDED.url,
			thumbnail_url = EXCLUDED.thumbnail_url,
			view_count = EXCLUDED.view_count,
			created_at = EXCLUDED.created_at,
			duration_seconds = EXCLUDED.duration_seconds,
			creator_name = EXCLUDED.creator_name,
			updated_at = NOW()`

	return pgx.BeginFunc(ctx, p.conn, func(tx pgx.Tx) error {
		for _, v := range vods {
			if _, err := tx.Exec(
				ctx,
				vodQuery,
				v.ID,
				v.Title,
				v.URL,
				v.ThumbnailURL,
				v.ViewCount,
				v.Duration,
				v.CreatedAt,
				v.Description,
			); err != nil {
				return fmt.Errorf("upsert vod %s: %w", v.ID, err)
			}
		}

		for _, c := range clips {
			if _, err := tx.Exec(
				ctx,
				clipQuery,
				c.ID,
				c.Title,
				c.URL,
				c.ThumbnailURL,
				c.ViewCount,
				c.CreatedAt,
				c.DurationSeconds,
				c.CreatorName,
			); err != nil {
				return fmt.Errorf("upsert clip %s: %w", c.ID, err)
			}
		}

		return setCacheState(ctx, tx, domain.MediaCacheKey, syncedAt.UTC().Format(time.RFC3339Nano))
	})
}
