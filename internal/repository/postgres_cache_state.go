package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/sasagram/streamlog/internal/domain"
)

type postgresCacheStateRepository struct {
	conn Connection
}

func NewPostgresCacheState(conn Connection) domain.CacheStateRepository {
	return &postgresCacheStateRepository{conn: conn}
}

func (p *postgresCacheStateRepository) Get(ctx context.Context, key string) (domain.CacheState, error) {
	query := `
		SELECT key, value_text, updated_at
		FROM app_cache_state
		WHERE key = $1`

	var cs domain.CacheState
	err := p.conn.QueryRow(ctx, query, key).Scan(&cs.Key, &cs.ValueText, &cs.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.CacheState{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.CacheState{}, err
	}
	return cs, nil
}

func (p *postgresCacheStateRepository) Set(ctx context.Context, key, value string) error {
	return setCacheState(ctx, p.conn, key, value)
}

func setCacheState(ctx context.Context, conn Connection, key, value string) error {
	query := `
		INSERT INTO app_cache_state (key, value_text, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET
			value_text = EXCLUDED.value_text,
			updated_at = NOW()`

	_, err := conn.Exec(ctx, query, key, value)
	return err
}
