// Package cooldown — repository.go работает с таблицей cooldowns.
package cooldown

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"rateme.app/engine/internal/db/postgres"
)

// Repository хранит часы кулдауна по парам (rater, target).
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий кулдаунов.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// GetCooldown возвращает запись пары или nil, если оценок ещё не было.
func (r *Repository) GetCooldown(ctx context.Context, raterID, targetID string) (*Record, error) {
	rec := Record{RaterID: raterID, TargetID: targetID}
	err := postgres.Conn(ctx, r.db).QueryRow(ctx, `
		SELECT last_free_rating_at FROM cooldowns
		WHERE rater_id = $1 AND target_id = $2
	`, raterID, targetID).Scan(&rec.LastFreeRatingAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("ошибка чтения кулдауна: %w", err)
	}
	return &rec, nil
}

// TouchCooldown переводит часы пары на at. Вызывается только после бесплатной оценки.
func (r *Repository) TouchCooldown(ctx context.Context, raterID, targetID string, at time.Time) error {
	_, err := postgres.Conn(ctx, r.db).Exec(ctx, `
		INSERT INTO cooldowns (rater_id, target_id, last_free_rating_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (rater_id, target_id) DO UPDATE
		SET last_free_rating_at = EXCLUDED.last_free_rating_at
	`, raterID, targetID, at)
	if err != nil {
		return fmt.Errorf("ошибка обновления кулдауна: %w", err)
	}
	return nil
}
