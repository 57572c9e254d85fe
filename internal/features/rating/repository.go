// Package rating — repository.go работает с таблицей ratings.
// Естественный ключ (rater_id, target_kind, target_id): повторная оценка — upsert.
package rating

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"rateme.app/engine/internal/common"
	"rateme.app/engine/internal/db/postgres"
	"rateme.app/engine/internal/features/badges"
)

// Repository хранит оценки.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий оценок.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// GetRating возвращает действующую оценку пары или ErrRatingNotFound.
func (r *Repository) GetRating(ctx context.Context, raterID string, kind TargetKind, targetID string) (*Rating, error) {
	query := `
		SELECT id, rater_id, target_kind, target_id, value, badges, created_at, updated_at
		FROM ratings
		WHERE rater_id = $1 AND target_kind = $2 AND target_id = $3
	`
	return r.scanOne(postgres.Conn(ctx, r.db).QueryRow(ctx, query, raterID, string(kind), targetID))
}

// UpsertRating записывает оценку и возвращает предыдущую (nil, если её не было).
// Вызывается внутри транзакции после блокировки цели.
func (r *Repository) UpsertRating(ctx context.Context, rt *Rating) (*Rating, error) {
	q := postgres.Conn(ctx, r.db)

	prev, err := r.scanOne(q.QueryRow(ctx, `
		SELECT id, rater_id, target_kind, target_id, value, badges, created_at, updated_at
		FROM ratings
		WHERE rater_id = $1 AND target_kind = $2 AND target_id = $3
		FOR UPDATE
	`, rt.RaterID, string(rt.TargetKind), rt.TargetID))
	if err != nil && !errors.Is(err, common.ErrRatingNotFound) {
		return nil, err
	}

	if rt.ID == "" {
		rt.ID = uuid.NewString()
	}
	badgeJSON, err := marshalBadges(rt.Badges)
	if err != nil {
		return nil, err
	}

	err = q.QueryRow(ctx, `
		INSERT INTO ratings (id, rater_id, target_kind, target_id, value, badges)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (rater_id, target_kind, target_id) DO UPDATE
		SET value = EXCLUDED.value, badges = EXCLUDED.badges, updated_at = NOW()
		RETURNING id, created_at, updated_at
	`, rt.ID, rt.RaterID, string(rt.TargetKind), rt.TargetID, rt.Value, badgeJSON,
	).Scan(&rt.ID, &rt.CreatedAt, &rt.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("ошибка записи оценки: %w", err)
	}
	return prev, nil
}

// TargetValues возвращает все действующие значения оценок цели.
func (r *Repository) TargetValues(ctx context.Context, kind TargetKind, targetID string) ([]float64, error) {
	rows, err := postgres.Conn(ctx, r.db).Query(ctx, `
		SELECT value FROM ratings WHERE target_kind = $1 AND target_id = $2
	`, string(kind), targetID)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения оценок цели: %w", err)
	}
	defer rows.Close()

	var values []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("ошибка сканирования оценки: %w", err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения строк: %w", err)
	}
	return values, nil
}

// DeleteRating удаляет оценку пары и возвращает удалённую запись.
func (r *Repository) DeleteRating(ctx context.Context, raterID string, kind TargetKind, targetID string) (*Rating, error) {
	query := `
		DELETE FROM ratings
		WHERE rater_id = $1 AND target_kind = $2 AND target_id = $3
		RETURNING id, rater_id, target_kind, target_id, value, badges, created_at, updated_at
	`
	return r.scanOne(postgres.Conn(ctx, r.db).QueryRow(ctx, query, raterID, string(kind), targetID))
}

// MarkRewarded записывает, что за оценку пары уже заплатили. Запись переживает
// удаление оценки, поэтому «удалить и оценить снова» второй награды не даёт.
// Возвращает true, если запись появилась сейчас.
func (r *Repository) MarkRewarded(ctx context.Context, raterID string, kind TargetKind, targetID string, at time.Time) (bool, error) {
	tag, err := postgres.Conn(ctx, r.db).Exec(ctx, `
		INSERT INTO rating_rewards (rater_id, target_kind, target_id, rewarded_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (rater_id, target_kind, target_id) DO NOTHING
	`, raterID, string(kind), targetID, at)
	if err != nil {
		return false, fmt.Errorf("ошибка записи награды за оценку: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *Repository) scanOne(row pgx.Row) (*Rating, error) {
	var (
		rt        Rating
		kind      string
		badgeJSON []byte
	)
	err := row.Scan(&rt.ID, &rt.RaterID, &kind, &rt.TargetID, &rt.Value, &badgeJSON, &rt.CreatedAt, &rt.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.ErrRatingNotFound
		}
		return nil, fmt.Errorf("ошибка чтения оценки: %w", err)
	}
	rt.TargetKind = TargetKind(kind)
	if len(badgeJSON) > 0 {
		if err := json.Unmarshal(badgeJSON, &rt.Badges); err != nil {
			return nil, fmt.Errorf("ошибка разбора бейджей: %w", err)
		}
	}
	return &rt, nil
}

// marshalBadges возвращает nil для пустого набора, чтобы в БД лёг NULL.
func marshalBadges(s badges.Scores) ([]byte, error) {
	if len(s) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации бейджей: %w", err)
	}
	return b, nil
}
