// Package streak — repository.go выполняет операции с таблицей streaks.
package streak

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"rateme.app/engine/internal/common"
	"rateme.app/engine/internal/db/postgres"
)

// Repository предоставляет методы для работы с таблицей streaks.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт новый репозиторий стриков.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// CreateStreak создаёт нулевую запись стрика для нового участника.
func (r *Repository) CreateStreak(ctx context.Context, userID string) error {
	_, err := postgres.Conn(ctx, r.db).Exec(ctx, `
		INSERT INTO streaks (user_id, streak_days, longest_streak, pending_day)
		VALUES ($1, 0, 0, 0)
		ON CONFLICT (user_id) DO NOTHING
	`, userID)
	if err != nil {
		return fmt.Errorf("ошибка создания стрика: %w", err)
	}
	return nil
}

// GetStreak возвращает стрик. forUpdate блокирует строку до конца транзакции.
func (r *Repository) GetStreak(ctx context.Context, userID string, forUpdate bool) (*Streak, error) {
	query := `
		SELECT user_id, streak_days, longest_streak, COALESCE(offer_session, ''), pending_day,
		       last_claimed_at, last_active_at, created_at, updated_at
		FROM streaks
		WHERE user_id = $1
	`
	if forUpdate {
		query += " FOR UPDATE"
	}

	var s Streak
	err := postgres.Conn(ctx, r.db).QueryRow(ctx, query, userID).Scan(
		&s.UserID, &s.StreakDays, &s.LongestStreak, &s.OfferSession, &s.PendingDay,
		&s.LastClaimedAt, &s.LastActiveAt, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("стрик не найден (user_id=%s): %w", userID, common.ErrUserNotFound)
		}
		return nil, fmt.Errorf("ошибка чтения стрика: %w", err)
	}
	return &s, nil
}

// SaveOffer запоминает предложение дня day, сделанное в сессии sessionID.
func (r *Repository) SaveOffer(ctx context.Context, userID, sessionID string, day int) error {
	_, err := postgres.Conn(ctx, r.db).Exec(ctx, `
		UPDATE streaks
		SET offer_session = $2, pending_day = $3, updated_at = NOW()
		WHERE user_id = $1
	`, userID, sessionID, day)
	if err != nil {
		return fmt.Errorf("ошибка сохранения предложения стрика: %w", err)
	}
	return nil
}

// MarkActive отмечает, что пользователь оценивал в момент at.
func (r *Repository) MarkActive(ctx context.Context, userID string, at time.Time) error {
	_, err := postgres.Conn(ctx, r.db).Exec(ctx, `
		UPDATE streaks SET last_active_at = $2, updated_at = NOW() WHERE user_id = $1
	`, userID, at)
	if err != nil {
		return fmt.Errorf("ошибка обновления активности: %w", err)
	}
	return nil
}

// ClaimStreak засчитывает день: streak_days = day, предложение гасится.
func (r *Repository) ClaimStreak(ctx context.Context, userID string, day int, at time.Time) error {
	_, err := postgres.Conn(ctx, r.db).Exec(ctx, `
		UPDATE streaks
		SET streak_days = $2,
		    longest_streak = GREATEST(longest_streak, $2),
		    pending_day = 0,
		    last_claimed_at = $3,
		    updated_at = NOW()
		WHERE user_id = $1
	`, userID, day, at)
	if err != nil {
		return fmt.Errorf("ошибка засчитывания стрика: %w", err)
	}
	return nil
}

// BreakInactive обнуляет стрики всех, кто не был активен с момента before.
// Возвращает число сброшенных стриков.
func (r *Repository) BreakInactive(ctx context.Context, before time.Time) (int64, error) {
	tag, err := postgres.Conn(ctx, r.db).Exec(ctx, `
		UPDATE streaks
		SET streak_days = 0, pending_day = 0, updated_at = NOW()
		WHERE streak_days > 0 AND (last_active_at IS NULL OR last_active_at < $1)
	`, before)
	if err != nil {
		return 0, fmt.Errorf("ошибка сброса стриков: %w", err)
	}
	return tag.RowsAffected(), nil
}
