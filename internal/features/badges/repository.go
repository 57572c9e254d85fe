// Package badges — repository.go работает с таблицей badge_averages.
package badges

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"rateme.app/engine/internal/common"
	"rateme.app/engine/internal/db/postgres"
)

// Repository хранит средние бейджей.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий бейджей.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// CreateBadgeSet создаёт нулевой набор для нового пользователя.
func (r *Repository) CreateBadgeSet(ctx context.Context, userID string) error {
	_, err := postgres.Conn(ctx, r.db).Exec(ctx, `
		INSERT INTO badge_averages (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING
	`, userID)
	if err != nil {
		return fmt.Errorf("ошибка создания бейджей: %w", err)
	}
	return nil
}

// GetBadgeSet возвращает набор. forUpdate блокирует строку до конца транзакции.
func (r *Repository) GetBadgeSet(ctx context.Context, userID string, forUpdate bool) (*Set, error) {
	query := `
		SELECT intelligence, charisma, affectionate, humor, active, extroverted, describe_count
		FROM badge_averages
		WHERE user_id = $1
	`
	if forUpdate {
		query += " FOR UPDATE"
	}

	s := NewSet(userID)
	var vals [6]float64
	err := postgres.Conn(ctx, r.db).QueryRow(ctx, query, userID).Scan(
		&vals[0], &vals[1], &vals[2], &vals[3], &vals[4], &vals[5], &s.Count,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("бейджи не найдены (user_id=%s): %w", userID, common.ErrUserNotFound)
		}
		return nil, fmt.Errorf("ошибка чтения бейджей: %w", err)
	}
	for i, k := range Keys {
		s.Averages[k] = vals[i]
	}
	return s, nil
}

// SaveBadgeSet записывает все шесть средних и счётчик.
func (r *Repository) SaveBadgeSet(ctx context.Context, s *Set) error {
	_, err := postgres.Conn(ctx, r.db).Exec(ctx, `
		UPDATE badge_averages
		SET intelligence = $2, charisma = $3, affectionate = $4, humor = $5,
		    active = $6, extroverted = $7, describe_count = $8, updated_at = NOW()
		WHERE user_id = $1
	`, s.UserID,
		s.Averages[Intelligence], s.Averages[Charisma], s.Averages[Affectionate],
		s.Averages[Humor], s.Averages[Active], s.Averages[Extroverted], s.Count,
	)
	if err != nil {
		return fmt.Errorf("ошибка сохранения бейджей: %w", err)
	}
	return nil
}
