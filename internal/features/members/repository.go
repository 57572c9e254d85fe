// Package members — repository.go отвечает за все операции с таблицей members в БД.
package members

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"rateme.app/engine/internal/common"
	"rateme.app/engine/internal/db/postgres"
)

// uniqueViolation — код ошибки PostgreSQL для нарушения UNIQUE.
const uniqueViolation = "23505"

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const memberColumns = `id, username, display_name, average_score, total_ratings, telegram_chat_id, created_at, updated_at`

// CreateMember добавляет профиль. Занятый username — ErrUsernameTaken.
func (r *Repository) CreateMember(ctx context.Context, m *Member) error {
	err := postgres.Conn(ctx, r.db).QueryRow(ctx, `
		INSERT INTO members (id, username, display_name, telegram_chat_id)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`, m.ID, m.Username, m.DisplayName, m.TelegramChatID).Scan(&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("участник %s: %w", m.Username, common.ErrUsernameTaken)
		}
		return fmt.Errorf("ошибка создания участника: %w", err)
	}
	return nil
}

// GetMember возвращает профиль. forUpdate блокирует строку: так сериализуются
// конкурентные оценки одного профиля.
func (r *Repository) GetMember(ctx context.Context, id string, forUpdate bool) (*Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE id = $1`
	if forUpdate {
		query += " FOR UPDATE"
	}
	m, err := scanMember(postgres.Conn(ctx, r.db).QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("участник не найден (id=%s): %w", id, common.ErrUserNotFound)
		}
		return nil, fmt.Errorf("ошибка чтения участника (id=%s): %w", id, err)
	}
	return m, nil
}

// GetMemberByUsername ищет профиль по точному совпадению username.
func (r *Repository) GetMemberByUsername(ctx context.Context, username string) (*Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE username = $1`
	m, err := scanMember(postgres.Conn(ctx, r.db).QueryRow(ctx, query, username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("участник не найден (username=%s): %w", username, common.ErrUserNotFound)
		}
		return nil, fmt.Errorf("ошибка чтения участника (username=%s): %w", username, err)
	}
	return m, nil
}

// UpdateMemberScore сохраняет агрегат прямых оценок профиля.
func (r *Repository) UpdateMemberScore(ctx context.Context, id string, average float64, count int) error {
	_, err := postgres.Conn(ctx, r.db).Exec(ctx, `
		UPDATE members SET average_score = $2, total_ratings = $3, updated_at = NOW()
		WHERE id = $1
	`, id, average, count)
	if err != nil {
		return fmt.Errorf("ошибка обновления рейтинга участника: %w", err)
	}
	return nil
}

// TelegramChatID возвращает привязанный чат; ok == false, если чата нет.
func (r *Repository) TelegramChatID(ctx context.Context, id string) (int64, bool, error) {
	var chatID *int64
	err := postgres.Conn(ctx, r.db).QueryRow(ctx, `
		SELECT telegram_chat_id FROM members WHERE id = $1
	`, id).Scan(&chatID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("ошибка чтения telegram_chat_id: %w", err)
	}
	if chatID == nil {
		return 0, false, nil
	}
	return *chatID, true, nil
}

func scanMember(row pgx.Row) (*Member, error) {
	var m Member
	if err := row.Scan(
		&m.ID, &m.Username, &m.DisplayName, &m.AverageScore, &m.TotalRatings,
		&m.TelegramChatID, &m.CreatedAt, &m.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &m, nil
}
