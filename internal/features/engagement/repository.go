// Package engagement — repository.go работает с таблицами saved_posts, reposts и comments.
package engagement

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"rateme.app/engine/internal/db/postgres"
)

// Repository хранит взаимодействия с постами.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// ToggleSave переключает сохранение; true — пост теперь сохранён.
func (r *Repository) ToggleSave(ctx context.Context, postID, userID string) (bool, error) {
	return r.toggle(ctx, "saved_posts", postID, userID)
}

// ToggleRepost переключает репост; true — репост теперь есть.
func (r *Repository) ToggleRepost(ctx context.Context, postID, userID string) (bool, error) {
	return r.toggle(ctx, "reposts", postID, userID)
}

// toggle удаляет пару, а если удалять было нечего — вставляет.
// table — только константы из этого файла.
func (r *Repository) toggle(ctx context.Context, table, postID, userID string) (bool, error) {
	q := postgres.Conn(ctx, r.db)

	tag, err := q.Exec(ctx,
		`DELETE FROM `+table+` WHERE post_id = $1 AND user_id = $2`, postID, userID)
	if err != nil {
		return false, fmt.Errorf("ошибка переключения %s: %w", table, err)
	}
	if tag.RowsAffected() > 0 {
		return false, nil
	}

	if _, err := q.Exec(ctx,
		`INSERT INTO `+table+` (post_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		postID, userID); err != nil {
		return false, fmt.Errorf("ошибка переключения %s: %w", table, err)
	}
	return true, nil
}

// CreateComment сохраняет комментарий.
func (r *Repository) CreateComment(ctx context.Context, c *Comment) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	err := postgres.Conn(ctx, r.db).QueryRow(ctx, `
		INSERT INTO comments (id, post_id, user_id, text)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, c.ID, c.PostID, c.UserID, c.Text).Scan(&c.CreatedAt)
	if err != nil {
		return fmt.Errorf("ошибка создания комментария: %w", err)
	}
	return nil
}
