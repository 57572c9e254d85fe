// Package posts — repository.go работает с таблицей posts.
package posts

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"rateme.app/engine/internal/common"
	"rateme.app/engine/internal/db/postgres"
)

// Repository хранит посты.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий постов.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// CreatePost сохраняет пост; ID генерируется, если пуст.
func (r *Repository) CreatePost(ctx context.Context, p *Post) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	err := postgres.Conn(ctx, r.db).QueryRow(ctx, `
		INSERT INTO posts (id, creator_id, media_url, caption)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, p.ID, p.CreatorID, p.MediaURL, p.Caption).Scan(&p.CreatedAt)
	if err != nil {
		return fmt.Errorf("ошибка создания поста: %w", err)
	}
	return nil
}

// GetPost возвращает пост. forUpdate блокирует строку поста: конкурентные оценки
// одного поста выстраиваются в очередь и пересчёт агрегата не теряет голоса.
func (r *Repository) GetPost(ctx context.Context, id string, forUpdate bool) (*Post, error) {
	query := `
		SELECT id, creator_id, media_url, caption, average_rating, rating_count,
		       save_count, repost_count, created_at
		FROM posts
		WHERE id = $1
	`
	if forUpdate {
		query += " FOR UPDATE"
	}

	var p Post
	err := postgres.Conn(ctx, r.db).QueryRow(ctx, query, id).Scan(
		&p.ID, &p.CreatorID, &p.MediaURL, &p.Caption, &p.AverageRating, &p.RatingCount,
		&p.SaveCount, &p.RepostCount, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("пост %s: %w", id, common.ErrPostNotFound)
		}
		return nil, fmt.Errorf("ошибка чтения поста: %w", err)
	}
	return &p, nil
}

// UpdatePostRating сохраняет пересчитанный агрегат.
func (r *Repository) UpdatePostRating(ctx context.Context, id string, average float64, count int) error {
	_, err := postgres.Conn(ctx, r.db).Exec(ctx, `
		UPDATE posts SET average_rating = $2, rating_count = $3 WHERE id = $1
	`, id, average, count)
	if err != nil {
		return fmt.Errorf("ошибка обновления рейтинга поста: %w", err)
	}
	return nil
}

// AdjustPostCounters сдвигает счётчики сохранений и репостов.
func (r *Repository) AdjustPostCounters(ctx context.Context, id string, saveDelta, repostDelta int) error {
	_, err := postgres.Conn(ctx, r.db).Exec(ctx, `
		UPDATE posts
		SET save_count = GREATEST(save_count + $2, 0),
		    repost_count = GREATEST(repost_count + $3, 0)
		WHERE id = $1
	`, id, saveDelta, repostDelta)
	if err != nil {
		return fmt.Errorf("ошибка обновления счётчиков поста: %w", err)
	}
	return nil
}
