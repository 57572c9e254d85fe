// Package notify — repository.go работает с таблицей notifications.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"rateme.app/engine/internal/db/postgres"
)

// Repository хранит уведомления.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий уведомлений.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// CreateNotification сохраняет запись.
func (r *Repository) CreateNotification(ctx context.Context, n *Notification) error {
	var badgeJSON []byte
	if len(n.BadgeScores) > 0 {
		b, err := json.Marshal(n.BadgeScores)
		if err != nil {
			return fmt.Errorf("ошибка сериализации бейджей: %w", err)
		}
		badgeJSON = b
	}

	_, err := postgres.Conn(ctx, r.db).Exec(ctx, `
		INSERT INTO notifications (id, recipient_id, type, actor_id, actor_name, score, emoji,
		                           post_id, post_media_url, badge_scores, comment_id, comment_text,
		                           is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), NULLIF($9, ''), $10,
		        NULLIF($11, ''), NULLIF($12, ''), FALSE, $13)
	`, n.ID, n.RecipientID, string(n.Type), n.ActorID, n.ActorName, n.Score, n.Emoji,
		n.PostID, n.PostMediaURL, badgeJSON, n.CommentID, n.CommentText, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("ошибка сохранения уведомления: %w", err)
	}
	return nil
}

// ListNotifications возвращает последние limit уведомлений, новые первыми.
func (r *Repository) ListNotifications(ctx context.Context, recipientID string, limit int) ([]*Notification, error) {
	rows, err := postgres.Conn(ctx, r.db).Query(ctx, `
		SELECT id, recipient_id, type, actor_id, actor_name, score, emoji,
		       COALESCE(post_id, ''), COALESCE(post_media_url, ''), badge_scores,
		       COALESCE(comment_id, ''), COALESCE(comment_text, ''), is_read, created_at
		FROM notifications
		WHERE recipient_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, recipientID, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения уведомлений: %w", err)
	}
	defer rows.Close()

	var out []*Notification
	for rows.Next() {
		var (
			n         Notification
			typ       string
			badgeJSON []byte
		)
		if err := rows.Scan(
			&n.ID, &n.RecipientID, &typ, &n.ActorID, &n.ActorName, &n.Score, &n.Emoji,
			&n.PostID, &n.PostMediaURL, &badgeJSON, &n.CommentID, &n.CommentText,
			&n.IsRead, &n.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования уведомления: %w", err)
		}
		n.Type = Type(typ)
		if len(badgeJSON) > 0 {
			if err := json.Unmarshal(badgeJSON, &n.BadgeScores); err != nil {
				return nil, fmt.Errorf("ошибка разбора бейджей: %w", err)
			}
		}
		out = append(out, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения строк: %w", err)
	}
	return out, nil
}

// UnreadCount — число непрочитанных.
func (r *Repository) UnreadCount(ctx context.Context, recipientID string) (int, error) {
	var n int
	err := postgres.Conn(ctx, r.db).QueryRow(ctx, `
		SELECT COUNT(*) FROM notifications WHERE recipient_id = $1 AND is_read = FALSE
	`, recipientID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта непрочитанных: %w", err)
	}
	return n, nil
}

// MarkRead помечает прочитанными указанные уведомления получателя,
// а при пустом ids — все его уведомления.
func (r *Repository) MarkRead(ctx context.Context, recipientID string, ids []string) (int64, error) {
	q := postgres.Conn(ctx, r.db)

	var (
		tag pgconn.CommandTag
		err error
	)
	if len(ids) == 0 {
		tag, err = q.Exec(ctx, `
			UPDATE notifications SET is_read = TRUE
			WHERE recipient_id = $1 AND is_read = FALSE
		`, recipientID)
	} else {
		tag, err = q.Exec(ctx, `
			UPDATE notifications SET is_read = TRUE
			WHERE recipient_id = $1 AND id = ANY($2) AND is_read = FALSE
		`, recipientID, ids)
	}
	if err != nil {
		return 0, fmt.Errorf("ошибка отметки прочтения: %w", err)
	}
	return tag.RowsAffected(), nil
}

// PurgeRead удаляет прочитанные уведомления старше before.
func (r *Repository) PurgeRead(ctx context.Context, before time.Time) (int64, error) {
	tag, err := postgres.Conn(ctx, r.db).Exec(ctx, `
		DELETE FROM notifications WHERE is_read = TRUE AND created_at < $1
	`, before)
	if err != nil {
		return 0, fmt.Errorf("ошибка очистки уведомлений: %w", err)
	}
	return tag.RowsAffected(), nil
}
