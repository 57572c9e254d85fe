// Package posts хранит посты и кэш их агрегатов:
// средняя оценка, число оценок, сохранений и репостов.
package posts

import (
	"strings"
	"time"

	"rateme.app/engine/internal/common"
)

// MaxCaptionLength — ограничение подписи к посту.
const MaxCaptionLength = 500

// Post — пост пользователя.
type Post struct {
	ID            string    `json:"id"`
	CreatorID     string    `json:"creator_id"`
	MediaURL      string    `json:"media_url"`
	Caption       string    `json:"caption"`
	AverageRating float64   `json:"average_rating"`
	RatingCount   int       `json:"rating_count"`
	SaveCount     int       `json:"save_count"`
	RepostCount   int       `json:"repost_count"`
	CreatedAt     time.Time `json:"created_at"`
}

// Validate проверяет новый пост.
func (p *Post) Validate() error {
	if strings.TrimSpace(p.CreatorID) == "" {
		return common.NewValidationError("creator_id", "must not be empty")
	}
	if strings.TrimSpace(p.MediaURL) == "" {
		return common.NewValidationError("media_url", "must not be empty")
	}
	if len([]rune(p.Caption)) > MaxCaptionLength {
		return common.NewValidationError("caption", "at most %d characters", MaxCaptionLength)
	}
	return nil
}
