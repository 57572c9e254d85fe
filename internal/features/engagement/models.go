// Package engagement — сохранения, репосты и комментарии к постам.
package engagement

import (
	"regexp"
	"strings"
	"time"

	"rateme.app/engine/internal/common"
)

// MaxCommentLength — ограничение длины комментария.
const MaxCommentLength = 1000

// Comment — комментарий к посту.
type Comment struct {
	ID        string    `json:"id"`
	PostID    string    `json:"post_id"`
	UserID    string    `json:"user_id"`
	Text      string    `json:"text"`
	Mention   string    `json:"mention,omitempty"` // username из ведущего @упоминания
	CreatedAt time.Time `json:"created_at"`
}

// Validate проверяет текст комментария.
func (c *Comment) Validate() error {
	text := strings.TrimSpace(c.Text)
	if text == "" {
		return common.NewValidationError("text", "must not be empty")
	}
	if len([]rune(text)) > MaxCommentLength {
		return common.NewValidationError("text", "at most %d characters", MaxCommentLength)
	}
	return nil
}

var mentionPattern = regexp.MustCompile(`^@(\w+)`)

// ParseMention извлекает username из ведущего токена @username.
//
//	ParseMention("@neon nice shot") → "neon", true
//	ParseMention("nice @neon")      → "", false
func ParseMention(text string) (string, bool) {
	m := mentionPattern.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return "", false
	}
	return m[1], true
}
