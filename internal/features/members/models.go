// Package members управляет профилями пользователей RateMe.
// models.go описывает профиль и правила для username.
package members

import (
	"regexp"
	"strings"
	"time"

	"rateme.app/engine/internal/common"
)

// Member — профиль пользователя.
// AverageScore/TotalRatings — средняя и число действующих оценок, полученных
// прямо на профиль. Оценки постов в профиль не сворачиваются.
type Member struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	DisplayName    string    `json:"display_name"`
	AverageScore   float64   `json:"average_score"`
	TotalRatings   int       `json:"total_ratings"`
	TelegramChatID *int64    `json:"telegram_chat_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// usernamePattern совпадает с токеном упоминания @username в комментариях.
var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{3,30}$`)

// Name возвращает имя для уведомлений: display name, а если его нет — @username.
func (m *Member) Name() string {
	if strings.TrimSpace(m.DisplayName) != "" {
		return m.DisplayName
	}
	return "@" + m.Username
}

// Validate проверяет поля нового профиля.
func (m *Member) Validate() error {
	if strings.TrimSpace(m.ID) == "" {
		return common.NewValidationError("id", "must not be empty")
	}
	if !usernamePattern.MatchString(m.Username) {
		return common.NewValidationError("username", "3-30 letters, digits or underscores")
	}
	if len([]rune(m.DisplayName)) > 64 {
		return common.NewValidationError("display_name", "at most 64 characters")
	}
	return nil
}
