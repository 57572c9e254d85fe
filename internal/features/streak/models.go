// Package streak управляет стриками: серией дней, в которые пользователь оценивал.
// models.go описывает запись стрика и предложение бонуса.
package streak

import (
	"time"

	"rateme.app/engine/internal/common"
)

// Streak — запись стрика пользователя.
//
// Первая оценка в новой сессии клиента создаёт предложение: день StreakDays+1
// и бонус за него. Предложение хранится (PendingDay, OfferSession), пока его
// не заберут через ClaimStreak.
type Streak struct {
	UserID        string     `json:"user_id"`
	StreakDays    int        `json:"streak_days"`
	LongestStreak int        `json:"longest_streak"`
	OfferSession  string     `json:"-"`
	PendingDay    int        `json:"pending_day,omitempty"` // 0 — предложения нет
	LastClaimedAt *time.Time `json:"last_claimed_at,omitempty"`
	LastActiveAt  *time.Time `json:"last_active_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Offer — предложенный бонус за день стрика.
type Offer struct {
	Day    int   `json:"day"`
	Points int64 `json:"points"`
}

// ShouldOffer решает, показывать ли предложение на этой оценке:
// сессия новая и сегодня (в поясе loc) стрик ещё не забирали.
func ShouldOffer(s *Streak, sessionID string, now time.Time, loc *time.Location) bool {
	if sessionID == "" || s.OfferSession == sessionID {
		return false
	}
	if s.LastClaimedAt != nil && !s.LastClaimedAt.Before(common.StartOfDay(now, loc)) {
		return false
	}
	return true
}

// NextDay — день, который будет засчитан при следующем claim.
func (s *Streak) NextDay() int {
	return s.StreakDays + 1
}

// BreakBefore возвращает границу активности для ночного сброса: кто не оценивал
// ни вчера, ни сегодня (активность раньше этого момента), теряет стрик.
func BreakBefore(now time.Time, loc *time.Location) time.Time {
	return common.StartOfDay(now, loc).AddDate(0, 0, -1)
}

// IsBroken проверяет, сгорает ли стрик на момент now.
func (s *Streak) IsBroken(now time.Time, loc *time.Location) bool {
	if s.StreakDays == 0 {
		return false
	}
	return s.LastActiveAt == nil || s.LastActiveAt.Before(BreakBefore(now, loc))
}
