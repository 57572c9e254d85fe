// Package badges ведёт шесть личностных бейджей пользователя.
// Средние обновляются только «describe»-оценками профиля.
package badges

import (
	"math"
	"sort"

	"rateme.app/engine/internal/common"
)

// Key — имя бейджа. Значения совпадают с ключами JSON, которые шлёт клиент.
type Key string

const (
	Intelligence Key = "Intelligence"
	Charisma     Key = "Charisma"
	Affectionate Key = "Affectionate"
	Humor        Key = "Humor"
	Active       Key = "Active"
	Extroverted  Key = "Extroverted"
)

// MaxScore — верхняя граница оценки бейджа.
const MaxScore = 5.0

// Keys — все шесть бейджей в порядке колонок таблицы badge_averages.
var Keys = []Key{Intelligence, Charisma, Affectionate, Humor, Active, Extroverted}

// IsKnown проверяет, что ключ входит в шестёрку.
func IsKnown(k Key) bool {
	for _, known := range Keys {
		if k == known {
			return true
		}
	}
	return false
}

// Scores — оценки бейджей из одной describe-оценки. Отсутствующие ключи не трогаются.
type Scores map[Key]float64

// Validate проверяет ключи и диапазон [0, 5].
func (s Scores) Validate() error {
	if len(s) == 0 {
		return common.NewValidationError("badges", "at least one badge score is required")
	}
	for k, v := range s {
		if !IsKnown(k) {
			return common.NewValidationError("badges", "unknown badge %q", k)
		}
		if math.IsNaN(v) || v < 0 || v > MaxScore {
			return common.NewValidationError("badges", "%s must be within [0, %g], got %g", k, MaxScore, v)
		}
	}
	return nil
}

// SortedKeys возвращает ключи в стабильном порядке (для логов и текста уведомлений).
func (s Scores) SortedKeys() []Key {
	keys := make([]Key, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Set — средние по шести бейджам и общий счётчик describe-оценок.
// Count один на все бейджи: знаменатель у них общий.
type Set struct {
	UserID   string          `json:"user_id"`
	Averages map[Key]float64 `json:"averages"`
	Count    int             `json:"describe_count"`
}

// NewSet создаёт пустой набор: все шесть бейджей по нулям.
func NewSet(userID string) *Set {
	s := &Set{UserID: userID, Averages: make(map[Key]float64, len(Keys))}
	for _, k := range Keys {
		s.Averages[k] = 0
	}
	return s
}

// Clone возвращает глубокую копию.
func (s *Set) Clone() *Set {
	c := &Set{UserID: s.UserID, Count: s.Count, Averages: make(map[Key]float64, len(s.Averages))}
	for k, v := range s.Averages {
		c.Averages[k] = v
	}
	return c
}
