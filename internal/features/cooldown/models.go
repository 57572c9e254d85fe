// Package cooldown решает, может ли оценщик бесплатно оценить профиль
// (describe) или должен заплатить за обход.
// Для постов кулдауна нет.
package cooldown

import (
	"time"

	"rateme.app/engine/internal/common"
)

// Record — время последней бесплатной оценки профиля target оценщиком rater.
type Record struct {
	RaterID          string    `json:"rater_id"`
	TargetID         string    `json:"target_id"`
	LastFreeRatingAt time.Time `json:"last_free_rating_at"`
}

// Decision — результат проверки.
type Decision struct {
	Allowed     bool      `json:"allowed"`
	BypassCost  int64     `json:"bypass_cost,omitempty"`
	AvailableAt time.Time `json:"available_at,omitempty"`
}

// Err превращает запрет в *common.CooldownBlockedError.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return &common.CooldownBlockedError{BypassCost: d.BypassCost, AvailableAt: d.AvailableAt}
}

// Gate — параметры кулдауна: период и цена обхода.
type Gate struct {
	Period     time.Duration
	BypassCost int64
}

// Check — чистая функция над записью. rec == nil означает, что оценок ещё не было.
// Граница включительна: ровно через Period оценка снова бесплатна.
func (g Gate) Check(rec *Record, now time.Time) Decision {
	if rec == nil {
		return Decision{Allowed: true}
	}
	availableAt := rec.LastFreeRatingAt.Add(g.Period)
	if !now.Before(availableAt) {
		return Decision{Allowed: true}
	}
	return Decision{Allowed: false, BypassCost: g.BypassCost, AvailableAt: availableAt}
}
