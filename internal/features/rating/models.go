// Package rating описывает оценки постов и профилей и агрегаты по ним.
// models.go — структуры оценки и цели.
package rating

import (
	"time"

	"rateme.app/engine/internal/features/badges"
)

// TargetKind — что оценивают: пост или профиль.
type TargetKind string

const (
	TargetPost TargetKind = "post"
	TargetUser TargetKind = "user"
)

// Valid проверяет, что вид цели известен.
func (k TargetKind) Valid() bool {
	return k == TargetPost || k == TargetUser
}

// Rating — действующая оценка. На пару (rater, kind, target) хранится одна запись:
// повторная отправка перезаписывает значение.
type Rating struct {
	ID         string        `json:"id"`
	RaterID    string        `json:"rater_id"`
	TargetKind TargetKind    `json:"target_kind"`
	TargetID   string        `json:"target_id"`
	Value      float64       `json:"value"`
	Badges     badges.Scores `json:"badges,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// IsDescribe — оценка профиля с бейджами.
func (r *Rating) IsDescribe() bool {
	return r.TargetKind == TargetUser && len(r.Badges) > 0
}
