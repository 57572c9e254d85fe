package rating

import (
	"strings"

	"rateme.app/engine/internal/common"
	"rateme.app/engine/internal/features/badges"
)

// Submission — входные данные одной оценки до нормализации.
type Submission struct {
	RaterID    string
	TargetID   string
	TargetKind TargetKind
	Value      float64
	Scale      float64 // 0 — значение уже в канонической шкале
	Badges     badges.Scores
}

// Normalize проверяет заявку и возвращает значение в канонической шкале.
func (s Submission) Normalize() (float64, error) {
	if strings.TrimSpace(s.RaterID) == "" {
		return 0, common.NewValidationError("rater_id", "must not be empty")
	}
	if strings.TrimSpace(s.TargetID) == "" {
		return 0, common.NewValidationError("target_id", "must not be empty")
	}
	if !s.TargetKind.Valid() {
		return 0, common.NewValidationError("target_kind", "must be %q or %q", TargetPost, TargetUser)
	}
	if len(s.Badges) > 0 {
		if s.TargetKind != TargetUser {
			return 0, common.NewValidationError("badges", "only profiles can be described")
		}
		if err := s.Badges.Validate(); err != nil {
			return 0, err
		}
	}

	scale := s.Scale
	if scale == 0 {
		scale = MaxScore
	}
	return ToCanonical(s.Value, scale)
}
