package rating

import (
	"math"

	"rateme.app/engine/internal/common"
)

// MaxScore — верх канонической шкалы. Все оценки хранятся в [0, 5].
const MaxScore = 5.0

// IsSupportedScale проверяет шкалу ввода клиента.
func IsSupportedScale(scale float64) bool {
	switch scale {
	case 5, 10, 100:
		return true
	}
	return false
}

// ToCanonical переводит значение со шкалы клиента в каноническую 0–5.
// Значение должно лежать в [0, scale]. Результат округляется до сотых.
//
//	ToCanonical(8, 10)   → 4
//	ToCanonical(73, 100) → 3.65
func ToCanonical(value, scale float64) (float64, error) {
	if !IsSupportedScale(scale) {
		return 0, common.NewValidationError("scale", "must be 5, 10 or 100, got %g", scale)
	}
	if math.IsNaN(value) || value < 0 || value > scale {
		return 0, common.NewValidationError("value", "must be within [0, %g], got %g", scale, value)
	}
	return math.Round(value*MaxScore/scale*100) / 100, nil
}

// FromCanonical переводит каноническое значение в шкалу зрителя.
func FromCanonical(value, scale float64) float64 {
	if !IsSupportedScale(scale) {
		return value
	}
	return math.Round(value*scale/MaxScore*100) / 100
}
