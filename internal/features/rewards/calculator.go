// Package rewards считает начисления RateCoins.
// Вся арифметика в decimal: 100 × 1.15 во float64 даёт 114.999…, а должно быть 115.
package rewards

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Calculator хранит параметры множителя и кривой стрик-бонуса.
type Calculator struct {
	step       decimal.Decimal // прирост множителя за день стрика
	streakBase int64           // бонус первого дня стрика
	growth     decimal.Decimal // во сколько раз растёт бонус за каждый следующий день
}

// NewCalculator разбирает параметры из конфига ("0.05", 50, "1.1").
func NewCalculator(step string, streakBase int64, growth string) (*Calculator, error) {
	s, err := decimal.NewFromString(step)
	if err != nil {
		return nil, fmt.Errorf("некорректный шаг множителя %q: %w", step, err)
	}
	if s.IsNegative() {
		return nil, fmt.Errorf("шаг множителя не может быть отрицательным: %s", step)
	}
	g, err := decimal.NewFromString(growth)
	if err != nil {
		return nil, fmt.Errorf("некорректный рост стрик-бонуса %q: %w", growth, err)
	}
	if !g.IsPositive() {
		return nil, fmt.Errorf("рост стрик-бонуса должен быть > 0: %s", growth)
	}
	return &Calculator{step: s, streakBase: streakBase, growth: g}, nil
}

// Multiplier возвращает 1 + step × streakDays.
func (c *Calculator) Multiplier(streakDays int) decimal.Decimal {
	if streakDays < 0 {
		streakDays = 0
	}
	return decimal.NewFromInt(1).Add(c.step.Mul(decimal.NewFromInt(int64(streakDays))))
}

// Award — итоговое начисление: floor(base × Multiplier(streakDays)).
//
//	Award(100, 0)  → 100
//	Award(100, 3)  → 115
//	Award(100, 20) → 200
func (c *Calculator) Award(base int64, streakDays int) int64 {
	if base <= 0 {
		return 0
	}
	return decimal.NewFromInt(base).Mul(c.Multiplier(streakDays)).Floor().IntPart()
}

// StreakReward — бонус за день стрика: floor(base × growth^(day-1)).
// Множитель сюда не применяется.
//
//	День 1 → 50, день 2 → 55, день 3 → 60, день 4 → 66
func (c *Calculator) StreakReward(day int) int64 {
	if day < 1 {
		return 0
	}
	points := decimal.NewFromInt(c.streakBase)
	for i := 1; i < day; i++ {
		points = points.Mul(c.growth)
	}
	return points.Floor().IntPart()
}
