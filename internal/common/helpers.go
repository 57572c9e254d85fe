// Package common содержит общие утилиты, используемые во всём проекте.
// Сюда входят: плюрализация, форматирование монет, работа с временем.
package common

import (
	"fmt"
	"time"
)

// PluralizeCoins возвращает правильную форму слова для числа монет.
//
// Примеры:
//
//	PluralizeCoins(1)  → "RateCoin"
//	PluralizeCoins(5)  → "RateCoins"
//	PluralizeCoins(-1) → "RateCoin"
func PluralizeCoins(n int64) string {
	if n == 1 || n == -1 {
		return "RateCoin"
	}
	return "RateCoins"
}

// FormatCoins форматирует сумму со знаком.
// Пример: FormatCoins(100) → "+100 RateCoins", FormatCoins(-200) → "-200 RateCoins"
func FormatCoins(amount int64) string {
	if amount >= 0 {
		return fmt.Sprintf("+%d %s", amount, PluralizeCoins(amount))
	}
	return fmt.Sprintf("%d %s", amount, PluralizeCoins(amount))
}

// PluralizeDays возвращает "day" или "days".
func PluralizeDays(n int) string {
	if n == 1 || n == -1 {
		return "day"
	}
	return "days"
}

// LoadLocation загружает часовой пояс приложения.
// Если не удалось (нет tzdata в контейнере) — возвращает UTC.
func LoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// StartOfDay возвращает полночь того же календарного дня в указанном поясе.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// Clock — источник текущего времени. В тестах подменяется фиксированным.
type Clock func() time.Time

// Now возвращает текущее время; nil-часы означают time.Now.
func (c Clock) Now() time.Time {
	if c == nil {
		return time.Now()
	}
	return c()
}
