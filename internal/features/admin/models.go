// Package admin проверяет пароль оператора для ручных операций с балансами.
// models.go описывает попытки входа и параметры хеша.
package admin

import "time"

// LoginAttempt — попытка ввода пароля (для защиты от brute-force).
type LoginAttempt struct {
	ID          int64     `json:"id"`
	ActorID     string    `json:"actor_id"`
	AttemptTime time.Time `json:"attempt_time"`
	Success     bool      `json:"success"`
}

// Лимит неудачных попыток: MaxFailedAttempts за AttemptWindow — блокировка.
const (
	MaxFailedAttempts = 3
	AttemptWindow     = time.Hour
)

// Параметры Argon2id для новых хешей.
const (
	argonMemory      uint32 = 64 * 1024 // 64 MB
	argonIterations  uint32 = 3
	argonParallelism uint8  = 2
	argonKeyLength   uint32 = 32
	argonSaltLength         = 16
)
