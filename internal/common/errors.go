// Package common — errors.go определяет ошибки движка рейтингов,
// которые используются во всех модулях.
// Сообщения ошибок показываются пользователю (тост в клиенте), поэтому на английском.
package common

import (
	"errors"
	"fmt"
	"time"
)

// Ошибки экономики (RateCoins)
var (
	// ErrInsufficientFunds — не хватает монет на счёте, состояние не меняется
	ErrInsufficientFunds = errors.New("not enough RateCoins")
	// ErrInvalidAmount — некорректная сумма (ноль или отрицательная)
	ErrInvalidAmount = errors.New("amount must be positive")
)

// Ошибки поиска
var (
	// ErrTargetNotFound — цель оценки (пост или профиль) не существует
	ErrTargetNotFound = errors.New("rating target not found")
	// ErrUserNotFound — пользователь не найден
	ErrUserNotFound = errors.New("user not found")
	// ErrPostNotFound — пост не найден
	ErrPostNotFound = errors.New("post not found")
	// ErrRatingNotFound — у пользователя нет оценки этой цели
	ErrRatingNotFound = errors.New("rating not found")
)

// Ошибки маршрутизации уведомлений. Это не сбои: событие просто никому не адресовано.
var (
	// ErrSelfNotification — получатель совпадает с автором действия
	ErrSelfNotification = errors.New("actor is the recipient")
	// ErrRecipientNotFound — @username не найден
	ErrRecipientNotFound = errors.New("recipient not found")
)

// Ошибки кулдауна и стриков
var (
	// ErrCooldownBlocked — бесплатная оценка недоступна, можно заплатить за обход
	ErrCooldownBlocked = errors.New("rating cooldown active")
	// ErrNoStreakOffer — нечего забирать, стрик в этой сессии не предлагался
	ErrNoStreakOffer = errors.New("no streak reward to claim")
	// ErrUsernameTaken — такой username уже занят
	ErrUsernameTaken = errors.New("username already taken")
)

// Ошибки админки
var (
	// ErrAdminDisabled — ADMIN_PASSWORD_HASH не задан
	ErrAdminDisabled = errors.New("admin access disabled")
	// ErrWrongPassword — неверный пароль
	ErrWrongPassword = errors.New("wrong password")
	// ErrTooManyAttempts — слишком много неудачных попыток входа
	ErrTooManyAttempts = errors.New("too many attempts, wait 1 hour")
)

// ValidationError — входные данные не прошли проверку (оценка вне шкалы,
// неизвестный бейдж, пустая цель и т.д.).
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NewValidationError создаёт ошибку валидации поля.
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IsValidation проверяет, является ли ошибка ошибкой валидации.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// CooldownBlockedError несёт стоимость обхода кулдауна и время,
// когда бесплатная оценка снова станет доступна.
// errors.Is(err, ErrCooldownBlocked) == true.
type CooldownBlockedError struct {
	BypassCost  int64
	AvailableAt time.Time
}

func (e *CooldownBlockedError) Error() string {
	return fmt.Sprintf("%s: pay %d RateCoins to rate again before %s",
		ErrCooldownBlocked, e.BypassCost, e.AvailableAt.UTC().Format(time.RFC3339))
}

func (e *CooldownBlockedError) Unwrap() error {
	return ErrCooldownBlocked
}
