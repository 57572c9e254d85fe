// Package admin — service.go содержит проверку пароля Argon2id и лимит попыток.
package admin

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/argon2"

	"rateme.app/engine/internal/common"
)

// AttemptStore хранит историю попыток входа.
type AttemptStore interface {
	LogAttempt(ctx context.Context, actorID string, success bool) error
	RecentFailures(ctx context.Context, actorID string, since time.Time) (int, error)
}

// Service проверяет пароль оператора.
type Service struct {
	store AttemptStore
	hash  string
	clock common.Clock
}

// NewService создаёт сервис. Пустой hash выключает админ-операции.
func NewService(store AttemptStore, hash string, clock common.Clock) *Service {
	return &Service{store: store, hash: hash, clock: clock}
}

// VerifyPassword проверяет пароль оператора.
// 3 неудачные попытки за час — блокировка до конца окна.
func (s *Service) VerifyPassword(ctx context.Context, actorID, password string) error {
	if s.hash == "" {
		return common.ErrAdminDisabled
	}

	failures, err := s.store.RecentFailures(ctx, actorID, s.clock.Now().Add(-AttemptWindow))
	if err != nil {
		return err
	}
	if failures >= MaxFailedAttempts {
		return common.ErrTooManyAttempts
	}

	match := verifyArgon2id(password, s.hash)

	if err := s.store.LogAttempt(ctx, actorID, match); err != nil {
		log.WithError(err).WithField("actor_id", actorID).Error("Ошибка записи попытки входа")
	}

	if !match {
		log.WithField("actor_id", actorID).Warn("Неверный пароль администратора")
		return common.ErrWrongPassword
	}
	return nil
}

// HashPassword возвращает хеш Argon2id в формате
// $argon2id$v=19$m=65536,t=3,p=2$<salt_base64>$<hash_base64>
func HashPassword(password string) (string, error) {
	salt := make([]byte, argonSaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("ошибка генерации соли: %w", err)
	}
	hash := argon2.IDKey([]byte(password), salt, argonIterations, argonMemory, argonParallelism, argonKeyLength)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemory, argonIterations, argonParallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// verifyArgon2id проверяет пароль по хешу Argon2id.
func verifyArgon2id(password, encodedHash string) bool {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		log.Error("Некорректный формат хеша Argon2id")
		return false
	}

	var memory, iterations uint32
	var parallelism uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &parallelism); err != nil {
		log.WithError(err).Error("Ошибка парсинга параметров Argon2id")
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		log.WithError(err).Error("Ошибка декодирования соли")
		return false
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		log.WithError(err).Error("Ошибка декодирования хеша")
		return false
	}

	computed := argon2.IDKey([]byte(password), salt, iterations, memory, parallelism, uint32(len(expected)))

	// Сравнение в постоянном времени
	return subtle.ConstantTimeCompare(computed, expected) == 1
}
