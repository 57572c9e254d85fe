// Package streak — service.go содержит ночной сброс стриков.
// Начисления и claim живут в движке, здесь только то, что запускает cron.
package streak

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"rateme.app/engine/internal/common"
)

// Breaker — хранилище, умеющее сбрасывать неактивные стрики.
type Breaker interface {
	BreakInactive(ctx context.Context, before time.Time) (int64, error)
}

// Service управляет стрик-системой.
type Service struct {
	repo  Breaker
	loc   *time.Location
	clock common.Clock
}

// NewService создаёт сервис стриков. loc — часовой пояс, в котором считаются календарные дни.
func NewService(repo Breaker, loc *time.Location, clock common.Clock) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{repo: repo, loc: loc, clock: clock}
}

// DailyBreak сбрасывает стрики тех, кто не оценивал ни вчера, ни сегодня.
// Запускается кроном в 00:00.
func (s *Service) DailyBreak(ctx context.Context) (int64, error) {
	before := BreakBefore(s.clock.Now(), s.loc)

	broken, err := s.repo.BreakInactive(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("ошибка ежедневного сброса: %w", err)
	}

	log.WithFields(log.Fields{
		"broken": broken,
		"before": before.Format(time.RFC3339),
	}).Info("Ежедневный сброс стриков завершён")
	return broken, nil
}
