// Package jobs управляет фоновыми задачами (cron).
// scheduler.go настраивает расписание: ночной сброс стриков
// и очистку старых прочитанных уведомлений.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

// Расписание в поясе APP_TIMEZONE.
const (
	StreakBreakSpec = "0 0 * * *"
	PurgeSpec       = "30 3 * * *"
)

// StreakBreaker сбрасывает стрики неактивных пользователей.
type StreakBreaker interface {
	DailyBreak(ctx context.Context) (int64, error)
}

// NotificationPurger удаляет старые прочитанные уведомления.
type NotificationPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Scheduler управляет фоновыми задачами.
type Scheduler struct {
	cron          *cron.Cron
	loc           *time.Location
	streaks       StreakBreaker
	notifications NotificationPurger
	breakEnabled  bool
}

// NewScheduler создаёт планировщик задач. breakEnabled — FEATURE_STREAK_BREAK_ENABLED.
func NewScheduler(streaks StreakBreaker, notifications NotificationPurger, loc *time.Location, breakEnabled bool) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		cron:          cron.New(cron.WithLocation(loc)),
		loc:           loc,
		streaks:       streaks,
		notifications: notifications,
		breakEnabled:  breakEnabled,
	}
}

// Start регистрирует и запускает задачи.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.breakEnabled {
		if _, err := s.cron.AddFunc(StreakBreakSpec, func() { s.breakStreaks(ctx) }); err != nil {
			return fmt.Errorf("ошибка регистрации сброса стриков: %w", err)
		}
	} else {
		log.Info("[CRON] Сброс стриков выключен флагом")
	}

	if _, err := s.cron.AddFunc(PurgeSpec, func() { s.purgeNotifications(ctx) }); err != nil {
		return fmt.Errorf("ошибка регистрации очистки уведомлений: %w", err)
	}

	s.cron.Start()
	log.WithField("timezone", s.loc.String()).Info("Планировщик задач запущен")
	return nil
}

// Stop останавливает планировщик и ждёт завершения запущенных задач.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Планировщик задач остановлен")
}

func (s *Scheduler) breakStreaks(ctx context.Context) {
	log.Info("[CRON] Ежедневный сброс стриков")
	if _, err := s.streaks.DailyBreak(ctx); err != nil {
		log.WithError(err).Error("[CRON] Ошибка сброса")
	}
}

func (s *Scheduler) purgeNotifications(ctx context.Context) {
	log.Debug("[CRON] Очистка уведомлений")
	if _, err := s.notifications.PurgeExpired(ctx); err != nil {
		log.WithError(err).Error("[CRON] Ошибка очистки уведомлений")
	}
}
