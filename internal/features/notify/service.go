package notify

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"rateme.app/engine/internal/common"
)

// Purger — хранилище, умеющее удалять старые прочитанные уведомления.
type Purger interface {
	PurgeRead(ctx context.Context, before time.Time) (int64, error)
}

// Service обслуживает фоновые задачи уведомлений.
type Service struct {
	store     Purger
	retention time.Duration
	clock     common.Clock
}

// NewService создаёт сервис. retention — сколько хранить прочитанные уведомления.
func NewService(store Purger, retention time.Duration, clock common.Clock) *Service {
	return &Service{store: store, retention: retention, clock: clock}
}

// PurgeExpired удаляет прочитанные уведомления старше retention.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	before := s.clock.Now().Add(-s.retention)
	n, err := s.store.PurgeRead(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("ошибка очистки уведомлений: %w", err)
	}
	log.WithFields(log.Fields{
		"deleted": n,
		"before":  before.Format(time.RFC3339),
	}).Info("Старые уведомления удалены")
	return n, nil
}
