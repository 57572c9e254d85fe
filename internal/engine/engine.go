// Package engine — движок оценок и наград RateMe.
//
// Каждая команда выполняется в одной транзакции: оценка, пересчёт агрегата,
// кулдаун, списание за обход и запись уведомления либо видны все вместе, либо
// не видны вовсе. Конкурентные оценки одной цели сериализуются блокировкой
// строки цели (SELECT ... FOR UPDATE), поэтому ни один голос не теряется.
//
// После фиксации транзакции синхронно, но без повторов выполняются начисления
// третьим лицам и доставка уведомлений: сбой логируется и не откатывает команду.
package engine

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"rateme.app/engine/internal/common"
	"rateme.app/engine/internal/config"
	"rateme.app/engine/internal/features/cooldown"
	"rateme.app/engine/internal/features/notify"
	"rateme.app/engine/internal/features/rewards"
)

// Settings — числовые правила движка.
type Settings struct {
	DefaultScale   float64 // шкала ввода, если клиент её не прислал
	Cooldown       cooldown.Gate
	RewardRate     int64
	RewardRated    int64
	RewardDescribe int64
	RewardPost     int64
	RewardPoll     int64
	Location       *time.Location // календарные дни: опрос, стрики
}

// SettingsFromConfig переносит правила из конфига.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		DefaultScale:   cfg.RatingMaxScale,
		Cooldown:       cooldown.Gate{Period: cfg.CooldownPeriod, BypassCost: cfg.CooldownBypassCost},
		RewardRate:     cfg.RewardRate,
		RewardRated:    cfg.RewardRated,
		RewardDescribe: cfg.RewardDescribe,
		RewardPost:     cfg.RewardPost,
		RewardPoll:     cfg.RewardPoll,
		Location:       common.LoadLocation(cfg.AppTimezone),
	}
}

// Engine выполняет команды UI-клиентов.
type Engine struct {
	st     Stores
	set    Settings
	calc   *rewards.Calculator
	router *notify.Router
	pub    notify.Publisher
	admin  AdminVerifier
	clock  common.Clock
}

// Option настраивает Engine.
type Option func(*Engine)

// WithPublisher задаёт доставку уведомлений (хаб, Redis, Telegram).
func WithPublisher(p notify.Publisher) Option {
	return func(e *Engine) { e.pub = p }
}

// WithAdmin включает ручные операции с балансом.
func WithAdmin(a AdminVerifier) Option {
	return func(e *Engine) { e.admin = a }
}

// WithClock подменяет часы (тесты).
func WithClock(c common.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// New собирает движок.
func New(st Stores, set Settings, calc *rewards.Calculator, opts ...Option) *Engine {
	if set.Location == nil {
		set.Location = time.UTC
	}
	if set.DefaultScale == 0 {
		set.DefaultScale = 5
	}
	e := &Engine{st: st, set: set, calc: calc}
	for _, opt := range opts {
		opt(e)
	}
	e.router = notify.NewRouter(st.Members, e.clock)
	return e
}

func (e *Engine) now() time.Time {
	return e.clock.Now().UTC()
}

// route строит уведомление; «никому не адресовано» — не ошибка, а nil.
func (e *Engine) route(ctx context.Context, ev notify.Event) (*notify.Notification, error) {
	n, err := e.router.Route(ctx, ev)
	if err != nil {
		if notify.IsSkip(err) {
			return nil, nil
		}
		return nil, err
	}
	if err := e.st.Notifications.CreateNotification(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

// deliver отправляет сохранённые уведомления подписчикам. Вызывается после commit.
func (e *Engine) deliver(ctx context.Context, ns ...*notify.Notification) {
	if e.pub == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	for _, n := range ns {
		if n == nil {
			continue
		}
		if err := e.pub.Publish(ctx, n); err != nil {
			log.WithError(err).WithFields(log.Fields{
				"recipient_id":    n.RecipientID,
				"notification_id": n.ID,
				"type":            n.Type,
			}).Warn("Уведомление не доставлено, останется для pull")
		}
	}
}

// awardAfterCommit начисляет монеты без отката команды при сбое.
func (e *Engine) awardAfterCommit(ctx context.Context, userID string, base int64, reason string) int64 {
	amount, err := e.AwardCoins(context.WithoutCancel(ctx), userID, base, reason)
	if err != nil {
		log.WithError(err).WithFields(log.Fields{
			"user_id": userID,
			"amount":  base,
			"reason":  reason,
		}).Error("Начисление потеряно")
		return 0
	}
	return amount
}
