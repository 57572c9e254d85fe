package notify

import (
	"context"
	"errors"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Publisher доставляет уже сохранённое уведомление подписчикам получателя.
// Доставка — best effort: ошибка логируется, запись остаётся в БД для pull.
type Publisher interface {
	Publish(ctx context.Context, n *Notification) error
}

// Hub — подписки внутри процесса, ключ — id получателя.
// Отправка не блокирует: если буфер подписчика полон, запись пропускается.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[chan *Notification]struct{}
	buffer int
}

// NewHub создаёт хаб с буфером buffer на каждого подписчика.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{subs: make(map[string]map[chan *Notification]struct{}), buffer: buffer}
}

// Subscribe подписывает на уведомления получателя. Вызови cancel, чтобы отписаться;
// после cancel канал закрыт.
func (h *Hub) Subscribe(recipientID string) (<-chan *Notification, func()) {
	ch := make(chan *Notification, h.buffer)

	h.mu.Lock()
	if h.subs[recipientID] == nil {
		h.subs[recipientID] = make(map[chan *Notification]struct{})
	}
	h.subs[recipientID][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[recipientID], ch)
			if len(h.subs[recipientID]) == 0 {
				delete(h.subs, recipientID)
			}
			close(ch)
			h.mu.Unlock()
		})
	}
	return ch, cancel
}

// Publish рассылает запись всем подписчикам получателя.
func (h *Hub) Publish(_ context.Context, n *Notification) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subs[n.RecipientID] {
		select {
		case ch <- n:
		default:
			log.WithFields(log.Fields{
				"recipient_id":    n.RecipientID,
				"notification_id": n.ID,
			}).Warn("Подписчик не успевает, уведомление пропущено")
		}
	}
	return nil
}

// Subscribers — число активных подписок получателя.
func (h *Hub) Subscribers(recipientID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[recipientID])
}

// Fanout публикует во все вложенные паблишеры и собирает ошибки.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, n *Notification) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
