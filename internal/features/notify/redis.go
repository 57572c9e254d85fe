package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// ChannelPrefix — канал Redis на получателя: notifications:<recipient_id>.
const ChannelPrefix = "notifications:"

// Channel возвращает имя канала получателя.
func Channel(recipientID string) string {
	return ChannelPrefix + recipientID
}

// RedisPublisher публикует уведомления в Redis, чтобы их получили все инстансы.
type RedisPublisher struct {
	client redis.UniversalClient
}

// NewRedisPublisher создаёт паблишер поверх готового клиента.
func NewRedisPublisher(client redis.UniversalClient) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) Publish(ctx context.Context, n *Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("ошибка сериализации уведомления: %w", err)
	}
	if err := p.client.Publish(ctx, Channel(n.RecipientID), payload).Err(); err != nil {
		return fmt.Errorf("ошибка публикации в Redis: %w", err)
	}
	return nil
}

// RedisBridge слушает notifications:* и перекладывает записи в локальный хаб,
// откуда их забирают SSE-подписчики этого инстанса.
type RedisBridge struct {
	client redis.UniversalClient
	hub    *Hub
}

// NewRedisBridge создаёт мост Redis → Hub.
func NewRedisBridge(client redis.UniversalClient, hub *Hub) *RedisBridge {
	return &RedisBridge{client: client, hub: hub}
}

// Run блокируется до отмены ctx.
func (b *RedisBridge) Run(ctx context.Context) error {
	ps := b.client.PSubscribe(ctx, ChannelPrefix+"*")
	defer ps.Close()

	if _, err := ps.Receive(ctx); err != nil {
		return fmt.Errorf("ошибка подписки на Redis: %w", err)
	}
	log.Info("Мост уведомлений Redis запущен")

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			n, err := decodeMessage(msg.Channel, msg.Payload)
			if err != nil {
				log.WithError(err).WithField("channel", msg.Channel).Warn("Не удалось разобрать уведомление из Redis")
				continue
			}
			_ = b.hub.Publish(ctx, n)
		}
	}
}

// decodeMessage разбирает payload и сверяет получателя с именем канала.
func decodeMessage(channel, payload string) (*Notification, error) {
	var n Notification
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		return nil, fmt.Errorf("некорректный JSON: %w", err)
	}
	if want := strings.TrimPrefix(channel, ChannelPrefix); n.RecipientID != want {
		return nil, fmt.Errorf("получатель %q не совпадает с каналом %q", n.RecipientID, channel)
	}
	return &n, nil
}
