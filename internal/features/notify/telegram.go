package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

// ChatLookup возвращает привязанный к пользователю Telegram-чат.
type ChatLookup interface {
	TelegramChatID(ctx context.Context, userID string) (int64, bool, error)
}

// MessageSender — часть *telego.Bot, которой пользуется паблишер.
type MessageSender interface {
	SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error)
}

// TelegramPublisher дублирует уведомление текстом в Telegram, если у получателя
// привязан чат. Без чата — молча ничего не делает.
type TelegramPublisher struct {
	bot   MessageSender
	chats ChatLookup
}

// NewTelegramPublisher создаёт бота по токену.
func NewTelegramPublisher(token string, chats ChatLookup) (*TelegramPublisher, error) {
	bot, err := telego.NewBot(token)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания Telegram-бота: %w", err)
	}
	return &TelegramPublisher{bot: bot, chats: chats}, nil
}

// NewTelegramPublisherWithSender — для подмены бота в тестах.
func NewTelegramPublisherWithSender(bot MessageSender, chats ChatLookup) *TelegramPublisher {
	return &TelegramPublisher{bot: bot, chats: chats}
}

func (p *TelegramPublisher) Publish(ctx context.Context, n *Notification) error {
	chatID, ok, err := p.chats.TelegramChatID(ctx, n.RecipientID)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if _, err := p.bot.SendMessage(ctx, tu.Message(tu.ID(chatID), Render(n))); err != nil {
		return fmt.Errorf("ошибка отправки в Telegram (chat_id=%d): %w", chatID, err)
	}
	return nil
}

// Render — текст уведомления для мессенджера.
func Render(n *Notification) string {
	var sb strings.Builder
	sb.WriteString(n.Emoji)
	sb.WriteString(" ")
	sb.WriteString(n.ActorName)

	switch n.Type {
	case TypeRating:
		if n.PostID != "" {
			fmt.Fprintf(&sb, " rated your post %.1f", n.Score)
		} else {
			fmt.Fprintf(&sb, " rated you %.1f", n.Score)
		}
	case TypeDescribed:
		sb.WriteString(" described you")
		for _, k := range n.BadgeScores.SortedKeys() {
			fmt.Fprintf(&sb, "\n%s: %.1f", k, n.BadgeScores[k])
		}
	case TypeSaved:
		sb.WriteString(" saved your post")
	case TypeReposted:
		sb.WriteString(" reposted your post")
	case TypeComment:
		sb.WriteString(" commented: ")
		sb.WriteString(n.CommentText)
	case TypeReply:
		sb.WriteString(" mentioned you: ")
		sb.WriteString(n.CommentText)
	}
	return sb.String()
}
