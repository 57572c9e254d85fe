package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/require"

	"rateme.app/engine/internal/features/badges"
)

func TestHubDeliversToRecipientOnly(t *testing.T) {
	hub := NewHub(4)
	bobCh, cancelBob := hub.Subscribe("b")
	defer cancelBob()
	carolCh, cancelCarol := hub.Subscribe("c")
	defer cancelCarol()

	require.NoError(t, hub.Publish(context.Background(), &Notification{ID: "n1", RecipientID: "b"}))

	select {
	case n := <-bobCh:
		require.Equal(t, "n1", n.ID)
	case <-time.After(time.Second):
		t.Fatal("уведомление не доставлено")
	}
	select {
	case n := <-carolCh:
		t.Fatalf("чужое уведомление: %v", n)
	default:
	}
}

func TestHubDropsWhenFull(t *testing.T) {
	hub := NewHub(1)
	ch, cancel := hub.Subscribe("b")
	defer cancel()

	require.NoError(t, hub.Publish(context.Background(), &Notification{ID: "n1", RecipientID: "b"}))
	require.NoError(t, hub.Publish(context.Background(), &Notification{ID: "n2", RecipientID: "b"}))

	require.Equal(t, "n1", (<-ch).ID)
	select {
	case n := <-ch:
		t.Fatalf("лишнее уведомление: %v", n.ID)
	default:
	}
}

func TestHubCancelClosesChannel(t *testing.T) {
	hub := NewHub(1)
	ch, cancel := hub.Subscribe("b")
	require.Equal(t, 1, hub.Subscribers("b"))

	cancel()
	cancel()

	_, ok := <-ch
	require.False(t, ok)
	require.Zero(t, hub.Subscribers("b"))
	require.NoError(t, hub.Publish(context.Background(), &Notification{RecipientID: "b"}))
}

type failingPublisher struct{ err error }

func (f failingPublisher) Publish(context.Context, *Notification) error { return f.err }

func TestFanoutJoinsErrors(t *testing.T) {
	hub := NewHub(1)
	ch, cancel := hub.Subscribe("b")
	defer cancel()

	boom := errors.New("boom")
	err := Fanout{failingPublisher{boom}, hub}.Publish(context.Background(), &Notification{ID: "n1", RecipientID: "b"})
	require.ErrorIs(t, err, boom)
	require.Equal(t, "n1", (<-ch).ID)
}

func TestDecodeMessage(t *testing.T) {
	n, err := decodeMessage("notifications:b", `{"id":"n1","recipient_id":"b","type":"SAVED"}`)
	require.NoError(t, err)
	require.Equal(t, TypeSaved, n.Type)

	_, err = decodeMessage("notifications:c", `{"id":"n1","recipient_id":"b"}`)
	require.Error(t, err)

	_, err = decodeMessage("notifications:b", `not json`)
	require.Error(t, err)

	require.Equal(t, "notifications:b", Channel("b"))
}

type chatStub map[string]int64

func (c chatStub) TelegramChatID(_ context.Context, userID string) (int64, bool, error) {
	id, ok := c[userID]
	return id, ok, nil
}

type senderStub struct {
	sent []*telego.SendMessageParams
}

func (s *senderStub) SendMessage(_ context.Context, params *telego.SendMessageParams) (*telego.Message, error) {
	s.sent = append(s.sent, params)
	return &telego.Message{}, nil
}

func TestTelegramPublisher(t *testing.T) {
	sender := &senderStub{}
	p := NewTelegramPublisherWithSender(sender, chatStub{"b": 4242})

	require.NoError(t, p.Publish(context.Background(), &Notification{
		RecipientID: "b", Type: TypeSaved, ActorName: "Alice", Emoji: "🔖",
	}))
	require.NoError(t, p.Publish(context.Background(), &Notification{
		RecipientID: "nochat", Type: TypeSaved,
	}))

	require.Len(t, sender.sent, 1)
	require.Equal(t, int64(4242), sender.sent[0].ChatID.ID)
	require.Equal(t, "🔖 Alice saved your post", sender.sent[0].Text)
}

func TestRender(t *testing.T) {
	require.Equal(t, "🔥 Alice rated your post 5.0",
		Render(&Notification{Type: TypeRating, ActorName: "Alice", Emoji: "🔥", Score: 5, PostID: "p1"}))
	require.Equal(t, "✨ Alice described you\nHumor: 5.0\nIntelligence: 4.0",
		Render(&Notification{Type: TypeDescribed, ActorName: "Alice", Emoji: "✨",
			BadgeScores: badges.Scores{badges.Intelligence: 4, badges.Humor: 5}}))
}

type purgerStub struct{ before time.Time }

func (p *purgerStub) PurgeRead(_ context.Context, before time.Time) (int64, error) {
	p.before = before
	return 3, nil
}

func TestPurgeExpired(t *testing.T) {
	store := &purgerStub{}
	svc := NewService(store, 90*24*time.Hour, func() time.Time { return fixedNow })

	n, err := svc.PurgeExpired(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(3), n)
	require.Equal(t, fixedNow.Add(-90*24*time.Hour), store.before)
}
