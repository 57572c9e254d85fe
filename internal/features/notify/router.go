package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"rateme.app/engine/internal/common"
	"rateme.app/engine/internal/features/badges"
	"rateme.app/engine/internal/features/members"
)

// MemberLookup ищет получателя упоминания по точному username.
type MemberLookup interface {
	GetMemberByUsername(ctx context.Context, username string) (*members.Member, error)
}

// Router находит единственного получателя события и собирает запись.
//
//	RATING поста, SAVED, REPOSTED, COMMENT → автор поста
//	RATING профиля, DESCRIBED              → владелец профиля
//	REPLY                                  → упомянутый @username
//
// Если получатель — сам автор действия, Route возвращает ErrSelfNotification;
// если username не найден — ErrRecipientNotFound. Это не сбои: уведомления просто нет.
type Router struct {
	members MemberLookup
	clock   common.Clock
}

// NewRouter создаёт роутер.
func NewRouter(members MemberLookup, clock common.Clock) *Router {
	return &Router{members: members, clock: clock}
}

// Route превращает событие в уведомление.
func (r *Router) Route(ctx context.Context, ev Event) (*Notification, error) {
	recipient, err := r.recipient(ctx, ev)
	if err != nil {
		return nil, err
	}
	if recipient == ev.ActorID {
		return nil, common.ErrSelfNotification
	}

	n := &Notification{
		ID:          uuid.NewString(),
		RecipientID: recipient,
		Type:        ev.Type,
		ActorID:     ev.ActorID,
		ActorName:   ev.ActorName,
		Score:       ev.Score,
		Emoji:       EmojiFor(ev.Type, ev.Score),
		CommentID:   ev.CommentID,
		CommentText: ev.CommentText,
		CreatedAt:   r.clock.Now().UTC(),
	}
	if ev.Post != nil {
		n.PostID = ev.Post.ID
		n.PostMediaURL = ev.Post.MediaURL
	}
	if ev.Type == TypeDescribed {
		n.BadgeScores = snapshot(ev.Badges)
	}
	return n, nil
}

func (r *Router) recipient(ctx context.Context, ev Event) (string, error) {
	switch ev.Type {
	case TypeRating:
		if ev.Post != nil {
			return ev.Post.CreatorID, nil
		}
		return requireTarget(ev.TargetUserID)
	case TypeDescribed:
		return requireTarget(ev.TargetUserID)
	case TypeSaved, TypeReposted, TypeComment:
		if ev.Post == nil {
			return "", fmt.Errorf("%s без поста: %w", ev.Type, common.ErrTargetNotFound)
		}
		return ev.Post.CreatorID, nil
	case TypeReply:
		if ev.Mention == "" {
			return "", common.ErrRecipientNotFound
		}
		m, err := r.members.GetMemberByUsername(ctx, ev.Mention)
		if err != nil {
			if errors.Is(err, common.ErrUserNotFound) {
				return "", common.ErrRecipientNotFound
			}
			return "", err
		}
		return m.ID, nil
	}
	return "", common.NewValidationError("type", "unknown notification type %q", ev.Type)
}

func requireTarget(id string) (string, error) {
	if id == "" {
		return "", common.ErrTargetNotFound
	}
	return id, nil
}

// snapshot копирует бейджи: запись не должна меняться вместе с исходной картой.
func snapshot(s badges.Scores) badges.Scores {
	if len(s) == 0 {
		return nil
	}
	out := make(badges.Scores, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// IsSkip сообщает, что ошибка Route означает «уведомления нет», а не сбой.
func IsSkip(err error) bool {
	return errors.Is(err, common.ErrSelfNotification) || errors.Is(err, common.ErrRecipientNotFound)
}
