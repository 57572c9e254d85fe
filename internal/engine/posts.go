package engine

import (
	"context"

	log "github.com/sirupsen/logrus"

	"rateme.app/engine/internal/features/economy"
	"rateme.app/engine/internal/features/engagement"
	"rateme.app/engine/internal/features/notify"
	"rateme.app/engine/internal/features/posts"
)

// CreatePost публикует пост и начисляет автору REWARD_POST.
// Возвращает пост и фактически начисленную сумму.
func (e *Engine) CreatePost(ctx context.Context, creatorID, mediaURL, caption string) (*posts.Post, int64, error) {
	p := &posts.Post{CreatorID: creatorID, MediaURL: mediaURL, Caption: caption}
	if err := p.Validate(); err != nil {
		return nil, 0, err
	}

	err := e.st.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := e.st.Members.GetMember(ctx, creatorID, false); err != nil {
			return err
		}
		return e.st.Posts.CreatePost(ctx, p)
	})
	if err != nil {
		return nil, 0, err
	}

	awarded := e.awardAfterCommit(ctx, creatorID, e.set.RewardPost, economy.ReasonPost)
	return p, awarded, nil
}

// ToggleSave переключает сохранение поста. Уведомление SAVED — только при включении.
func (e *Engine) ToggleSave(ctx context.Context, postID, userID string) (bool, error) {
	return e.toggle(ctx, postID, userID, notify.TypeSaved)
}

// ToggleRepost переключает репост. Уведомление REPOSTED — только при включении.
func (e *Engine) ToggleRepost(ctx context.Context, postID, userID string) (bool, error) {
	return e.toggle(ctx, postID, userID, notify.TypeReposted)
}

func (e *Engine) toggle(ctx context.Context, postID, userID string, kind notify.Type) (bool, error) {
	var (
		on bool
		n  *notify.Notification
	)
	err := e.st.Tx.WithinTx(ctx, func(ctx context.Context) error {
		actor, err := e.st.Members.GetMember(ctx, userID, false)
		if err != nil {
			return err
		}
		post, err := e.st.Posts.GetPost(ctx, postID, true)
		if err != nil {
			return err
		}

		delta := -1
		if kind == notify.TypeSaved {
			on, err = e.st.Engagement.ToggleSave(ctx, postID, userID)
		} else {
			on, err = e.st.Engagement.ToggleRepost(ctx, postID, userID)
		}
		if err != nil {
			return err
		}
		if on {
			delta = 1
		}
		if kind == notify.TypeSaved {
			err = e.st.Posts.AdjustPostCounters(ctx, postID, delta, 0)
		} else {
			err = e.st.Posts.AdjustPostCounters(ctx, postID, 0, delta)
		}
		if err != nil {
			return err
		}

		if !on {
			return nil
		}
		n, err = e.route(ctx, notify.Event{
			Type:      kind,
			ActorID:   actor.ID,
			ActorName: actor.Name(),
			Post:      &notify.PostRef{ID: post.ID, CreatorID: post.CreatorID, MediaURL: post.MediaURL},
		})
		return err
	})
	if err != nil {
		return false, err
	}

	e.deliver(ctx, n)
	return on, nil
}

// PostComment сохраняет комментарий. Автор поста получает COMMENT, пользователь
// из ведущего @упоминания получает REPLY; оба уведомления независимы.
func (e *Engine) PostComment(ctx context.Context, postID, userID, text string) (*engagement.Comment, error) {
	c := &engagement.Comment{PostID: postID, UserID: userID, Text: text}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	c.Mention, _ = engagement.ParseMention(text)

	var sent []*notify.Notification
	err := e.st.Tx.WithinTx(ctx, func(ctx context.Context) error {
		actor, err := e.st.Members.GetMember(ctx, userID, false)
		if err != nil {
			return err
		}
		post, err := e.st.Posts.GetPost(ctx, postID, false)
		if err != nil {
			return err
		}
		if err := e.st.Engagement.CreateComment(ctx, c); err != nil {
			return err
		}

		ev := notify.Event{
			ActorID:     actor.ID,
			ActorName:   actor.Name(),
			Post:        &notify.PostRef{ID: post.ID, CreatorID: post.CreatorID, MediaURL: post.MediaURL},
			CommentID:   c.ID,
			CommentText: c.Text,
		}
		kinds := []notify.Type{notify.TypeComment}
		if c.Mention != "" {
			ev.Mention = c.Mention
			kinds = append(kinds, notify.TypeReply)
		}
		for _, kind := range kinds {
			ev.Type = kind
			n, err := e.route(ctx, ev)
			if err != nil {
				return err
			}
			if n != nil {
				sent = append(sent, n)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"post_id":       postID,
		"user_id":       userID,
		"notifications": len(sent),
	}).Debug("Комментарий добавлен")

	e.deliver(ctx, sent...)
	return c, nil
}
