package engine

import (
	"context"

	log "github.com/sirupsen/logrus"

	"rateme.app/engine/internal/features/badges"
	"rateme.app/engine/internal/features/members"
	"rateme.app/engine/internal/features/streak"
)

// Profile — всё, что клиент показывает на странице профиля.
type Profile struct {
	Member *members.Member `json:"member"`
	Badges *badges.Set     `json:"badges"`
	Streak *streak.Streak  `json:"streak"`
}

// RegisterMember заводит профиль вместе со счётом, стриком и бейджами.
func (e *Engine) RegisterMember(ctx context.Context, m *members.Member) error {
	if err := m.Validate(); err != nil {
		return err
	}
	err := e.st.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := e.st.Members.CreateMember(ctx, m); err != nil {
			return err
		}
		if err := e.st.Balances.CreateBalance(ctx, m.ID); err != nil {
			return err
		}
		if err := e.st.Streaks.CreateStreak(ctx, m.ID); err != nil {
			return err
		}
		return e.st.Badges.CreateBadgeSet(ctx, m.ID)
	})
	if err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"user_id":  m.ID,
		"username": m.Username,
	}).Info("Новый участник")
	return nil
}

// Profile собирает профиль пользователя.
func (e *Engine) Profile(ctx context.Context, userID string) (*Profile, error) {
	m, err := e.st.Members.GetMember(ctx, userID, false)
	if err != nil {
		return nil, err
	}
	set, err := e.st.Badges.GetBadgeSet(ctx, userID, false)
	if err != nil {
		return nil, err
	}
	s, err := e.st.Streaks.GetStreak(ctx, userID, false)
	if err != nil {
		return nil, err
	}
	return &Profile{Member: m, Badges: set, Streak: s}, nil
}
