package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"rateme.app/engine/internal/common"
	"rateme.app/engine/internal/features/badges"
	"rateme.app/engine/internal/features/cooldown"
	"rateme.app/engine/internal/features/economy"
	"rateme.app/engine/internal/features/notify"
	"rateme.app/engine/internal/features/rating"
	"rateme.app/engine/internal/features/streak"
)

// SubmitRatingRequest — одна оценка поста или профиля.
type SubmitRatingRequest struct {
	RaterID    string            `json:"-"`
	TargetID   string            `json:"target_id"`
	TargetKind rating.TargetKind `json:"target_kind"`
	Value      float64           `json:"value"`
	Scale      float64           `json:"scale,omitempty"` // 0 — шкала по умолчанию
	Badges     badges.Scores     `json:"badges,omitempty"`
	SessionID  string            `json:"-"`
	PayBypass  bool              `json:"pay_bypass,omitempty"`
}

// RatingResult — авторитетное состояние после оценки.
// Клиент может рисовать оптимистично, но сверяется с этим ответом.
type RatingResult struct {
	Rating       *rating.Rating       `json:"rating"`
	Aggregate    rating.Aggregate     `json:"aggregate"`
	Badges       *badges.Set          `json:"badges,omitempty"`
	CoinsAwarded int64                `json:"coins_awarded"`
	BypassPaid   int64                `json:"bypass_paid,omitempty"`
	Notification *notify.Notification `json:"notification,omitempty"`
	StreakOffer  *streak.Offer        `json:"streak_offer,omitempty"`
}

// SubmitRating принимает оценку.
//
// Внутри транзакции: блокировка цели, кулдаун (для профилей), запись оценки,
// пересчёт агрегата полным проходом, бейджи, предложение стрика и уведомление.
// После фиксации: доставка уведомления и награды за первую оценку цели
// (оценщику REWARD_RATE или REWARD_DESCRIBE, получателю REWARD_RATED).
// Пара «оценщик — цель» награждается один раз за всё время (rating_rewards).
// За оценку самого себя монет нет.
func (e *Engine) SubmitRating(ctx context.Context, req SubmitRatingRequest) (*RatingResult, error) {
	if req.Scale == 0 {
		req.Scale = e.set.DefaultScale
	}
	value, err := rating.Submission{
		RaterID:    req.RaterID,
		TargetID:   req.TargetID,
		TargetKind: req.TargetKind,
		Value:      req.Value,
		Scale:      req.Scale,
		Badges:     req.Badges,
	}.Normalize()
	if err != nil {
		return nil, err
	}

	now := e.now()
	res := &RatingResult{}
	var (
		first   bool
		rateeID string
	)

	err = e.st.Tx.WithinTx(ctx, func(ctx context.Context) error {
		rater, err := e.st.Members.GetMember(ctx, req.RaterID, false)
		if err != nil {
			return err
		}
		ev := notify.Event{ActorID: rater.ID, ActorName: rater.Name(), Score: value}

		switch req.TargetKind {
		case rating.TargetPost:
			post, err := e.st.Posts.GetPost(ctx, req.TargetID, true)
			if err != nil {
				return targetError(req.TargetKind, req.TargetID, err)
			}
			rateeID = post.CreatorID
			ev.Type = notify.TypeRating
			ev.Post = &notify.PostRef{ID: post.ID, CreatorID: post.CreatorID, MediaURL: post.MediaURL}
		case rating.TargetUser:
			target, err := e.st.Members.GetMember(ctx, req.TargetID, true)
			if err != nil {
				return targetError(req.TargetKind, req.TargetID, err)
			}
			rateeID = target.ID
			paid, err := e.passCooldown(ctx, rater.ID, target.ID, now, req.PayBypass)
			if err != nil {
				return err
			}
			res.BypassPaid = paid
			ev.TargetUserID = target.ID
			ev.Type = notify.TypeRating
			if len(req.Badges) > 0 {
				ev.Type = notify.TypeDescribed
				ev.Badges = req.Badges
			}
		}

		r := &rating.Rating{
			RaterID:    rater.ID,
			TargetKind: req.TargetKind,
			TargetID:   req.TargetID,
			Value:      value,
			Badges:     req.Badges,
		}
		prev, err := e.st.Ratings.UpsertRating(ctx, r)
		if err != nil {
			return err
		}
		res.Rating = r
		// награда — один раз на пару, даже если оценку удаляли и ставили заново
		if prev == nil && rateeID != rater.ID {
			first, err = e.st.Ratings.MarkRewarded(ctx, rater.ID, req.TargetKind, req.TargetID, now)
			if err != nil {
				return err
			}
		}

		agg, err := e.recompute(ctx, req.TargetKind, req.TargetID)
		if err != nil {
			return err
		}
		res.Aggregate = agg

		if len(req.Badges) > 0 {
			set, err := e.st.Badges.GetBadgeSet(ctx, req.TargetID, true)
			if err != nil {
				return err
			}
			updated := badges.Apply(set, req.Badges)
			if err := e.st.Badges.SaveBadgeSet(ctx, updated); err != nil {
				return err
			}
			res.Badges = updated
		}

		offer, err := e.touchStreak(ctx, rater.ID, req.SessionID, now, prev == nil)
		if err != nil {
			return err
		}
		res.StreakOffer = offer

		n, err := e.route(ctx, ev)
		if err != nil {
			return err
		}
		res.Notification = n
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"rater_id":    req.RaterID,
		"target_id":   req.TargetID,
		"target_kind": req.TargetKind,
		"value":       value,
		"count":       res.Aggregate.Count,
	}).Debug("Оценка принята")

	e.deliver(ctx, res.Notification)

	if first {
		base, reason := e.set.RewardRate, economy.ReasonRate
		if res.Rating.IsDescribe() {
			base, reason = e.set.RewardDescribe, economy.ReasonDescribe
		}
		res.CoinsAwarded = e.awardAfterCommit(ctx, req.RaterID, base, reason)
		e.awardAfterCommit(ctx, rateeID, e.set.RewardRated, economy.ReasonRated)
	}
	return res, nil
}

// DeleteRating отзывает свою оценку и пересчитывает агрегат цели.
// Бейджи и уже начисленные монеты не откатываются.
func (e *Engine) DeleteRating(ctx context.Context, raterID string, kind rating.TargetKind, targetID string) (rating.Aggregate, error) {
	if !kind.Valid() {
		return rating.Aggregate{}, common.NewValidationError("target_kind", "must be %q or %q", rating.TargetPost, rating.TargetUser)
	}

	var agg rating.Aggregate
	err := e.st.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := e.lockTarget(ctx, kind, targetID); err != nil {
			return err
		}
		if _, err := e.st.Ratings.DeleteRating(ctx, raterID, kind, targetID); err != nil {
			return err
		}
		var err error
		agg, err = e.recompute(ctx, kind, targetID)
		return err
	})
	if err != nil {
		return rating.Aggregate{}, err
	}
	return agg, nil
}

// CheckCooldown сообщает, может ли rater бесплатно оценить профиль targetUserID в момент now.
func (e *Engine) CheckCooldown(ctx context.Context, raterID, targetUserID string, now time.Time) (cooldown.Decision, error) {
	rec, err := e.st.Cooldowns.GetCooldown(ctx, raterID, targetUserID)
	if err != nil {
		return cooldown.Decision{}, err
	}
	return e.set.Cooldown.Check(rec, now), nil
}

// passCooldown пропускает оценку профиля: бесплатная сбрасывает часы,
// платная списывает стоимость обхода и часы не трогает.
func (e *Engine) passCooldown(ctx context.Context, raterID, targetID string, now time.Time, pay bool) (int64, error) {
	rec, err := e.st.Cooldowns.GetCooldown(ctx, raterID, targetID)
	if err != nil {
		return 0, err
	}
	d := e.set.Cooldown.Check(rec, now)
	if d.Allowed {
		return 0, e.st.Cooldowns.TouchCooldown(ctx, raterID, targetID, now)
	}
	if !pay {
		return 0, d.Err()
	}
	if _, err := e.st.Balances.Debit(ctx, raterID, d.BypassCost, economy.ReasonBypass); err != nil {
		return 0, fmt.Errorf("обход кулдауна: %w", err)
	}
	log.WithFields(log.Fields{
		"rater_id":  raterID,
		"target_id": targetID,
		"amount":    d.BypassCost,
	}).Info("Кулдаун обойдён за монеты")
	return d.BypassCost, nil
}

// touchStreak отмечает активность и, если это первая новая оценка в сессии, делает предложение.
// Перезапись уже существующей оценки предложения не даёт.
func (e *Engine) touchStreak(ctx context.Context, userID, sessionID string, now time.Time, fresh bool) (*streak.Offer, error) {
	s, err := e.st.Streaks.GetStreak(ctx, userID, true)
	if err != nil {
		return nil, err
	}
	if err := e.st.Streaks.MarkActive(ctx, userID, now); err != nil {
		return nil, err
	}
	if !fresh || !streak.ShouldOffer(s, sessionID, now, e.set.Location) {
		return nil, nil
	}
	day := s.NextDay()
	if err := e.st.Streaks.SaveOffer(ctx, userID, sessionID, day); err != nil {
		return nil, err
	}
	return &streak.Offer{Day: day, Points: e.calc.StreakReward(day)}, nil
}

// lockTarget блокирует строку цели до конца транзакции.
func (e *Engine) lockTarget(ctx context.Context, kind rating.TargetKind, targetID string) error {
	var err error
	switch kind {
	case rating.TargetPost:
		_, err = e.st.Posts.GetPost(ctx, targetID, true)
	case rating.TargetUser:
		_, err = e.st.Members.GetMember(ctx, targetID, true)
	}
	if err != nil {
		return targetError(kind, targetID, err)
	}
	return nil
}

// recompute пересчитывает агрегат цели полным проходом и сохраняет его в кэш.
func (e *Engine) recompute(ctx context.Context, kind rating.TargetKind, targetID string) (rating.Aggregate, error) {
	values, err := e.st.Ratings.TargetValues(ctx, kind, targetID)
	if err != nil {
		return rating.Aggregate{}, err
	}
	agg := rating.Compute(values)
	switch kind {
	case rating.TargetPost:
		err = e.st.Posts.UpdatePostRating(ctx, targetID, agg.Average, agg.Count)
	case rating.TargetUser:
		err = e.st.Members.UpdateMemberScore(ctx, targetID, agg.Average, agg.Count)
	}
	if err != nil {
		return rating.Aggregate{}, err
	}
	return agg, nil
}

func targetError(kind rating.TargetKind, id string, err error) error {
	if errors.Is(err, common.ErrPostNotFound) || errors.Is(err, common.ErrUserNotFound) {
		return fmt.Errorf("%s %s: %w", kind, id, common.ErrTargetNotFound)
	}
	return err
}
