package engine

import (
	"context"

	"rateme.app/engine/internal/common"
	"rateme.app/engine/internal/features/economy"
	"rateme.app/engine/internal/features/notify"
	"rateme.app/engine/internal/features/poll"
)

// AnswerPoll сохраняет ответ на опрос дня (календарный день в APP_TIMEZONE).
// Ответ можно менять; REWARD_POLL начисляется только за первый ответ дня.
func (e *Engine) AnswerPoll(ctx context.Context, userID string, a poll.Answer) (*poll.Response, int64, error) {
	day := common.StartOfDay(e.now(), e.set.Location)
	resp, err := poll.NewResponse(userID, day, a)
	if err != nil {
		return nil, 0, err
	}

	var first bool
	err = e.st.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := e.st.Members.GetMember(ctx, userID, false); err != nil {
			return err
		}
		var err error
		first, err = e.st.Polls.UpsertPollResponse(ctx, resp)
		return err
	})
	if err != nil {
		return nil, 0, err
	}

	var awarded int64
	if first {
		awarded = e.awardAfterCommit(ctx, userID, e.set.RewardPoll, economy.ReasonPoll)
	}
	return resp, awarded, nil
}

// Notifications возвращает последние уведомления, новые сверху.
func (e *Engine) Notifications(ctx context.Context, userID string) ([]*notify.Notification, error) {
	return e.st.Notifications.ListNotifications(ctx, userID, notify.ListLimit)
}

// UnreadCount — число непрочитанных уведомлений.
func (e *Engine) UnreadCount(ctx context.Context, userID string) (int, error) {
	return e.st.Notifications.UnreadCount(ctx, userID)
}

// MarkRead отмечает уведомления прочитанными; пустой ids — все.
func (e *Engine) MarkRead(ctx context.Context, userID string, ids []string) (int64, error) {
	return e.st.Notifications.MarkRead(ctx, userID, ids)
}
