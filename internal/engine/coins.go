package engine

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"rateme.app/engine/internal/common"
	"rateme.app/engine/internal/features/economy"
)

// TransactionsLimit — глубина истории в ответе Transactions.
const TransactionsLimit = 20

// ClaimResult — засчитанный день стрика.
type ClaimResult struct {
	Day     int   `json:"day"`
	Points  int64 `json:"points"`
	Balance int64 `json:"balance"`
}

// AwardCoins начисляет floor(base × (1 + step × streak)) по стрику получателя.
// Нулевая база — не ошибка, просто ничего не начисляется.
func (e *Engine) AwardCoins(ctx context.Context, userID string, base int64, reason string) (int64, error) {
	if base < 0 {
		return 0, common.ErrInvalidAmount
	}
	if base == 0 {
		return 0, nil
	}

	var amount int64
	err := e.st.Tx.WithinTx(ctx, func(ctx context.Context) error {
		s, err := e.st.Streaks.GetStreak(ctx, userID, false)
		if err != nil {
			return err
		}
		amount = e.calc.Award(base, s.StreakDays)
		if amount == 0 {
			return nil
		}
		_, err = e.st.Balances.Credit(ctx, userID, amount, reason)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("начисление %s: %w", reason, err)
	}

	log.WithFields(log.Fields{
		"user_id": userID,
		"amount":  amount,
		"reason":  reason,
	}).Debug("Монеты начислены")
	return amount, nil
}

// Balance возвращает счёт пользователя.
func (e *Engine) Balance(ctx context.Context, userID string) (*economy.Balance, error) {
	return e.st.Balances.GetBalance(ctx, userID)
}

// Transactions возвращает последние операции по счёту.
func (e *Engine) Transactions(ctx context.Context, userID string) ([]*economy.Transaction, error) {
	return e.st.Balances.GetTransactions(ctx, userID, TransactionsLimit)
}

// ClaimStreak засчитывает предложенный день стрика и начисляет бонус за него.
// Бонус не умножается на множитель стрика.
func (e *Engine) ClaimStreak(ctx context.Context, userID string) (*ClaimResult, error) {
	now := e.now()
	var res ClaimResult
	err := e.st.Tx.WithinTx(ctx, func(ctx context.Context) error {
		s, err := e.st.Streaks.GetStreak(ctx, userID, true)
		if err != nil {
			return err
		}
		if s.PendingDay == 0 {
			return common.ErrNoStreakOffer
		}
		res.Day = s.PendingDay
		res.Points = e.calc.StreakReward(s.PendingDay)
		if err := e.st.Streaks.ClaimStreak(ctx, userID, s.PendingDay, now); err != nil {
			return err
		}
		if res.Points == 0 {
			b, err := e.st.Balances.GetBalance(ctx, userID)
			if err != nil {
				return err
			}
			res.Balance = b.Balance
			return nil
		}
		res.Balance, err = e.st.Balances.Credit(ctx, userID, res.Points, economy.ReasonStreak)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"user_id": userID,
		"day":     res.Day,
		"amount":  res.Points,
	}).Infof("Стрик засчитан: %d %s", res.Day, common.PluralizeDays(res.Day))
	return &res, nil
}

// AdjustBalance — ручная корректировка баланса оператором.
// Положительная delta начисляет, отрицательная списывает (не ниже нуля).
func (e *Engine) AdjustBalance(ctx context.Context, actorID, password, userID string, delta int64, reason string) (int64, error) {
	if e.admin == nil {
		return 0, common.ErrAdminDisabled
	}
	if err := e.admin.VerifyPassword(ctx, actorID, password); err != nil {
		return 0, err
	}
	if delta == 0 {
		return 0, common.ErrInvalidAmount
	}

	var balance int64
	err := e.st.Tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if delta > 0 {
			balance, err = e.st.Balances.Credit(ctx, userID, delta, economy.ReasonAdminCredit)
		} else {
			balance, err = e.st.Balances.Debit(ctx, userID, -delta, economy.ReasonAdminDebit)
		}
		return err
	})
	if err != nil {
		if !errors.Is(err, common.ErrInsufficientFunds) {
			log.WithError(err).WithField("user_id", userID).Error("Корректировка баланса не удалась")
		}
		return 0, err
	}

	log.WithFields(log.Fields{
		"actor_id": actorID,
		"user_id":  userID,
		"amount":   delta,
		"reason":   reason,
		"balance":  balance,
	}).Warnf("Баланс изменён оператором: %s", common.FormatCoins(delta))
	return balance, nil
}
