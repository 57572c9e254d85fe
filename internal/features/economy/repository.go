// Package economy — repository.go выполняет все операции с таблицами balances и transactions.
// Методы не открывают свою транзакцию: вызывающий оборачивает их в Transactor.WithinTx,
// чтобы изменение баланса и запись истории шли вместе с остальной командой.
package economy

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"rateme.app/engine/internal/common"
	"rateme.app/engine/internal/db/postgres"
)

// Repository предоставляет методы для работы с балансами и транзакциями.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт новый репозиторий экономики.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// CreateBalance создаёт нулевой счёт для нового участника.
func (r *Repository) CreateBalance(ctx context.Context, userID string) error {
	_, err := postgres.Conn(ctx, r.db).Exec(ctx, `
		INSERT INTO balances (user_id, balance, total_earned, total_spent)
		VALUES ($1, 0, 0, 0)
		ON CONFLICT (user_id) DO NOTHING
	`, userID)
	if err != nil {
		return fmt.Errorf("ошибка создания баланса: %w", err)
	}
	return nil
}

// GetBalance возвращает счёт пользователя.
func (r *Repository) GetBalance(ctx context.Context, userID string) (*Balance, error) {
	var b Balance
	err := postgres.Conn(ctx, r.db).QueryRow(ctx, `
		SELECT user_id, balance, total_earned, total_spent, created_at, updated_at
		FROM balances
		WHERE user_id = $1
	`, userID).Scan(&b.UserID, &b.Balance, &b.TotalEarned, &b.TotalSpent, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("баланс не найден (user_id=%s): %w", userID, common.ErrUserNotFound)
		}
		return nil, fmt.Errorf("ошибка получения баланса: %w", err)
	}
	return &b, nil
}

// Credit начисляет монеты и пишет транзакцию. Возвращает новый баланс.
func (r *Repository) Credit(ctx context.Context, userID string, amount int64, reason string) (int64, error) {
	if amount <= 0 {
		return 0, common.ErrInvalidAmount
	}
	q := postgres.Conn(ctx, r.db)

	var balance int64
	err := q.QueryRow(ctx, `
		UPDATE balances
		SET balance = balance + $2, total_earned = total_earned + $2, updated_at = NOW()
		WHERE user_id = $1
		RETURNING balance
	`, userID, amount).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("начисление (user_id=%s): %w", userID, common.ErrUserNotFound)
		}
		return 0, fmt.Errorf("ошибка начисления: %w", err)
	}

	if err := r.logTransaction(ctx, q, userID, amount, DirectionCredit, reason); err != nil {
		return 0, err
	}
	return balance, nil
}

// Debit списывает монеты. Баланс проверяется под блокировкой строки (FOR UPDATE):
// при нехватке возвращается ErrInsufficientFunds, и ничего не меняется.
func (r *Repository) Debit(ctx context.Context, userID string, amount int64, reason string) (int64, error) {
	if amount <= 0 {
		return 0, common.ErrInvalidAmount
	}
	q := postgres.Conn(ctx, r.db)

	var current int64
	err := q.QueryRow(ctx, `
		SELECT balance FROM balances WHERE user_id = $1 FOR UPDATE
	`, userID).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("списание (user_id=%s): %w", userID, common.ErrUserNotFound)
		}
		return 0, fmt.Errorf("ошибка получения баланса: %w", err)
	}
	if current < amount {
		return 0, fmt.Errorf("нужно %d, есть %d: %w", amount, current, common.ErrInsufficientFunds)
	}

	var balance int64
	err = q.QueryRow(ctx, `
		UPDATE balances
		SET balance = balance - $2, total_spent = total_spent + $2, updated_at = NOW()
		WHERE user_id = $1
		RETURNING balance
	`, userID, amount).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("ошибка списания: %w", err)
	}

	if err := r.logTransaction(ctx, q, userID, amount, DirectionDebit, reason); err != nil {
		return 0, err
	}
	return balance, nil
}

// GetTransactions возвращает последние limit транзакций пользователя.
func (r *Repository) GetTransactions(ctx context.Context, userID string, limit int) ([]*Transaction, error) {
	rows, err := postgres.Conn(ctx, r.db).Query(ctx, `
		SELECT id, user_id, amount, direction, reason, created_at
		FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения транзакций: %w", err)
	}
	defer rows.Close()

	var txs []*Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Amount, &t.Direction, &t.Reason, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования транзакции: %w", err)
		}
		txs = append(txs, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения строк: %w", err)
	}
	return txs, nil
}

func (r *Repository) logTransaction(ctx context.Context, q postgres.Querier, userID string, amount int64, direction, reason string) error {
	_, err := q.Exec(ctx, `
		INSERT INTO transactions (id, user_id, amount, direction, reason)
		VALUES ($1, $2, $3, $4, $5)
	`, uuid.NewString(), userID, amount, direction, reason)
	if err != nil {
		return fmt.Errorf("ошибка записи транзакции: %w", err)
	}
	return nil
}
