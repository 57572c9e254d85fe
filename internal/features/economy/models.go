// Package economy управляет виртуальной валютой RateCoins.
// models.go описывает структуры для балансов и транзакций.
package economy

import "time"

// Balance — счёт пользователя. У каждого участника ровно одна запись в balances.
// Баланс не бывает отрицательным: списания проверяются под блокировкой строки.
type Balance struct {
	UserID      string    `json:"user_id"`
	Balance     int64     `json:"balance"`
	TotalEarned int64     `json:"total_earned"`
	TotalSpent  int64     `json:"total_spent"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Transaction — одна запись истории движения монет.
type Transaction struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Amount    int64     `json:"amount"`    // всегда положительная
	Direction string    `json:"direction"` // credit или debit
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// Направления движения монет
const (
	DirectionCredit = "credit"
	DirectionDebit  = "debit"
)

// Причины начислений и списаний (колонка transactions.reason)
const (
	ReasonRate        = "rate"         // оценка чужого поста
	ReasonDescribe    = "describe"     // оценка профиля
	ReasonRated       = "rated"        // тебя оценили
	ReasonPost        = "post"         // новый пост
	ReasonPoll        = "daily_poll"   // ответ на опрос дня
	ReasonStreak      = "streak_claim" // бонус за день стрика
	ReasonBypass      = "cooldown_bypass"
	ReasonAdminCredit = "admin_give"
	ReasonAdminDebit  = "admin_take"
)
