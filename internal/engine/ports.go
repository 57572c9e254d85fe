package engine

import (
	"context"
	"time"

	"rateme.app/engine/internal/features/badges"
	"rateme.app/engine/internal/features/cooldown"
	"rateme.app/engine/internal/features/economy"
	"rateme.app/engine/internal/features/engagement"
	"rateme.app/engine/internal/features/members"
	"rateme.app/engine/internal/features/notify"
	"rateme.app/engine/internal/features/poll"
	"rateme.app/engine/internal/features/posts"
	"rateme.app/engine/internal/features/rating"
	"rateme.app/engine/internal/features/streak"
)

// Transactor выполняет fn атомарно: либо все записи fn видны, либо ни одной.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// MemberStore — профили.
type MemberStore interface {
	CreateMember(ctx context.Context, m *members.Member) error
	GetMember(ctx context.Context, id string, forUpdate bool) (*members.Member, error)
	GetMemberByUsername(ctx context.Context, username string) (*members.Member, error)
	UpdateMemberScore(ctx context.Context, id string, average float64, count int) error
}

// PostStore — посты и их кэшированные агрегаты.
type PostStore interface {
	CreatePost(ctx context.Context, p *posts.Post) error
	GetPost(ctx context.Context, id string, forUpdate bool) (*posts.Post, error)
	UpdatePostRating(ctx context.Context, id string, average float64, count int) error
	AdjustPostCounters(ctx context.Context, id string, saveDelta, repostDelta int) error
}

// RatingStore — действующие оценки.
type RatingStore interface {
	GetRating(ctx context.Context, raterID string, kind rating.TargetKind, targetID string) (*rating.Rating, error)
	UpsertRating(ctx context.Context, r *rating.Rating) (*rating.Rating, error)
	TargetValues(ctx context.Context, kind rating.TargetKind, targetID string) ([]float64, error)
	DeleteRating(ctx context.Context, raterID string, kind rating.TargetKind, targetID string) (*rating.Rating, error)
	// MarkRewarded отмечает пару награждённой; false — награда уже была.
	MarkRewarded(ctx context.Context, raterID string, kind rating.TargetKind, targetID string, at time.Time) (bool, error)
}

// BadgeStore — средние бейджей.
type BadgeStore interface {
	CreateBadgeSet(ctx context.Context, userID string) error
	GetBadgeSet(ctx context.Context, userID string, forUpdate bool) (*badges.Set, error)
	SaveBadgeSet(ctx context.Context, s *badges.Set) error
}

// CooldownStore — часы кулдауна.
type CooldownStore interface {
	GetCooldown(ctx context.Context, raterID, targetID string) (*cooldown.Record, error)
	TouchCooldown(ctx context.Context, raterID, targetID string, at time.Time) error
}

// BalanceStore — счета и история.
type BalanceStore interface {
	CreateBalance(ctx context.Context, userID string) error
	GetBalance(ctx context.Context, userID string) (*economy.Balance, error)
	Credit(ctx context.Context, userID string, amount int64, reason string) (int64, error)
	Debit(ctx context.Context, userID string, amount int64, reason string) (int64, error)
	GetTransactions(ctx context.Context, userID string, limit int) ([]*economy.Transaction, error)
}

// StreakStore — стрики.
type StreakStore interface {
	CreateStreak(ctx context.Context, userID string) error
	GetStreak(ctx context.Context, userID string, forUpdate bool) (*streak.Streak, error)
	SaveOffer(ctx context.Context, userID, sessionID string, day int) error
	MarkActive(ctx context.Context, userID string, at time.Time) error
	ClaimStreak(ctx context.Context, userID string, day int, at time.Time) error
}

// EngagementStore — сохранения, репосты, комментарии.
type EngagementStore interface {
	ToggleSave(ctx context.Context, postID, userID string) (bool, error)
	ToggleRepost(ctx context.Context, postID, userID string) (bool, error)
	CreateComment(ctx context.Context, c *engagement.Comment) error
}

// PollStore — ответы на опрос дня.
type PollStore interface {
	UpsertPollResponse(ctx context.Context, r *poll.Response) (bool, error)
}

// NotificationStore — уведомления.
type NotificationStore interface {
	CreateNotification(ctx context.Context, n *notify.Notification) error
	ListNotifications(ctx context.Context, recipientID string, limit int) ([]*notify.Notification, error)
	UnreadCount(ctx context.Context, recipientID string) (int, error)
	MarkRead(ctx context.Context, recipientID string, ids []string) (int64, error)
}

// AdminVerifier проверяет пароль оператора.
type AdminVerifier interface {
	VerifyPassword(ctx context.Context, actorID, password string) error
}

// Stores собирает все хранилища движка.
type Stores struct {
	Tx            Transactor
	Members       MemberStore
	Posts         PostStore
	Ratings       RatingStore
	Badges        BadgeStore
	Cooldowns     CooldownStore
	Balances      BalanceStore
	Streaks       StreakStore
	Engagement    EngagementStore
	Polls         PollStore
	Notifications NotificationStore
}
