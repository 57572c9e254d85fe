// Package app инициализирует все компоненты приложения.
// app.go — точка сборки: создаёт БД-пул, репозитории, движок, HTTP API,
// доставку уведомлений и планировщик.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"rateme.app/engine/internal/config"
	"rateme.app/engine/internal/db/postgres"
	"rateme.app/engine/internal/engine"
	"rateme.app/engine/internal/features/admin"
	"rateme.app/engine/internal/features/badges"
	"rateme.app/engine/internal/features/cooldown"
	"rateme.app/engine/internal/features/economy"
	"rateme.app/engine/internal/features/engagement"
	"rateme.app/engine/internal/features/members"
	"rateme.app/engine/internal/features/notify"
	"rateme.app/engine/internal/features/poll"
	"rateme.app/engine/internal/features/posts"
	"rateme.app/engine/internal/features/rating"
	"rateme.app/engine/internal/features/rewards"
	"rateme.app/engine/internal/features/streak"
	"rateme.app/engine/internal/httpapi"
	"rateme.app/engine/internal/jobs"
)

// App содержит все компоненты приложения.
type App struct {
	Server    *http.Server
	Scheduler *jobs.Scheduler
	DB        *pgxpool.Pool
	Redis     *redis.Client
	Bridge    *notify.RedisBridge
	Limiter   *httpapi.RateLimiter
}

// New создаёт и инициализирует приложение.
// Порядок инициализации важен — компоненты зависят друг от друга.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// === 1. База данных ===
	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к БД: %w", err)
	}

	// Запускаем миграции
	if err := runMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ошибка миграций: %w", err)
	}

	// === 2. Репозитории ===
	memberRepo := members.NewRepository(pool)
	postRepo := posts.NewRepository(pool)
	ratingRepo := rating.NewRepository(pool)
	badgeRepo := badges.NewRepository(pool)
	cooldownRepo := cooldown.NewRepository(pool)
	economyRepo := economy.NewRepository(pool)
	streakRepo := streak.NewRepository(pool)
	engagementRepo := engagement.NewRepository(pool)
	pollRepo := poll.NewRepository(pool)
	notifyRepo := notify.NewRepository(pool)
	adminRepo := admin.NewRepository(pool)

	stores := engine.Stores{
		Tx:            postgres.NewTransactor(pool),
		Members:       memberRepo,
		Posts:         postRepo,
		Ratings:       ratingRepo,
		Badges:        badgeRepo,
		Cooldowns:     cooldownRepo,
		Balances:      economyRepo,
		Streaks:       streakRepo,
		Engagement:    engagementRepo,
		Polls:         pollRepo,
		Notifications: notifyRepo,
	}

	// === 3. Доставка уведомлений ===
	hub := notify.NewHub(16)
	var (
		pub         notify.Publisher = hub
		redisClient *redis.Client
		bridge      *notify.RedisBridge
	)

	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			redisClient.Close()
			pool.Close()
			return nil, fmt.Errorf("ошибка подключения к Redis: %w", err)
		}
		// Публикуем в Redis, а мост раздаёт сообщения локальным подписчикам
		pub = notify.NewRedisPublisher(redisClient)
		bridge = notify.NewRedisBridge(redisClient, hub)
		log.Infof("Redis подключён: %s", cfg.RedisAddr)
	}

	fanout := notify.Fanout{pub}
	if cfg.FeatureTelegramEnabled && cfg.TelegramBotToken != "" {
		tg, err := notify.NewTelegramPublisher(cfg.TelegramBotToken, memberRepo)
		if err != nil {
			log.Errorf("Telegram-доставка отключена: %v", err)
		} else {
			fanout = append(fanout, tg)
			log.Info("Telegram-доставка включена")
		}
	}

	// === 4. Движок ===
	calc, err := rewards.NewCalculator(cfg.StreakMultiplierStep, cfg.StreakBaseReward, cfg.StreakGrowth)
	if err != nil {
		closeAll(pool, redisClient)
		return nil, fmt.Errorf("ошибка настройки наград: %w", err)
	}

	opts := []engine.Option{engine.WithPublisher(fanout)}
	if cfg.AdminPasswordHash != "" {
		opts = append(opts, engine.WithAdmin(admin.NewService(adminRepo, cfg.AdminPasswordHash, nil)))
	} else {
		log.Warn("ADMIN_PASSWORD_HASH не задан, админ-эндпоинты выключены")
	}

	settings := engine.SettingsFromConfig(cfg)
	eng := engine.New(stores, settings, calc, opts...)

	// === 5. HTTP API ===
	limiter := httpapi.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow)
	handler := httpapi.NewHandler(eng, hub, pool, nil)
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(handler, limiter),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// === 6. Планировщик задач ===
	scheduler := jobs.NewScheduler(
		streak.NewService(streakRepo, settings.Location, nil),
		notify.NewService(notifyRepo, cfg.NotificationRetention, nil),
		settings.Location,
		cfg.FeatureStreakBreakEnabled,
	)

	return &App{
		Server:    server,
		Scheduler: scheduler,
		DB:        pool,
		Redis:     redisClient,
		Bridge:    bridge,
		Limiter:   limiter,
	}, nil
}

// Close освобождает ресурсы. HTTP-сервер и планировщик останавливаются раньше.
func (a *App) Close() {
	a.Limiter.Close()
	closeAll(a.DB, a.Redis)
}

func closeAll(pool *pgxpool.Pool, rdb *redis.Client) {
	if rdb != nil {
		if err := rdb.Close(); err != nil {
			log.Errorf("Ошибка закрытия Redis: %v", err)
		}
	}
	pool.Close()
}

// runMigrations выполняет все SQL-миграции.
func runMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	if err := postgres.PrepareMigrations(ctx, pool); err != nil {
		return err
	}

	// Выполняем миграции по порядку
	migrations := []struct {
		version int
		sql     string
	}{
		{1, migration001Members},
		{2, migration002Posts},
		{3, migration003Ratings},
		{4, migration004Economy},
		{5, migration005Streaks},
		{6, migration006Engagement},
		{7, migration007Notifications},
		{8, migration008Admin},
		{9, migration009RatingRewards},
	}

	for _, m := range migrations {
		applied, err := postgres.ExecMigrationSQL(ctx, pool, m.version, m.sql)
		if err != nil {
			return fmt.Errorf("миграция %d: %w", m.version, err)
		}
		if applied {
			log.Infof("Миграция %d применена", m.version)
		}
	}

	return nil
}

// SQL-миграции встроены в код для упрощения деплоя.

var migration001Members = `
CREATE TABLE IF NOT EXISTS members (
    id TEXT PRIMARY KEY,
    username VARCHAR(64) UNIQUE NOT NULL,
    display_name VARCHAR(255) NOT NULL DEFAULT '',
    average_score DOUBLE PRECISION NOT NULL DEFAULT 0,
    total_ratings INTEGER NOT NULL DEFAULT 0,
    telegram_chat_id BIGINT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS badge_averages (
    user_id TEXT PRIMARY KEY REFERENCES members(id) ON DELETE CASCADE,
    intelligence DOUBLE PRECISION NOT NULL DEFAULT 0,
    charisma DOUBLE PRECISION NOT NULL DEFAULT 0,
    affectionate DOUBLE PRECISION NOT NULL DEFAULT 0,
    humor DOUBLE PRECISION NOT NULL DEFAULT 0,
    active DOUBLE PRECISION NOT NULL DEFAULT 0,
    extroverted DOUBLE PRECISION NOT NULL DEFAULT 0,
    describe_count INTEGER NOT NULL DEFAULT 0,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

var migration002Posts = `
CREATE TABLE IF NOT EXISTS posts (
    id TEXT PRIMARY KEY,
    creator_id TEXT NOT NULL REFERENCES members(id),
    media_url TEXT NOT NULL,
    caption TEXT NOT NULL DEFAULT '',
    average_rating DOUBLE PRECISION NOT NULL DEFAULT 0,
    rating_count INTEGER NOT NULL DEFAULT 0,
    save_count INTEGER NOT NULL DEFAULT 0,
    repost_count INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_posts_creator_id ON posts(creator_id);
`

var migration003Ratings = `
CREATE TABLE IF NOT EXISTS ratings (
    id TEXT PRIMARY KEY,
    rater_id TEXT NOT NULL REFERENCES members(id),
    target_kind VARCHAR(16) NOT NULL CHECK (target_kind IN ('post', 'user')),
    target_id TEXT NOT NULL,
    value DOUBLE PRECISION NOT NULL CHECK (value >= 0 AND value <= 5),
    badges JSONB,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (rater_id, target_kind, target_id)
);
CREATE INDEX IF NOT EXISTS idx_ratings_target ON ratings(target_kind, target_id);
CREATE TABLE IF NOT EXISTS cooldowns (
    rater_id TEXT NOT NULL REFERENCES members(id),
    target_id TEXT NOT NULL REFERENCES members(id),
    last_free_rating_at TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (rater_id, target_id)
);
`

var migration004Economy = `
CREATE TABLE IF NOT EXISTS balances (
    user_id TEXT PRIMARY KEY REFERENCES members(id) ON DELETE CASCADE,
    balance BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
    total_earned BIGINT NOT NULL DEFAULT 0,
    total_spent BIGINT NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS transactions (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL REFERENCES members(id),
    amount BIGINT NOT NULL CHECK (amount > 0),
    direction VARCHAR(8) NOT NULL CHECK (direction IN ('credit', 'debit')),
    reason VARCHAR(64) NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_transactions_user_created ON transactions(user_id, created_at DESC);
`

var migration005Streaks = `
CREATE TABLE IF NOT EXISTS streaks (
    user_id TEXT PRIMARY KEY REFERENCES members(id) ON DELETE CASCADE,
    streak_days INTEGER NOT NULL DEFAULT 0,
    longest_streak INTEGER NOT NULL DEFAULT 0,
    offer_session TEXT,
    pending_day INTEGER NOT NULL DEFAULT 0,
    last_claimed_at TIMESTAMPTZ,
    last_active_at TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_streaks_active ON streaks(last_active_at) WHERE streak_days > 0;
`

var migration006Engagement = `
CREATE TABLE IF NOT EXISTS saved_posts (
    post_id TEXT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
    user_id TEXT NOT NULL REFERENCES members(id),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (post_id, user_id)
);
CREATE TABLE IF NOT EXISTS reposts (
    post_id TEXT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
    user_id TEXT NOT NULL REFERENCES members(id),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (post_id, user_id)
);
CREATE TABLE IF NOT EXISTS comments (
    id TEXT PRIMARY KEY,
    post_id TEXT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
    user_id TEXT NOT NULL REFERENCES members(id),
    text TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_comments_post_id ON comments(post_id, created_at);
CREATE TABLE IF NOT EXISTS poll_responses (
    poll_date DATE NOT NULL,
    user_id TEXT NOT NULL REFERENCES members(id),
    response_type VARCHAR(16) NOT NULL,
    vote_choice TEXT,
    note_text TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (poll_date, user_id)
);
`

var migration007Notifications = `
CREATE TABLE IF NOT EXISTS notifications (
    id TEXT PRIMARY KEY,
    recipient_id TEXT NOT NULL REFERENCES members(id),
    type VARCHAR(16) NOT NULL,
    actor_id TEXT NOT NULL,
    actor_name VARCHAR(255) NOT NULL DEFAULT '',
    score DOUBLE PRECISION NOT NULL DEFAULT 0,
    emoji VARCHAR(16) NOT NULL DEFAULT '',
    post_id TEXT,
    post_media_url TEXT,
    badge_scores JSONB,
    comment_id TEXT,
    comment_text TEXT,
    is_read BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_notifications_recipient ON notifications(recipient_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_notifications_unread ON notifications(recipient_id) WHERE is_read = FALSE;
`

var migration008Admin = `
CREATE TABLE IF NOT EXISTS admin_login_attempts (
    id BIGSERIAL PRIMARY KEY,
    actor_id TEXT NOT NULL,
    attempt_time TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    success BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS idx_admin_attempts_actor ON admin_login_attempts(actor_id, attempt_time);
`

var migration009RatingRewards = `
CREATE TABLE IF NOT EXISTS rating_rewards (
    rater_id TEXT NOT NULL REFERENCES members(id),
    target_kind VARCHAR(16) NOT NULL,
    target_id TEXT NOT NULL,
    rewarded_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (rater_id, target_kind, target_id)
);
INSERT INTO rating_rewards (rater_id, target_kind, target_id, rewarded_at)
SELECT rater_id, target_kind, target_id, created_at FROM ratings
ON CONFLICT DO NOTHING;
`
