// Package config загружает конфигурацию движка из переменных окружения.
// Используется envconfig для маппинга переменных окружения на поля структуры,
// перед этим подхватывается .env (если он есть) через godotenv.
package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	log "github.com/sirupsen/logrus"
)

// Config содержит ВСЕ настройки приложения.
type Config struct {
	// --- HTTP ---
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`

	// --- Database ---
	// В Docker внутри контейнера "localhost" почти всегда неправильно.
	// Дефолт ставим "postgres" (имя сервиса в docker-compose), а для локалки переопределяй DB_HOST=localhost.
	DBHost     string `envconfig:"DB_HOST" default:"postgres"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"rateme"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" default:"rateme"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxConns int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns int32  `envconfig:"DB_MIN_CONNS" default:"5"`

	// --- Redis (pub/sub уведомлений между инстансами) ---
	// Пустой адрес — работаем только с локальным хабом.
	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// --- Telegram (пуш уведомлений в привязанный чат) ---
	TelegramBotToken string `envconfig:"TELEGRAM_BOT_TOKEN"`

	// --- Application ---
	AppEnv      string `envconfig:"APP_ENV" default:"development"`
	AppLogLevel string `envconfig:"APP_LOG_LEVEL" default:"debug"`
	AppTimezone string `envconfig:"APP_TIMEZONE" default:"UTC"`

	// --- Admin ---
	// Argon2id-хеш (scripts/generate_hash.go). Пустой — админ-эндпоинты выключены.
	AdminPasswordHash string `envconfig:"ADMIN_PASSWORD_HASH"`

	// --- Rating ---
	RatingMaxScale float64 `envconfig:"RATING_MAX_SCALE" default:"5"`

	// --- Cooldown ---
	CooldownPeriod     time.Duration `envconfig:"COOLDOWN_PERIOD" default:"168h"`
	CooldownBypassCost int64         `envconfig:"COOLDOWN_BYPASS_COST" default:"200"`

	// --- Rewards ---
	RewardRate     int64 `envconfig:"REWARD_RATE" default:"10"`
	RewardRated    int64 `envconfig:"REWARD_RATED" default:"5"`
	RewardDescribe int64 `envconfig:"REWARD_DESCRIBE" default:"50"`
	RewardPost     int64 `envconfig:"REWARD_POST" default:"100"`
	RewardPoll     int64 `envconfig:"REWARD_POLL" default:"50"`

	// --- Streak ---
	StreakMultiplierStep string `envconfig:"STREAK_MULTIPLIER_STEP" default:"0.05"`
	StreakBaseReward     int64  `envconfig:"STREAK_BASE_REWARD" default:"50"`
	StreakGrowth         string `envconfig:"STREAK_GROWTH" default:"1.1"`

	// --- Notifications ---
	NotificationRetention time.Duration `envconfig:"NOTIFICATION_RETENTION" default:"2160h"`

	// --- Rate Limiting ---
	RateLimitRequests int           `envconfig:"RATE_LIMIT_REQUESTS" default:"60"`
	RateLimitWindow   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`

	// --- Feature Flags ---
	FeatureTelegramEnabled    bool `envconfig:"FEATURE_TELEGRAM_ENABLED" default:"true"`
	FeatureStreakBreakEnabled bool `envconfig:"FEATURE_STREAK_BREAK_ENABLED" default:"true"`
}

// DatabaseDSN возвращает строку подключения к PostgreSQL в формате DSN.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// Validate проверяет согласованность значений.
func (c *Config) Validate() error {
	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("некорректные DB_MIN_CONNS/DB_MAX_CONNS")
	}
	switch c.RatingMaxScale {
	case 5, 10, 100:
	default:
		return fmt.Errorf("RATING_MAX_SCALE должен быть 5, 10 или 100")
	}
	if c.CooldownPeriod <= 0 {
		return fmt.Errorf("COOLDOWN_PERIOD должен быть > 0")
	}
	if c.CooldownBypassCost <= 0 {
		return fmt.Errorf("COOLDOWN_BYPASS_COST должен быть > 0")
	}
	for name, v := range map[string]int64{
		"REWARD_RATE":        c.RewardRate,
		"REWARD_RATED":       c.RewardRated,
		"REWARD_DESCRIBE":    c.RewardDescribe,
		"REWARD_POST":        c.RewardPost,
		"REWARD_POLL":        c.RewardPoll,
		"STREAK_BASE_REWARD": c.StreakBaseReward,
	} {
		if v < 0 {
			return fmt.Errorf("%s не может быть отрицательным", name)
		}
	}
	if c.RateLimitRequests <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS должен быть > 0")
	}
	return nil
}

// Load читает .env (если есть) и переменные окружения, заполняет структуру Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug("Файл .env не найден, используем переменные окружения")
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("не удалось загрузить конфигурацию: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
