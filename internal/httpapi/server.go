// Package httpapi — JSON API движка для UI-клиентов и SSE-поток уведомлений.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"rateme.app/engine/internal/common"
	"rateme.app/engine/internal/engine"
	"rateme.app/engine/internal/features/notify"
)

// Pinger — проверка живости БД для /healthz.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler держит зависимости обработчиков.
type Handler struct {
	eng       *engine.Engine
	hub       *notify.Hub
	db        Pinger
	clock     common.Clock
	keepAlive time.Duration
}

// NewHandler создаёт обработчики. db может быть nil (тесты).
func NewHandler(eng *engine.Engine, hub *notify.Hub, db Pinger, clock common.Clock) *Handler {
	return &Handler{eng: eng, hub: hub, db: db, clock: clock, keepAlive: 25 * time.Second}
}

// NewRouter собирает gin.Engine со всеми маршрутами.
func NewRouter(h *Handler, rl *RateLimiter) *gin.Engine {
	r := gin.New()
	r.Use(Recovery(), AccessLog())

	r.GET("/healthz", h.health)

	v1 := r.Group("/v1")
	if rl != nil {
		v1.Use(RateLimit(rl))
	}
	v1.Use(RequireUser())
	{
		v1.POST("/members", h.registerMember)
		v1.GET("/members/:id", h.profile)
		v1.GET("/members/:id/balance", h.balance)
		v1.GET("/members/:id/transactions", h.transactions)

		v1.POST("/ratings", h.submitRating)
		v1.DELETE("/ratings/:kind/:target", h.deleteRating)
		v1.GET("/cooldowns/:target", h.checkCooldown)

		v1.POST("/posts", h.createPost)
		v1.POST("/posts/:id/save", h.toggleSave)
		v1.POST("/posts/:id/repost", h.toggleRepost)
		v1.POST("/posts/:id/comments", h.postComment)

		v1.POST("/streak/claim", h.claimStreak)
		v1.POST("/polls/today", h.answerPoll)

		v1.GET("/notifications", h.listNotifications)
		v1.GET("/notifications/unread", h.unreadCount)
		v1.POST("/notifications/read", h.markRead)
		v1.GET("/notifications/stream", h.stream)

		v1.POST("/admin/coins", h.adjustBalance)
	}
	return r
}

func (h *Handler) health(c *gin.Context) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
