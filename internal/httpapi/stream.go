package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// stream держит SSE-соединение: каждое уведомление получателю уходит событием
// "notification", раз в keepAlive — "ping", чтобы прокси не рвали соединение.
// Пропущенное (клиент офлайн) забирается через GET /v1/notifications.
func (h *Handler) stream(c *gin.Context) {
	userID := c.GetString(userIDKey)
	ch, cancel := h.hub.Subscribe(userID)
	defer cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	log.WithField("user_id", userID).Debug("SSE: подписка открыта")
	defer log.WithField("user_id", userID).Debug("SSE: подписка закрыта")

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-ch:
			if !ok {
				return
			}
			c.SSEvent("notification", n)
			c.Writer.Flush()
		case <-ticker.C:
			c.SSEvent("ping", gin.H{"at": h.clock.Now().UTC()})
			c.Writer.Flush()
		}
	}
}
