package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"rateme.app/engine/internal/common"
)

// statusBySentinel — ответ клиенту на ошибки движка.
// Текст берётся из самой ошибки-сентинела: обёртки репозиториев наружу не уходят.
var statusBySentinel = []struct {
	err    error
	status int
}{
	{common.ErrInsufficientFunds, http.StatusPaymentRequired},
	{common.ErrInvalidAmount, http.StatusBadRequest},
	{common.ErrTargetNotFound, http.StatusNotFound},
	{common.ErrUserNotFound, http.StatusNotFound},
	{common.ErrPostNotFound, http.StatusNotFound},
	{common.ErrRatingNotFound, http.StatusNotFound},
	{common.ErrNoStreakOffer, http.StatusConflict},
	{common.ErrUsernameTaken, http.StatusConflict},
	{common.ErrWrongPassword, http.StatusUnauthorized},
	{common.ErrTooManyAttempts, http.StatusTooManyRequests},
	{common.ErrAdminDisabled, http.StatusForbidden},
}

// writeError превращает ошибку в JSON-ответ {"error": ...}.
func writeError(c *gin.Context, err error) {
	var ve *common.ValidationError
	if errors.As(err, &ve) {
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Error(), "field": ve.Field})
		return
	}

	var blocked *common.CooldownBlockedError
	if errors.As(err, &blocked) {
		c.JSON(http.StatusConflict, gin.H{
			"error":        blocked.Error(),
			"bypass_cost":  blocked.BypassCost,
			"available_at": blocked.AvailableAt,
		})
		return
	}

	for _, s := range statusBySentinel {
		if errors.Is(err, s.err) {
			c.JSON(s.status, gin.H{"error": s.err.Error()})
			return
		}
	}

	log.WithError(err).WithField("path", c.Request.URL.Path).Error("Ошибка обработки запроса")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
