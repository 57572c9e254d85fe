package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"rateme.app/engine/internal/engine"
	"rateme.app/engine/internal/features/members"
	"rateme.app/engine/internal/features/poll"
	"rateme.app/engine/internal/features/rating"
)

type registerRequest struct {
	Username       string `json:"username" binding:"required"`
	DisplayName    string `json:"display_name"`
	TelegramChatID *int64 `json:"telegram_chat_id"`
}

type createPostRequest struct {
	MediaURL string `json:"media_url" binding:"required"`
	Caption  string `json:"caption"`
}

type commentRequest struct {
	Text string `json:"text" binding:"required"`
}

type markReadRequest struct {
	IDs []string `json:"ids"`
}

type adjustRequest struct {
	Password string `json:"password" binding:"required"`
	UserID   string `json:"user_id" binding:"required"`
	Delta    int64  `json:"delta"`
	Reason   string `json:"reason"`
}

// registerMember заводит профиль для пользователя из X-User-ID.
func (h *Handler) registerMember(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	m := &members.Member{
		ID:             c.GetString(userIDKey),
		Username:       req.Username,
		DisplayName:    req.DisplayName,
		TelegramChatID: req.TelegramChatID,
	}
	if err := h.eng.RegisterMember(c.Request.Context(), m); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

func (h *Handler) profile(c *gin.Context) {
	p, err := h.eng.Profile(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) balance(c *gin.Context) {
	b, err := h.eng.Balance(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *Handler) transactions(c *gin.Context) {
	txs, err := h.eng.Transactions(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txs})
}

func (h *Handler) submitRating(c *gin.Context) {
	var req engine.SubmitRatingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	req.RaterID = c.GetString(userIDKey)
	req.SessionID = c.GetString(sessionIDKey)

	res, err := h.eng.SubmitRating(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) deleteRating(c *gin.Context) {
	agg, err := h.eng.DeleteRating(c.Request.Context(),
		c.GetString(userIDKey), rating.TargetKind(c.Param("kind")), c.Param("target"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"aggregate": agg})
}

func (h *Handler) checkCooldown(c *gin.Context) {
	d, err := h.eng.CheckCooldown(c.Request.Context(), c.GetString(userIDKey), c.Param("target"), h.clock.Now().UTC())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *Handler) createPost(c *gin.Context) {
	var req createPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	p, awarded, err := h.eng.CreatePost(c.Request.Context(), c.GetString(userIDKey), req.MediaURL, req.Caption)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"post": p, "coins_awarded": awarded})
}

func (h *Handler) toggleSave(c *gin.Context) {
	on, err := h.eng.ToggleSave(c.Request.Context(), c.Param("id"), c.GetString(userIDKey))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"saved": on})
}

func (h *Handler) toggleRepost(c *gin.Context) {
	on, err := h.eng.ToggleRepost(c.Request.Context(), c.Param("id"), c.GetString(userIDKey))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reposted": on})
}

func (h *Handler) postComment(c *gin.Context) {
	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	comment, err := h.eng.PostComment(c.Request.Context(), c.Param("id"), c.GetString(userIDKey), req.Text)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

func (h *Handler) claimStreak(c *gin.Context) {
	res, err := h.eng.ClaimStreak(c.Request.Context(), c.GetString(userIDKey))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) answerPoll(c *gin.Context) {
	var req poll.Answer
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	resp, awarded, err := h.eng.AnswerPoll(c.Request.Context(), c.GetString(userIDKey), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"response": resp, "coins_awarded": awarded})
}

func (h *Handler) listNotifications(c *gin.Context) {
	list, err := h.eng.Notifications(c.Request.Context(), c.GetString(userIDKey))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": list})
}

func (h *Handler) unreadCount(c *gin.Context) {
	n, err := h.eng.UnreadCount(c.Request.Context(), c.GetString(userIDKey))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": n})
}

// markRead: пустой список ids отмечает всё.
func (h *Handler) markRead(c *gin.Context) {
	var req markReadRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	n, err := h.eng.MarkRead(c.Request.Context(), c.GetString(userIDKey), req.IDs)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"marked": n})
}

func (h *Handler) adjustBalance(c *gin.Context) {
	var req adjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	balance, err := h.eng.AdjustBalance(c.Request.Context(),
		c.GetString(userIDKey), req.Password, req.UserID, req.Delta, req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": req.UserID, "balance": balance})
}
