// Package notify превращает взаимодействия (оценка, сохранение, репост,
// комментарий, упоминание) в уведомления и доставляет их получателю.
package notify

import (
	"time"

	"rateme.app/engine/internal/features/badges"
)

// Type — вид уведомления.
type Type string

const (
	TypeRating    Type = "RATING"
	TypeDescribed Type = "DESCRIBED"
	TypeSaved     Type = "SAVED"
	TypeReposted  Type = "REPOSTED"
	TypeComment   Type = "COMMENT"
	TypeReply     Type = "REPLY"
)

// ListLimit — сколько последних уведомлений отдаёт список.
const ListLimit = 50

// Notification — запись для одного получателя. После создания меняется только IsRead.
type Notification struct {
	ID           string        `json:"id"`
	RecipientID  string        `json:"recipient_id"`
	Type         Type          `json:"type"`
	ActorID      string        `json:"actor_id"`
	ActorName    string        `json:"actor_name"`
	Score        float64       `json:"score"`
	Emoji        string        `json:"emoji"`
	PostID       string        `json:"post_id,omitempty"`
	PostMediaURL string        `json:"post_media_url,omitempty"`
	BadgeScores  badges.Scores `json:"badge_scores,omitempty"`
	CommentID    string        `json:"comment_id,omitempty"`
	CommentText  string        `json:"comment_text,omitempty"`
	IsRead       bool          `json:"is_read"`
	CreatedAt    time.Time     `json:"created_at"`
}

// PostRef — то, что роутеру нужно знать о посте.
type PostRef struct {
	ID        string
	CreatorID string
	MediaURL  string
}

// Event — взаимодействие, из которого может получиться уведомление.
type Event struct {
	Type         Type
	ActorID      string
	ActorName    string
	Score        float64
	Post         *PostRef      // RATING поста, SAVED, REPOSTED, COMMENT, REPLY
	TargetUserID string        // RATING профиля и DESCRIBED
	Mention      string        // REPLY: username из комментария
	Badges       badges.Scores // DESCRIBED
	CommentID    string
	CommentText  string
}

// EmojiFor подбирает эмодзи к уведомлению.
func EmojiFor(t Type, score float64) string {
	switch t {
	case TypeRating:
		switch {
		case score >= 4:
			return "🔥"
		case score >= 3:
			return "👍"
		default:
			return "⭐"
		}
	case TypeDescribed:
		return "✨"
	case TypeSaved:
		return "🔖"
	case TypeReposted:
		return "🔁"
	case TypeComment:
		return "💬"
	case TypeReply:
		return "↩️"
	}
	return ""
}
