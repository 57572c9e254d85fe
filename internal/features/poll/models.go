// Package poll — ответы на опрос дня.
// Ответ можно менять в течение дня, монеты дают только за первый.
package poll

import (
	"strings"
	"time"

	"rateme.app/engine/internal/common"
)

// MaxNoteLength — максимальная длина заметки.
const MaxNoteLength = 150

// Типы ответа
const (
	ResponseVoteA = "VOTE_A"
	ResponseVoteB = "VOTE_B"
	ResponseNote  = "NOTE"
)

// Answer — то, что прислал клиент.
type Answer struct {
	ResponseType string `json:"response_type"`
	NoteText     string `json:"note_text,omitempty"`
}

// Response — сохранённый ответ пользователя за день.
type Response struct {
	PollDate     time.Time `json:"poll_date"`
	UserID       string    `json:"user_id"`
	ResponseType string    `json:"response_type"`
	VoteChoice   string    `json:"vote_choice,omitempty"` // A или B
	NoteText     string    `json:"note_text,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewResponse проверяет ответ и собирает запись на день day.
func NewResponse(userID string, day time.Time, a Answer) (*Response, error) {
	r := &Response{PollDate: day, UserID: userID, ResponseType: a.ResponseType}
	switch a.ResponseType {
	case ResponseVoteA:
		r.VoteChoice = "A"
	case ResponseVoteB:
		r.VoteChoice = "B"
	case ResponseNote:
		note := strings.TrimSpace(a.NoteText)
		if note == "" {
			return nil, common.NewValidationError("note_text", "must not be empty")
		}
		if len([]rune(note)) > MaxNoteLength {
			return nil, common.NewValidationError("note_text", "too long (max %d characters)", MaxNoteLength)
		}
		r.NoteText = note
	default:
		return nil, common.NewValidationError("response_type", "must be VOTE_A, VOTE_B or NOTE")
	}
	return r, nil
}
