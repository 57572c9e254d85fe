// Package poll — repository.go работает с таблицей poll_responses.
package poll

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"rateme.app/engine/internal/db/postgres"
)

// Repository хранит ответы на опрос.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// UpsertPollResponse сохраняет ответ за день. first == true, если за этот день
// ответ пришёл впервые.
func (r *Repository) UpsertPollResponse(ctx context.Context, resp *Response) (bool, error) {
	var inserted bool
	err := postgres.Conn(ctx, r.db).QueryRow(ctx, `
		INSERT INTO poll_responses (poll_date, user_id, response_type, vote_choice, note_text)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''))
		ON CONFLICT (poll_date, user_id) DO UPDATE
		SET response_type = EXCLUDED.response_type,
		    vote_choice = EXCLUDED.vote_choice,
		    note_text = EXCLUDED.note_text,
		    updated_at = NOW()
		RETURNING created_at, updated_at, (xmax = 0)
	`, resp.PollDate, resp.UserID, resp.ResponseType, resp.VoteChoice, resp.NoteText,
	).Scan(&resp.CreatedAt, &resp.UpdatedAt, &inserted)
	if err != nil {
		return false, fmt.Errorf("ошибка сохранения ответа на опрос: %w", err)
	}
	return inserted, nil
}
