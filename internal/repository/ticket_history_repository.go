package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

// TicketHistoryRepository stores audit entries.
type TicketHistoryRepository interface {
	Create(ctx context.Context, history *domain.TicketHistory) error
	ListByTicket(ctx context.Context, ticketID int) ([]domain.TicketHistory, error)
}

type ticketHistoryRepository struct {
	pool *pgxpool.Pool
}

// NewTicketHistoryRepository builds repository.
func NewTicketHistoryRepository(pool *pgxpool.Pool) TicketHistoryRepository {
	return &ticketHistoryRepository{pool: pool}
}

// Create inserts the entry. A replayed event id is ignored and leaves ID zero.
func (r *ticketHistoryRepository) Create(ctx context.Context, history *domain.TicketHistory) error {
	const query = `
        INSERT INTO ticket_history (event_id, ticket_id, channel_id, changed_by_type, changed_by_id, change_type, new_value, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        ON CONFLICT (event_id) DO NOTHING
        RETURNING id, created_at`
	createdAt := history.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	err := r.pool.QueryRow(ctx, query,
		history.EventID,
		history.TicketID,
		history.ChannelID,
		history.ChangedByType,
		history.ChangedByID,
		history.ChangeType,
		history.NewValue,
		createdAt,
	).Scan(&history.ID, &history.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	return err
}

func (r *ticketHistoryRepository) ListByTicket(ctx context.Context, ticketID int) ([]domain.TicketHistory, error) {
	const query = `
        SELECT id, event_id, ticket_id, channel_id, changed_by_type, changed_by_id, change_type, new_value, created_at
        FROM ticket_history WHERE ticket_id=$1 ORDER BY created_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.TicketHistory{}
	for rows.Next() {
		var history domain.TicketHistory
		if err := rows.Scan(
			&history.ID,
			&history.EventID,
			&history.TicketID,
			&history.ChannelID,
			&history.ChangedByType,
			&history.ChangedByID,
			&history.ChangeType,
			&history.NewValue,
			&history.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, history)
	}
	return result, rows.Err()
}
