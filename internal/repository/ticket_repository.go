package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-router/internal/domain"
)

// TicketRepository encapsulates ticket persistence. Update writes the
// full routing state of the ticket in a single statement so assignment,
// history and call fields can never be observed torn.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	ListByCreator(ctx context.Context, creatorID string, limit, offset int) ([]domain.Ticket, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	history, transcript, err := marshalTicketJSON(ticket)
	if err != nil {
		return err
	}
	const query = `
        INSERT INTO tickets (subject, description, creator_id, priority, status, assigned_to,
            assignment_history, redirect_count, max_redirects, call_status, call_session_id,
            transcript, resolution, escalation_reason)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.Subject,
		ticket.Description,
		ticket.CreatorID,
		ticket.Priority,
		ticket.Status,
		ticket.AssignedTo,
		history,
		ticket.RedirectCount,
		ticket.MaxRedirects,
		ticket.CallStatus,
		ticket.CallSessionID,
		transcript,
		ticket.Resolution,
		ticket.EscalationReason,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	history, transcript, err := marshalTicketJSON(ticket)
	if err != nil {
		return err
	}
	const query = `
        UPDATE tickets SET status=$1, assigned_to=$2, assignment_history=$3, redirect_count=$4,
            call_status=$5, call_session_id=$6, transcript=$7, resolution=$8, escalation_reason=$9,
            resolved_at=$10, updated_at=NOW()
        WHERE id=$11`
	cmd, err := r.pool.Exec(ctx, query,
		ticket.Status,
		ticket.AssignedTo,
		history,
		ticket.RedirectCount,
		ticket.CallStatus,
		ticket.CallSessionID,
		transcript,
		ticket.Resolution,
		ticket.EscalationReason,
		ticket.ResolvedAt,
		ticket.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	const query = `
        SELECT id, subject, description, creator_id, priority, status, assigned_to,
               assignment_history, redirect_count, max_redirects, call_status, call_session_id,
               transcript, resolution, escalation_reason, created_at, updated_at, resolved_at
        FROM tickets WHERE id=$1`
	row := r.pool.QueryRow(ctx, query, id)
	return scanTicket(row)
}

func (r *ticketRepository) ListByCreator(ctx context.Context, creatorID string, limit, offset int) ([]domain.Ticket, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
        SELECT id, subject, description, creator_id, priority, status, assigned_to,
               assignment_history, redirect_count, max_redirects, call_status, call_session_id,
               transcript, resolution, escalation_reason, created_at, updated_at, resolved_at
        FROM tickets WHERE creator_id=$1
        ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, query, creatorID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tickets := make([]domain.Ticket, 0)
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, *ticket)
	}
	return tickets, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicket(row rowScanner) (*domain.Ticket, error) {
	var (
		ticket     domain.Ticket
		history    []byte
		transcript []byte
	)
	if err := row.Scan(
		&ticket.ID,
		&ticket.Subject,
		&ticket.Description,
		&ticket.CreatorID,
		&ticket.Priority,
		&ticket.Status,
		&ticket.AssignedTo,
		&history,
		&ticket.RedirectCount,
		&ticket.MaxRedirects,
		&ticket.CallStatus,
		&ticket.CallSessionID,
		&transcript,
		&ticket.Resolution,
		&ticket.EscalationReason,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.ResolvedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(history, &ticket.AssignmentHistory); err != nil {
		return nil, fmt.Errorf("decode assignment history: %w", err)
	}
	if err := json.Unmarshal(transcript, &ticket.Transcript); err != nil {
		return nil, fmt.Errorf("decode transcript: %w", err)
	}
	return &ticket, nil
}

func marshalTicketJSON(ticket *domain.Ticket) ([]byte, []byte, error) {
	if ticket.AssignmentHistory == nil {
		ticket.AssignmentHistory = []string{}
	}
	if ticket.Transcript == nil {
		ticket.Transcript = []domain.ConversationEntry{}
	}
	history, err := json.Marshal(ticket.AssignmentHistory)
	if err != nil {
		return nil, nil, fmt.Errorf("encode assignment history: %w", err)
	}
	transcript, err := json.Marshal(ticket.Transcript)
	if err != nil {
		return nil, nil, fmt.Errorf("encode transcript: %w", err)
	}
	return history, transcript, nil
}
