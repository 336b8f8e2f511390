package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-router/internal/domain"
)

// TransitionRepository persists the audited hops between workflow nodes.
type TransitionRepository interface {
	Create(ctx context.Context, transition *domain.WorkflowTransition) error
	ListByTicket(ctx context.Context, ticketID string, limit, offset int) ([]domain.WorkflowTransition, error)
}

type transitionRepository struct {
	pool *pgxpool.Pool
}

// NewTransitionRepository instantiates repository.
func NewTransitionRepository(pool *pgxpool.Pool) TransitionRepository {
	return &transitionRepository{pool: pool}
}

func (r *transitionRepository) Create(ctx context.Context, transition *domain.WorkflowTransition) error {
	const query = `
        INSERT INTO workflow_transitions (id, run_id, ticket_id, from_step, to_step, note)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING created_at`
	return r.pool.QueryRow(ctx, query,
		transition.ID,
		transition.RunID,
		transition.TicketID,
		transition.FromStep,
		transition.ToStep,
		transition.Note,
	).Scan(&transition.CreatedAt)
}

func (r *transitionRepository) ListByTicket(ctx context.Context, ticketID string, limit, offset int) ([]domain.WorkflowTransition, error) {
	if limit <= 0 {
		limit = 100
	}
	const query = `
        SELECT id, run_id, ticket_id, from_step, to_step, note, created_at
        FROM workflow_transitions WHERE ticket_id=$1
        ORDER BY created_at ASC LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, query, ticketID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	transitions := make([]domain.WorkflowTransition, 0)
	for rows.Next() {
		var t domain.WorkflowTransition
		if err := rows.Scan(&t.ID, &t.RunID, &t.TicketID, &t.FromStep, &t.ToStep, &t.Note, &t.CreatedAt); err != nil {
			return nil, err
		}
		transitions = append(transitions, t)
	}
	return transitions, rows.Err()
}
