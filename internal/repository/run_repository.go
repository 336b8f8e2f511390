package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-router/internal/domain"
)

// RunRepository persists workflow run records.
type RunRepository interface {
	Create(ctx context.Context, run *domain.WorkflowRun) error
	Finish(ctx context.Context, runID string, outcome domain.RunOutcome, runErr *string) error
	ListByTicket(ctx context.Context, ticketID string, limit int) ([]domain.WorkflowRun, error)
}

type runRepository struct {
	pool *pgxpool.Pool
}

// NewRunRepository instantiates repository.
func NewRunRepository(pool *pgxpool.Pool) RunRepository {
	return &runRepository{pool: pool}
}

func (r *runRepository) Create(ctx context.Context, run *domain.WorkflowRun) error {
	const query = `
        INSERT INTO workflow_runs (id, ticket_id, entry_point)
        VALUES ($1,$2,$3)
        RETURNING started_at`
	return r.pool.QueryRow(ctx, query, run.ID, run.TicketID, run.EntryPoint).Scan(&run.StartedAt)
}

func (r *runRepository) Finish(ctx context.Context, runID string, outcome domain.RunOutcome, runErr *string) error {
	const query = `
        UPDATE workflow_runs SET outcome=$1, error=$2, finished_at=NOW()
        WHERE id=$3`
	cmd, err := r.pool.Exec(ctx, query, outcome, runErr, runID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *runRepository) ListByTicket(ctx context.Context, ticketID string, limit int) ([]domain.WorkflowRun, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
        SELECT id, ticket_id, entry_point, outcome, error, started_at, finished_at
        FROM workflow_runs WHERE ticket_id=$1
        ORDER BY started_at DESC LIMIT $2`
	rows, err := r.pool.Query(ctx, query, ticketID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]domain.WorkflowRun, 0)
	for rows.Next() {
		var run domain.WorkflowRun
		if err := rows.Scan(&run.ID, &run.TicketID, &run.EntryPoint, &run.Outcome, &run.Error, &run.StartedAt, &run.FinishedAt); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
