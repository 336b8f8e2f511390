package service

import (
	"context"

	"github.com/spec-kit/support-router/internal/domain"
	"github.com/spec-kit/support-router/internal/repository"
	apperrors "github.com/spec-kit/support-router/pkg/util"
)

// TicketDependencies wires collaborators into the ticket read service.
type TicketDependencies struct {
	TicketRepo     repository.TicketRepository
	RunRepo        repository.RunRepository
	TransitionRepo repository.TransitionRepository
}

// TicketService serves creator-facing reads: ticket state, resolution,
// transcript, and the audit trail of runs and node hops.
type TicketService struct {
	deps TicketDependencies
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{deps: deps}
}

// GetTicket returns a ticket by id.
func (s *TicketService) GetTicket(ctx context.Context, id string) (*domain.Ticket, error) {
	if id == "" {
		return nil, apperrors.NewValidationError("ticket id is required", nil)
	}
	ticket, err := s.deps.TicketRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

// ListByCreator returns the creator's tickets, newest first.
func (s *TicketService) ListByCreator(ctx context.Context, creatorID string, limit, offset int) ([]domain.Ticket, error) {
	if creatorID == "" {
		return nil, apperrors.NewValidationError("creator id is required", nil)
	}
	tickets, err := s.deps.TicketRepo.ListByCreator(ctx, creatorID, limit, offset)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// ListTransitions returns the audited node hops for a ticket in order.
func (s *TicketService) ListTransitions(ctx context.Context, ticketID string, limit, offset int) ([]domain.WorkflowTransition, error) {
	if _, err := s.GetTicket(ctx, ticketID); err != nil {
		return nil, err
	}
	transitions, err := s.deps.TransitionRepo.ListByTicket(ctx, ticketID, limit, offset)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return transitions, nil
}

// ListRuns returns the engine invocations recorded for a ticket.
func (s *TicketService) ListRuns(ctx context.Context, ticketID string, limit int) ([]domain.WorkflowRun, error) {
	if _, err := s.GetTicket(ctx, ticketID); err != nil {
		return nil, err
	}
	runs, err := s.deps.RunRepo.ListByTicket(ctx, ticketID, limit)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return runs, nil
}
