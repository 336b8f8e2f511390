package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/support-router/internal/domain"
	"github.com/spec-kit/support-router/internal/events"
	"github.com/spec-kit/support-router/internal/persistence"
	"github.com/spec-kit/support-router/internal/repository"
	apperrors "github.com/spec-kit/support-router/pkg/util"
)

// Runner is the workflow engine contract the service drives.
type Runner interface {
	Run(ctx context.Context, ticket *domain.Ticket, run *domain.WorkflowRun) error
	Resume(ctx context.Context, ticket *domain.Ticket, run *domain.WorkflowRun) error
}

// SubmitTicketInput is the payload for ticket submission.
type SubmitTicketInput struct {
	Subject     string
	Description string
	CreatorID   string
	Priority    domain.TicketPriority
}

// WorkflowDependencies wires collaborators into the workflow service.
type WorkflowDependencies struct {
	TicketRepo   repository.TicketRepository
	RunRepo      repository.RunRepository
	Locker       persistence.TicketLocker
	Engine       Runner
	Dispatcher   events.Dispatcher
	Logger       *zap.Logger
	MaxRedirects int
}

// WorkflowService owns the two engine entry points: ticket submission
// and voice channel completion. Both run under the per-ticket lock so a
// ticket never has two concurrent runs.
type WorkflowService struct {
	deps WorkflowDependencies
}

// NewWorkflowService constructs the service.
func NewWorkflowService(deps WorkflowDependencies) *WorkflowService {
	if deps.MaxRedirects <= 0 {
		deps.MaxRedirects = domain.DefaultMaxRedirects
	}
	return &WorkflowService{deps: deps}
}

// Submit validates and persists a new ticket, then drives a routing run
// from the top of the graph. The created ticket is returned even when
// the run itself fails so the caller can inspect its state.
func (s *WorkflowService) Submit(ctx context.Context, input SubmitTicketInput) (*domain.Ticket, string, error) {
	if err := validateSubmission(&input); err != nil {
		return nil, "", err
	}

	ticket := &domain.Ticket{
		Subject:      strings.TrimSpace(input.Subject),
		Description:  strings.TrimSpace(input.Description),
		CreatorID:    strings.TrimSpace(input.CreatorID),
		Priority:     input.Priority,
		Status:       domain.TicketStatusOpen,
		CallStatus:   domain.CallStatusNotInitiated,
		MaxRedirects: s.deps.MaxRedirects,
	}
	if err := s.deps.TicketRepo.Create(ctx, ticket); err != nil {
		return nil, "", apperrors.MapError(err)
	}

	release, err := s.deps.Locker.Acquire(ctx, ticket.ID)
	if err != nil {
		return ticket, "", apperrors.NewConflict("ticket is being processed", map[string]any{"ticket_id": ticket.ID})
	}
	defer release()

	run := &domain.WorkflowRun{
		ID:         uuid.NewString(),
		TicketID:   ticket.ID,
		EntryPoint: domain.RunEntrySubmission,
	}
	if err := s.deps.RunRepo.Create(ctx, run); err != nil {
		return ticket, "", apperrors.MapError(err)
	}

	s.publish(ctx, events.EventTicketSubmitted, ticket.ID, run.ID, events.TicketSubmittedPayload{
		CreatorID: ticket.CreatorID,
		Subject:   ticket.Subject,
		Priority:  ticket.Priority,
	})
	s.deps.Logger.Info("ticket submitted",
		zap.String("ticket_id", ticket.ID),
		zap.String("run_id", run.ID),
		zap.String("creator_id", ticket.CreatorID))

	if err := s.deps.Engine.Run(ctx, ticket, run); err != nil {
		return ticket, run.ID, err
	}
	return ticket, run.ID, nil
}

// NotifyCallEnded resumes routing after the voice channel reports the
// call over. Duplicate or late notifications against a terminal ticket
// are logged and discarded; the run that already completed stands.
func (s *WorkflowService) NotifyCallEnded(ctx context.Context, ticketID string, transcript []domain.ConversationEntry) (*domain.Ticket, string, error) {
	release, err := s.deps.Locker.Acquire(ctx, ticketID)
	if err != nil {
		return nil, "", apperrors.NewConflict("ticket is being processed", map[string]any{"ticket_id": ticketID})
	}
	defer release()

	ticket, err := s.deps.TicketRepo.GetByID(ctx, ticketID)
	if err != nil {
		return nil, "", apperrors.MapError(err)
	}

	if ticket.Terminal() {
		s.deps.Logger.Info("discarding call completion for terminal ticket",
			zap.String("ticket_id", ticketID),
			zap.String("status", string(ticket.Status)))
		return ticket, "", apperrors.NewStaleCallEvent(ticketID)
	}

	ticket.CallStatus = domain.CallStatusEnded
	ticket.Transcript = transcript
	if err := s.deps.TicketRepo.Update(ctx, ticket); err != nil {
		return ticket, "", apperrors.MapError(err)
	}

	run := &domain.WorkflowRun{
		ID:         uuid.NewString(),
		TicketID:   ticket.ID,
		EntryPoint: domain.RunEntryCallEnded,
	}
	if err := s.deps.RunRepo.Create(ctx, run); err != nil {
		return ticket, "", apperrors.MapError(err)
	}

	if err := s.deps.Engine.Resume(ctx, ticket, run); err != nil {
		return ticket, run.ID, err
	}
	return ticket, run.ID, nil
}

// NotifyCallStarted records pickup. It never re-enters the engine; the
// suspended run stays parked until the call actually ends.
func (s *WorkflowService) NotifyCallStarted(ctx context.Context, ticketID string) error {
	release, err := s.deps.Locker.Acquire(ctx, ticketID)
	if err != nil {
		return apperrors.NewConflict("ticket is being processed", map[string]any{"ticket_id": ticketID})
	}
	defer release()

	ticket, err := s.deps.TicketRepo.GetByID(ctx, ticketID)
	if err != nil {
		return apperrors.MapError(err)
	}
	if ticket.CallStatus != domain.CallStatusRinging {
		s.deps.Logger.Warn("call started notification out of order",
			zap.String("ticket_id", ticketID),
			zap.String("call_status", string(ticket.CallStatus)))
		return nil
	}

	ticket.CallStatus = domain.CallStatusActive
	if err := s.deps.TicketRepo.Update(ctx, ticket); err != nil {
		return apperrors.MapError(err)
	}
	s.deps.Logger.Info("call active", zap.String("ticket_id", ticketID))
	return nil
}

func (s *WorkflowService) publish(ctx context.Context, eventType events.EventType, ticketID, runID string, payload interface{}) {
	if s.deps.Dispatcher == nil {
		return
	}
	_ = s.deps.Dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TicketID:  ticketID,
		RunID:     runID,
		Timestamp: time.Now(),
		Payload:   payload,
	})
}

func validateSubmission(input *SubmitTicketInput) error {
	details := map[string]any{}
	if strings.TrimSpace(input.Subject) == "" {
		details["subject"] = "required"
	}
	if strings.TrimSpace(input.Description) == "" {
		details["description"] = "required"
	}
	if strings.TrimSpace(input.CreatorID) == "" {
		details["creator_id"] = "required"
	}
	if input.Priority == "" {
		input.Priority = domain.TicketPriorityMedium
	}
	switch input.Priority {
	case domain.TicketPriorityLow, domain.TicketPriorityMedium, domain.TicketPriorityHigh, domain.TicketPriorityUrgent:
	default:
		details["priority"] = "must be one of LOW, MEDIUM, HIGH, URGENT"
	}
	if len(details) > 0 {
		return apperrors.NewValidationError("invalid ticket submission", details)
	}
	return nil
}
