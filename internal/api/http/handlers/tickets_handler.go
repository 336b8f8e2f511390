package handlers

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-router/internal/api/dto"
	"github.com/spec-kit/support-router/internal/domain"
	"github.com/spec-kit/support-router/internal/service"
	apperrors "github.com/spec-kit/support-router/pkg/util"
)

// TicketsHandler manages ticket submission and creator-facing reads.
type TicketsHandler struct {
	workflow *service.WorkflowService
	tickets  *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(workflowService *service.WorkflowService, ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{workflow: workflowService, tickets: ticketService}
}

// SubmitTicket POST /tickets.
func (h *TicketsHandler) SubmitTicket(c *fiber.Ctx) error {
	var req dto.SubmitTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	ticket, runID, err := h.workflow.Submit(c.UserContext(), service.SubmitTicketInput{
		Subject:     req.Subject,
		Description: req.Description,
		CreatorID:   req.CreatorID,
		Priority:    req.Priority,
	})
	if err != nil {
		if ticket == nil {
			return err
		}
		// the ticket exists even when its first run failed; report both
		domainErr := apperrors.ToDomainError(err)
		return c.Status(domainErr.HTTPStatus).JSON(fiber.Map{
			"data": dto.SubmitTicketResponse{Ticket: ticketResponse(ticket), RunID: runID},
			"error": fiber.Map{
				"code":    domainErr.Code,
				"message": domainErr.Message,
			},
		})
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"data": dto.SubmitTicketResponse{Ticket: ticketResponse(ticket), RunID: runID},
	})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	ticket, err := h.tickets.GetTicket(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// ListTickets GET /tickets?creator_id=...
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	limit, offset := parsePaging(c)
	tickets, err := h.tickets.ListByCreator(c.UserContext(), c.Query("creator_id"), limit, offset)
	if err != nil {
		return err
	}
	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketResponse(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// ListTransitions GET /tickets/:id/transitions.
func (h *TicketsHandler) ListTransitions(c *fiber.Ctx) error {
	limit, offset := parsePaging(c)
	transitions, err := h.tickets.ListTransitions(c.UserContext(), c.Params("id"), limit, offset)
	if err != nil {
		return err
	}
	items := make([]dto.TransitionResponse, 0, len(transitions))
	for _, t := range transitions {
		items = append(items, dto.TransitionResponse{
			ID:        t.ID,
			RunID:     t.RunID,
			FromStep:  t.FromStep,
			ToStep:    t.ToStep,
			CreatedAt: t.CreatedAt,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}

// ListRuns GET /tickets/:id/runs.
func (h *TicketsHandler) ListRuns(c *fiber.Ctx) error {
	limit, _ := parsePaging(c)
	runs, err := h.tickets.ListRuns(c.UserContext(), c.Params("id"), limit)
	if err != nil {
		return err
	}
	items := make([]dto.RunResponse, 0, len(runs))
	for _, run := range runs {
		items = append(items, runResponse(run))
	}
	return c.JSON(fiber.Map{"data": items})
}

// CallEnded POST /tickets/:id/call-ended.
func (h *TicketsHandler) CallEnded(c *fiber.Ctx) error {
	var req dto.CallEndedRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	ticket, runID, err := h.workflow.NotifyCallEnded(c.UserContext(), c.Params("id"), transcriptFromDTO(req.Transcript))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": dto.SubmitTicketResponse{Ticket: ticketResponse(ticket), RunID: runID},
	})
}

func parsePaging(c *fiber.Ctx) (limit, offset int) {
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 50)
	return pageSize, (page - 1) * pageSize
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func transcriptFromDTO(entries []dto.TranscriptEntry) []domain.ConversationEntry {
	transcript := make([]domain.ConversationEntry, 0, len(entries))
	for _, entry := range entries {
		transcript = append(transcript, domain.ConversationEntry{
			Speaker:   entry.Speaker,
			Utterance: entry.Utterance,
		})
	}
	return transcript
}

func ticketResponse(ticket *domain.Ticket) dto.TicketResponse {
	transcript := make([]dto.TranscriptEntry, 0, len(ticket.Transcript))
	for _, entry := range ticket.Transcript {
		transcript = append(transcript, dto.TranscriptEntry{
			Speaker:   entry.Speaker,
			Utterance: entry.Utterance,
		})
	}
	return dto.TicketResponse{
		ID:                ticket.ID,
		Subject:           ticket.Subject,
		Description:       ticket.Description,
		CreatorID:         ticket.CreatorID,
		Priority:          ticket.Priority,
		Status:            ticket.Status,
		AssignedTo:        ticket.AssignedTo,
		AssignmentHistory: ticket.AssignmentHistory,
		RedirectCount:     ticket.RedirectCount,
		MaxRedirects:      ticket.MaxRedirects,
		CallStatus:        ticket.CallStatus,
		Transcript:        transcript,
		Resolution:        ticket.Resolution,
		EscalationReason:  ticket.EscalationReason,
		CreatedAt:         ticket.CreatedAt,
		UpdatedAt:         ticket.UpdatedAt,
		ResolvedAt:        ticket.ResolvedAt,
	}
}

func runResponse(run domain.WorkflowRun) dto.RunResponse {
	var outcome *string
	if run.Outcome != nil {
		value := string(*run.Outcome)
		outcome = &value
	}
	return dto.RunResponse{
		ID:         run.ID,
		EntryPoint: string(run.EntryPoint),
		Outcome:    outcome,
		Error:      run.Error,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
	}
}
