package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-router/internal/api/dto"
	"github.com/spec-kit/support-router/internal/service"
	apperrors "github.com/spec-kit/support-router/pkg/util"
)

// Voice channel callback event types.
const (
	voiceEventCallStarted = "call.started"
	voiceEventCallEnded   = "call.ended"
)

// VoiceHandler receives callbacks from the voice channel.
type VoiceHandler struct {
	workflow *service.WorkflowService
}

// NewVoiceHandler constructs handler.
func NewVoiceHandler(workflowService *service.WorkflowService) *VoiceHandler {
	return &VoiceHandler{workflow: workflowService}
}

// Event POST /voice/events. Pickup is acknowledged without touching the
// suspended run; only call.ended re-enters the engine.
func (h *VoiceHandler) Event(c *fiber.Ctx) error {
	var req dto.VoiceEventRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.TicketID) == "" {
		return apperrors.NewValidationError("ticket_id required", nil)
	}

	switch req.Type {
	case voiceEventCallStarted:
		if err := h.workflow.NotifyCallStarted(c.UserContext(), req.TicketID); err != nil {
			return err
		}
		return c.JSON(fiber.Map{"data": fiber.Map{"acknowledged": true}})
	case voiceEventCallEnded:
		transcript := transcriptFromDTO(req.Transcript)
		ticket, runID, err := h.workflow.NotifyCallEnded(c.UserContext(), req.TicketID, transcript)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"data": dto.SubmitTicketResponse{Ticket: ticketResponse(ticket), RunID: runID},
		})
	default:
		return apperrors.NewValidationError("unsupported event type", map[string]any{"type": req.Type})
	}
}
