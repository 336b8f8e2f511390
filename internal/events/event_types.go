package events

import (
	"time"

	"github.com/spec-kit/support-router/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketSubmitted  EventType = "ticket_submitted"
	EventTicketAssigned   EventType = "ticket_assigned"
	EventCallInitiated    EventType = "call_initiated"
	EventCallCompleted    EventType = "call_completed"
	EventRedirectDetected EventType = "redirect_detected"
	EventTicketSolved     EventType = "ticket_solved"
	EventTicketEscalated  EventType = "ticket_escalated"
)

// Event represents a domain event emitted during a workflow run.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	RunID     string      `json:"run_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketSubmittedPayload payload.
type TicketSubmittedPayload struct {
	CreatorID string                `json:"creator_id"`
	Subject   string                `json:"subject"`
	Priority  domain.TicketPriority `json:"priority"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	EmployeeID string `json:"employee_id"`
	Score      int    `json:"score"`
	Redirect   bool   `json:"redirect"`
}

// CallInitiatedPayload payload.
type CallInitiatedPayload struct {
	EmployeeID string `json:"employee_id"`
	SessionID  string `json:"session_id"`
}

// CallCompletedPayload payload.
type CallCompletedPayload struct {
	TranscriptLen int `json:"transcript_len"`
}

// RedirectDetectedPayload payload.
type RedirectDetectedPayload struct {
	Reason        string `json:"reason"`
	Method        string `json:"method"`
	RedirectCount int    `json:"redirect_count"`
}

// TicketSolvedPayload payload.
type TicketSolvedPayload struct {
	SelfServe bool `json:"self_serve"`
}

// TicketEscalatedPayload payload.
type TicketEscalatedPayload struct {
	Reason string `json:"reason"`
}
