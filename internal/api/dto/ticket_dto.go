package dto

import (
	"time"

	"github.com/spec-kit/support-router/internal/domain"
)

// SubmitTicketRequest payload.
type SubmitTicketRequest struct {
	Subject     string                `json:"subject"`
	Description string                `json:"description"`
	CreatorID   string                `json:"creator_id"`
	Priority    domain.TicketPriority `json:"priority"`
}

// TranscriptEntry is one utterance of a reported call.
type TranscriptEntry struct {
	Speaker   string `json:"speaker"`
	Utterance string `json:"utterance"`
}

// CallEndedRequest payload for POST /tickets/:id/call-ended.
type CallEndedRequest struct {
	Transcript []TranscriptEntry `json:"transcript"`
}

// VoiceEventRequest is the channel callback envelope.
type VoiceEventRequest struct {
	Type       string            `json:"type"`
	TicketID   string            `json:"ticket_id"`
	SessionID  string            `json:"session_id"`
	Transcript []TranscriptEntry `json:"transcript"`
}

// TicketResponse is the creator-facing view of a ticket.
type TicketResponse struct {
	ID                string                `json:"id"`
	Subject           string                `json:"subject"`
	Description       string                `json:"description"`
	CreatorID         string                `json:"creator_id"`
	Priority          domain.TicketPriority `json:"priority"`
	Status            domain.TicketStatus   `json:"status"`
	AssignedTo        *string               `json:"assigned_to"`
	AssignmentHistory []string              `json:"assignment_history"`
	RedirectCount     int                   `json:"redirect_count"`
	MaxRedirects      int                   `json:"max_redirects"`
	CallStatus        domain.CallStatus     `json:"call_status"`
	Transcript        []TranscriptEntry     `json:"transcript"`
	Resolution        *string               `json:"resolution"`
	EscalationReason  *string               `json:"escalation_reason"`
	CreatedAt         time.Time             `json:"created_at"`
	UpdatedAt         time.Time             `json:"updated_at"`
	ResolvedAt        *time.Time            `json:"resolved_at"`
}

// SubmitTicketResponse pairs the ticket with its routing run.
type SubmitTicketResponse struct {
	Ticket TicketResponse `json:"ticket"`
	RunID  string         `json:"run_id,omitempty"`
}

// TransitionResponse is one audited workflow hop.
type TransitionResponse struct {
	ID        string    `json:"id"`
	RunID     string    `json:"run_id"`
	FromStep  string    `json:"from_step"`
	ToStep    string    `json:"to_step"`
	CreatedAt time.Time `json:"created_at"`
}

// RunResponse summarizes one engine invocation.
type RunResponse struct {
	ID         string     `json:"id"`
	EntryPoint string     `json:"entry_point"`
	Outcome    *string    `json:"outcome"`
	Error      *string    `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`
}
