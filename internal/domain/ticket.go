package domain

import (
	"fmt"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "OPEN"
	TicketStatusAssigned   TicketStatus = "ASSIGNED"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusSolved     TicketStatus = "SOLVED"
	TicketStatusEscalated  TicketStatus = "ESCALATED"
)

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "LOW"
	TicketPriorityMedium TicketPriority = "MEDIUM"
	TicketPriorityHigh   TicketPriority = "HIGH"
	TicketPriorityUrgent TicketPriority = "URGENT"
)

// CallStatus tracks the voice session attached to a ticket.
type CallStatus string

const (
	CallStatusNotInitiated CallStatus = "NOT_INITIATED"
	CallStatusRinging      CallStatus = "RINGING"
	CallStatusActive       CallStatus = "ACTIVE"
	CallStatusEnded        CallStatus = "ENDED"
)

// Escalation reasons recorded on terminal escalated tickets.
const (
	EscalationNoCandidate   = "no-candidate-available"
	EscalationRedirectLimit = "redirect-limit-exceeded"
)

// DefaultMaxRedirects caps in-call reassignment requests per ticket.
const DefaultMaxRedirects = 3

// ConversationEntry is one utterance of a recorded call.
type ConversationEntry struct {
	Speaker   string `json:"speaker"`
	Utterance string `json:"utterance"`
}

// Ticket is the aggregate for support requests. It is the only durable
// state the workflow engine operates on; a run reloads everything it
// needs from here after a suspension.
type Ticket struct {
	ID                string
	Subject           string
	Description       string
	CreatorID         string
	Priority          TicketPriority
	Status            TicketStatus
	AssignedTo        *string
	AssignmentHistory []string
	RedirectCount     int
	MaxRedirects      int
	CallStatus        CallStatus
	CallSessionID     *string
	Transcript        []ConversationEntry
	Resolution        *string
	EscalationReason  *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
	ResolvedAt        *time.Time
}

// Terminal reports whether the ticket has reached a final state.
func (t *Ticket) Terminal() bool {
	return t.Status == TicketStatusSolved || t.Status == TicketStatusEscalated
}

// RecordAssignment sets the assignee and appends to the assignment history.
// The creator can never be assigned, and no employee appears twice in the
// history of the same ticket.
func (t *Ticket) RecordAssignment(employeeID string) error {
	if employeeID == t.CreatorID {
		return fmt.Errorf("employee %s is the ticket creator", employeeID)
	}
	for _, previous := range t.AssignmentHistory {
		if previous == employeeID {
			return fmt.Errorf("employee %s already appears in assignment history", employeeID)
		}
	}
	id := employeeID
	t.AssignedTo = &id
	t.AssignmentHistory = append(t.AssignmentHistory, employeeID)
	t.Status = TicketStatusAssigned
	return nil
}

// BumpRedirect consumes one redirect slot. Callers must check the limit
// via RedirectAllowed first; BumpRedirect refuses to exceed the cap.
func (t *Ticket) BumpRedirect() error {
	if !t.RedirectAllowed() {
		return fmt.Errorf("redirect count %d already at limit %d", t.RedirectCount, t.redirectCap())
	}
	t.RedirectCount++
	return nil
}

// RedirectAllowed reports whether another reassignment may be consumed.
func (t *Ticket) RedirectAllowed() bool {
	return t.RedirectCount < t.redirectCap()
}

// ClearAssignment resets assignee and call state for a reassignment.
// Assignment history and redirect count are audit fields and survive.
func (t *Ticket) ClearAssignment() {
	t.AssignedTo = nil
	t.CallStatus = CallStatusNotInitiated
	t.CallSessionID = nil
	t.Status = TicketStatusOpen
}

// MarkSolved records the reviewed resolution and terminates the ticket.
func (t *Ticket) MarkSolved(resolution string, now time.Time) {
	t.Status = TicketStatusSolved
	t.Resolution = &resolution
	t.ResolvedAt = &now
}

// MarkEscalated terminates the ticket pending supervisor action. The
// human-readable reason doubles as the resolution text so the creator
// always sees exactly one outcome.
func (t *Ticket) MarkEscalated(reason string, now time.Time) {
	t.Status = TicketStatusEscalated
	t.EscalationReason = &reason
	resolution := fmt.Sprintf("Escalated to a supervisor: %s", reason)
	t.Resolution = &resolution
	t.ResolvedAt = &now
}

func (t *Ticket) redirectCap() int {
	if t.MaxRedirects > 0 {
		return t.MaxRedirects
	}
	return DefaultMaxRedirects
}
