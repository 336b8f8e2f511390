package domain

import "time"

// RunEntryPoint identifies how the engine was entered for a run.
type RunEntryPoint string

const (
	RunEntrySubmission RunEntryPoint = "submission"
	RunEntryCallEnded  RunEntryPoint = "call_ended"
)

// RunOutcome records how a run left the engine.
type RunOutcome string

const (
	RunOutcomeSolved    RunOutcome = "solved"
	RunOutcomeEscalated RunOutcome = "escalated"
	RunOutcomeSuspended RunOutcome = "suspended"
	RunOutcomeNoOp      RunOutcome = "no_op"
	RunOutcomeFailed    RunOutcome = "failed"
)

// WorkflowRun is the durable record of one engine invocation, from an
// entry point to suspension or termination.
type WorkflowRun struct {
	ID         string
	TicketID   string
	EntryPoint RunEntryPoint
	Outcome    *RunOutcome
	Error      *string
	StartedAt  time.Time
	FinishedAt *time.Time
}

// WorkflowTransition is one audited hop between workflow nodes.
type WorkflowTransition struct {
	ID        string
	RunID     string
	TicketID  string
	FromStep  string
	ToStep    string
	Note      string
	CreatedAt time.Time
}
