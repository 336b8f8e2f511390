package workflow

import (
	"context"

	"github.com/spec-kit/support-router/internal/domain"
	"github.com/spec-kit/support-router/internal/knowledge"
	"github.com/spec-kit/support-router/internal/oracle"
	"github.com/spec-kit/support-router/internal/voice"
)

// Step identifies a node in the routing graph.
type Step string

const (
	StepPreprocess      Step = "preprocess"
	StepDocumentSearch  Step = "document_search"
	StepSynthesize      Step = "synthesize"
	StepAssignExpert    Step = "assign_expert"
	StepInitiateCall    Step = "initiate_call"
	StepCallCompletion  Step = "call_completion"
	StepRedirectDetect  Step = "redirect_detector"
	StepResetAssignment Step = "reset_assignment"
	StepFinalFormat     Step = "final_format"
	StepEnd             Step = "end"
)

// Oracle is the reasoning oracle contract the engine depends on.
type Oracle interface {
	Complete(ctx context.Context, role oracle.Role, contextText, instructions string) (string, error)
}

// Knowledge is the document store contract.
type Knowledge interface {
	Search(ctx context.Context, query string) (knowledge.SearchResult, error)
}

// Directory is the employee directory contract.
type Directory interface {
	ListCandidates(ctx context.Context, excluding []string) ([]domain.Employee, error)
}

// Voice is the call channel contract. StartSession returns on ack only.
type Voice interface {
	StartSession(ctx context.Context, employeeID string, callCtx voice.CallContext) (string, error)
}

// State is the transient, per-run working set. It is created at ticket
// submission or at call-completion re-entry and discarded when the run
// reaches a terminal node; everything durable lives on the Ticket.
type State struct {
	Ticket         *domain.Ticket
	Run            *domain.WorkflowRun
	Step           Step
	Query          string
	Passages       []string
	Confidence     float64
	Draft          string
	Sufficient     bool
	Candidate      *domain.Employee
	Exclude        []string
	RedirectReason string
	Suspended      bool
	Outcome        domain.RunOutcome
}

// excludeSet returns the exclusion list as a lookup set. The creator is
// always a member; it is never relaxed.
func (s *State) excludeSet() map[string]struct{} {
	set := make(map[string]struct{}, len(s.Exclude)+1)
	set[s.Ticket.CreatorID] = struct{}{}
	for _, id := range s.Exclude {
		set[id] = struct{}{}
	}
	return set
}

// effectiveQuery is the text expert matching scores against: the redirect
// reason when reassigning, the refined query otherwise.
func (s *State) effectiveQuery() string {
	if s.RedirectReason != "" {
		return s.RedirectReason
	}
	if s.Query != "" {
		return s.Query
	}
	return s.Ticket.Description
}
