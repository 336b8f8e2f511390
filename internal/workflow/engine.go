package workflow

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/support-router/internal/domain"
	"github.com/spec-kit/support-router/internal/events"
	"github.com/spec-kit/support-router/internal/observability"
	"github.com/spec-kit/support-router/internal/oracle"
	"github.com/spec-kit/support-router/internal/repository"
	apperrors "github.com/spec-kit/support-router/pkg/util"
)

// Options tunes engine behavior.
type Options struct {
	ConfidenceThreshold float64
	OracleMaxRetries    int
	OracleRetryBackoff  time.Duration
	KeywordTable        KeywordTable
}

// Engine executes a ticket's routing run: one node at a time, evaluating
// the node's routing function against the resulting state, until a
// terminal node or the InitiateCall suspension point. Exactly one run per
// ticket executes at a time; the caller holds the per-ticket lock.
type Engine struct {
	oracle      Oracle
	knowledge   Knowledge
	directory   Directory
	voice       Voice
	tickets     repository.TicketRepository
	runs        repository.RunRepository
	transitions repository.TransitionRepository
	dispatcher  events.Dispatcher
	metrics     *observability.Metrics
	detector    *RedirectDetector
	logger      *zap.Logger
	opts        Options
}

// Dependencies bundles engine collaborators.
type Dependencies struct {
	Oracle      Oracle
	Knowledge   Knowledge
	Directory   Directory
	Voice       Voice
	TicketRepo  repository.TicketRepository
	RunRepo     repository.RunRepository
	Transitions repository.TransitionRepository
	Dispatcher  events.Dispatcher
	Metrics     *observability.Metrics
	Logger      *zap.Logger
}

// NewEngine creates the engine.
func NewEngine(deps Dependencies, opts Options) *Engine {
	if opts.ConfidenceThreshold == 0 {
		opts.ConfidenceThreshold = 0.7
	}
	if opts.KeywordTable == nil {
		opts.KeywordTable = DefaultKeywordTable()
	}
	return &Engine{
		oracle:      deps.Oracle,
		knowledge:   deps.Knowledge,
		directory:   deps.Directory,
		voice:       deps.Voice,
		tickets:     deps.TicketRepo,
		runs:        deps.RunRepo,
		transitions: deps.Transitions,
		dispatcher:  deps.Dispatcher,
		metrics:     deps.Metrics,
		detector:    NewRedirectDetector(deps.Oracle, deps.Logger),
		logger:      deps.Logger,
		opts:        opts,
	}
}

type stepHandler func(ctx context.Context, st *State) (Step, error)

func (e *Engine) handler(step Step) stepHandler {
	switch step {
	case StepPreprocess:
		return e.preprocessStep
	case StepDocumentSearch:
		return e.documentSearchStep
	case StepSynthesize:
		return e.synthesizeStep
	case StepAssignExpert:
		return e.assignExpertStep
	case StepInitiateCall:
		return e.initiateCallStep
	case StepCallCompletion:
		return e.callCompletionStep
	case StepRedirectDetect:
		return e.redirectDetectorStep
	case StepResetAssignment:
		return e.resetAssignmentStep
	case StepFinalFormat:
		return e.finalFormatStep
	default:
		return nil
	}
}

// Run enters the engine for a freshly submitted ticket.
func (e *Engine) Run(ctx context.Context, ticket *domain.Ticket, run *domain.WorkflowRun) error {
	st := &State{Ticket: ticket, Run: run, Step: StepPreprocess}
	return e.drive(ctx, st)
}

// Resume re-enters the engine after a voice channel completion event.
// This and Run are the only two valid entry points.
func (e *Engine) Resume(ctx context.Context, ticket *domain.Ticket, run *domain.WorkflowRun) error {
	st := &State{Ticket: ticket, Run: run, Step: StepCallCompletion}
	return e.drive(ctx, st)
}

func (e *Engine) drive(ctx context.Context, st *State) error {
	for st.Step != StepEnd {
		// cancellation is only honored between node executions
		select {
		case <-ctx.Done():
			e.finishRun(st, domain.RunOutcomeFailed, ctx.Err())
			return ctx.Err()
		default:
		}

		handler := e.handler(st.Step)
		if handler == nil {
			err := apperrors.NewValidationError("invalid workflow entry point", map[string]any{"step": string(st.Step)})
			e.finishRun(st, domain.RunOutcomeFailed, err)
			return err
		}

		e.metrics.RecordStep(string(st.Step))
		from := st.Step
		next, err := handler(ctx, st)
		if err != nil {
			e.finishRun(st, domain.RunOutcomeFailed, err)
			return err
		}

		if err := e.persistHop(ctx, st, from, next); err != nil {
			e.finishRun(st, domain.RunOutcomeFailed, err)
			return err
		}

		if st.Suspended {
			e.finishRun(st, domain.RunOutcomeSuspended, nil)
			return nil
		}
		st.Step = next
	}

	e.finishRun(st, st.Outcome, nil)
	return nil
}

// persistHop performs the node transition's atomic read-modify-write on
// the ticket and records the audited hop.
func (e *Engine) persistHop(ctx context.Context, st *State, from, to Step) error {
	if err := e.tickets.Update(ctx, st.Ticket); err != nil {
		return apperrors.MapError(err)
	}
	transition := &domain.WorkflowTransition{
		ID:       uuid.NewString(),
		RunID:    st.Run.ID,
		TicketID: st.Ticket.ID,
		FromStep: string(from),
		ToStep:   string(to),
	}
	if err := e.transitions.Create(ctx, transition); err != nil {
		// the hop itself succeeded; a missing audit row is not fatal
		e.logger.Warn("failed to record workflow transition",
			zap.String("ticket_id", st.Ticket.ID), zap.Error(err))
	}
	return nil
}

func (e *Engine) finishRun(st *State, outcome domain.RunOutcome, runErr error) {
	if outcome == "" {
		outcome = domain.RunOutcomeFailed
	}
	e.metrics.RecordOutcome(string(outcome))

	var errText *string
	if runErr != nil {
		msg := runErr.Error()
		errText = &msg
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.runs.Finish(ctx, st.Run.ID, outcome, errText); err != nil {
		e.logger.Warn("failed to finish workflow run",
			zap.String("run_id", st.Run.ID), zap.Error(err))
	}
}

// completeWithRetry calls the oracle with one bounded retry. A second
// failure parks the run behind OracleUnavailable; it is never retried
// beyond this limit.
func (e *Engine) completeWithRetry(ctx context.Context, role oracle.Role, contextText, instructions string) (string, error) {
	answer, err := e.oracle.Complete(ctx, role, contextText, instructions)
	if err == nil {
		return answer, nil
	}

	for attempt := 0; attempt < e.opts.OracleMaxRetries; attempt++ {
		e.logger.Warn("oracle call failed; retrying",
			zap.String("role", string(role)), zap.Error(err))
		select {
		case <-ctx.Done():
			return "", apperrors.NewOracleUnavailable(ctx.Err())
		case <-time.After(e.opts.OracleRetryBackoff):
		}
		answer, err = e.oracle.Complete(ctx, role, contextText, instructions)
		if err == nil {
			return answer, nil
		}
	}
	return "", apperrors.NewOracleUnavailable(err)
}

func (e *Engine) publish(ctx context.Context, st *State, eventType events.EventType, payload interface{}) {
	if e.dispatcher == nil {
		return
	}
	event := events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TicketID:  st.Ticket.ID,
		RunID:     st.Run.ID,
		Timestamp: time.Now(),
		Payload:   payload,
	}
	_ = e.dispatcher.Publish(ctx, event)
}
