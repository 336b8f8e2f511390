package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/support-router/internal/domain"
	"github.com/spec-kit/support-router/internal/events"
	"github.com/spec-kit/support-router/internal/oracle"
	"github.com/spec-kit/support-router/internal/voice"
	apperrors "github.com/spec-kit/support-router/pkg/util"
)

const intentHeader = "INTENT:"

// preprocessStep turns the raw submission into a focused search query.
// An oracle answer without the expected INTENT header means the request
// text could not be understood; the ticket stays open and untouched.
func (e *Engine) preprocessStep(ctx context.Context, st *State) (Step, error) {
	contextText := fmt.Sprintf("Subject: %s\nDescription: %s", st.Ticket.Subject, st.Ticket.Description)
	answer, err := e.completeWithRetry(ctx, oracle.RolePreprocess, contextText,
		"Restate this support request as one focused search query. "+
			"Answer with a single line in the form:\nINTENT: <query>")
	if err != nil {
		return StepEnd, err
	}

	query := ""
	for _, line := range strings.Split(answer, "\n") {
		if value, ok := headerValue(line, intentHeader); ok && value != "" {
			query = value
			break
		}
	}
	if query == "" {
		return StepEnd, apperrors.NewMalformedQuery("request text could not be reduced to a search query")
	}

	st.Query = query
	return StepDocumentSearch, nil
}

// documentSearchStep queries the knowledge base. Search failure is not
// fatal; the run continues with zero confidence and routes to an expert.
func (e *Engine) documentSearchStep(ctx context.Context, st *State) (Step, error) {
	result, err := e.knowledge.Search(ctx, st.effectiveQuery())
	if err != nil {
		e.logger.Warn("knowledge search failed; routing without passages",
			zap.String("ticket_id", st.Ticket.ID), zap.Error(err))
		st.Passages = nil
		st.Confidence = 0
		return StepSynthesize, nil
	}
	st.Passages = result.Passages
	st.Confidence = result.Confidence
	return StepSynthesize, nil
}

// synthesizeStep drafts an answer from retrieved passages and decides
// whether it resolves the request. The self-serve path is taken only
// when the oracle judges the draft sufficient, passages were actually
// found, and retrieval confidence clears the threshold.
func (e *Engine) synthesizeStep(ctx context.Context, st *State) (Step, error) {
	if len(st.Passages) == 0 {
		st.Sufficient = false
		return StepAssignExpert, nil
	}

	contextText := fmt.Sprintf("Question: %s\n\nPassages:\n%s", st.effectiveQuery(), strings.Join(st.Passages, "\n---\n"))
	answer, err := e.completeWithRetry(ctx, oracle.RoleSynthesize, contextText,
		"Draft an answer to the question using only the passages. "+
			"Start your reply with a single line 'SUFFICIENT: YES' when the passages fully "+
			"answer the question, or 'SUFFICIENT: NO' when they do not, then the draft.")
	if err != nil {
		return StepEnd, err
	}

	st.Draft = answer
	verdict := ""
	for _, line := range strings.Split(answer, "\n") {
		if value, ok := headerValue(line, "SUFFICIENT:"); ok {
			verdict = strings.ToUpper(value)
			if rest := strings.Index(answer, "\n"); rest >= 0 {
				st.Draft = strings.TrimSpace(answer[rest+1:])
			}
			break
		}
	}
	st.Sufficient = strings.HasPrefix(verdict, "YES")

	e.logger.Info("synthesis verdict",
		zap.String("ticket_id", st.Ticket.ID),
		zap.Bool("sufficient", st.Sufficient),
		zap.Float64("confidence", st.Confidence))

	if st.Sufficient && st.Confidence >= e.opts.ConfidenceThreshold {
		return StepFinalFormat, nil
	}
	return StepAssignExpert, nil
}

// assignExpertStep scores the candidate pool and assigns the winner. An
// empty pool, after exclusions, escalates the ticket.
func (e *Engine) assignExpertStep(ctx context.Context, st *State) (Step, error) {
	exclude := st.excludeSet()
	for _, previous := range st.Ticket.AssignmentHistory {
		exclude[previous] = struct{}{}
	}

	excluding := make([]string, 0, len(exclude))
	for id := range exclude {
		excluding = append(excluding, id)
	}
	candidates, err := e.directory.ListCandidates(ctx, excluding)
	if err != nil {
		return StepEnd, apperrors.MapError(err)
	}

	winner, ok := SelectCandidate(st.effectiveQuery(), candidates, exclude, e.opts.KeywordTable)
	if !ok {
		st.Ticket.MarkEscalated(domain.EscalationNoCandidate, time.Now())
		st.Outcome = domain.RunOutcomeEscalated
		e.publish(ctx, st, events.EventTicketEscalated,
			events.TicketEscalatedPayload{Reason: domain.EscalationNoCandidate})
		e.logger.Info("no eligible expert; escalating",
			zap.String("ticket_id", st.Ticket.ID),
			zap.Int("excluded", len(exclude)))
		return StepEnd, nil
	}

	if err := st.Ticket.RecordAssignment(winner.Employee.ID); err != nil {
		return StepEnd, apperrors.NewInternalError(err)
	}
	st.Candidate = &winner.Employee

	e.publish(ctx, st, events.EventTicketAssigned, events.TicketAssignedPayload{
		EmployeeID: winner.Employee.ID,
		Score:      winner.Score,
		Redirect:   st.RedirectReason != "",
	})
	e.logger.Info("expert assigned",
		zap.String("ticket_id", st.Ticket.ID),
		zap.String("employee_id", winner.Employee.ID),
		zap.Int("score", winner.Score),
		zap.Strings("reasons", winner.Reasons))
	return StepInitiateCall, nil
}

// initiateCallStep opens a voice session to the assignee and suspends
// the run. Session start returns on channel ack; ringing, pickup, and
// the conversation itself happen outside the engine.
func (e *Engine) initiateCallStep(ctx context.Context, st *State) (Step, error) {
	if st.Ticket.AssignedTo == nil {
		return StepEnd, apperrors.NewInternalError(fmt.Errorf("initiate call without assignee on ticket %s", st.Ticket.ID))
	}

	sessionID, err := e.voice.StartSession(ctx, *st.Ticket.AssignedTo, voice.CallContext{
		TicketID:       st.Ticket.ID,
		Subject:        st.Ticket.Subject,
		Query:          st.effectiveQuery(),
		RedirectReason: st.RedirectReason,
	})
	if err != nil {
		return StepEnd, apperrors.MapError(err)
	}

	st.Ticket.CallSessionID = &sessionID
	st.Ticket.CallStatus = domain.CallStatusRinging
	st.Ticket.Status = domain.TicketStatusInProgress
	st.Suspended = true

	e.publish(ctx, st, events.EventCallInitiated, events.CallInitiatedPayload{
		EmployeeID: *st.Ticket.AssignedTo,
		SessionID:  sessionID,
	})
	return StepCallCompletion, nil
}

// callCompletionStep is the resume entry. It runs only when the caller
// already stamped the transcript and ended the call; anything else is a
// stray resume and ends as a no-op.
func (e *Engine) callCompletionStep(ctx context.Context, st *State) (Step, error) {
	if st.Ticket.CallStatus != domain.CallStatusEnded {
		e.logger.Warn("resume without an ended call; ignoring",
			zap.String("ticket_id", st.Ticket.ID),
			zap.String("call_status", string(st.Ticket.CallStatus)))
		st.Outcome = domain.RunOutcomeNoOp
		return StepEnd, nil
	}

	e.publish(ctx, st, events.EventCallCompleted, events.CallCompletedPayload{
		TranscriptLen: len(st.Ticket.Transcript),
	})
	return StepRedirectDetect, nil
}

// redirectDetectorStep scans the transcript for a reassignment request
// and enforces the redirect cap.
func (e *Engine) redirectDetectorStep(ctx context.Context, st *State) (Step, error) {
	detection := e.detector.Detect(ctx, st.Ticket.ID, st.Ticket.Transcript)
	if !detection.Requested {
		return StepFinalFormat, nil
	}

	if !st.Ticket.RedirectAllowed() {
		st.Ticket.MarkEscalated(domain.EscalationRedirectLimit, time.Now())
		st.Outcome = domain.RunOutcomeEscalated
		e.publish(ctx, st, events.EventTicketEscalated,
			events.TicketEscalatedPayload{Reason: domain.EscalationRedirectLimit})
		e.logger.Info("redirect limit reached; escalating",
			zap.String("ticket_id", st.Ticket.ID),
			zap.Int("redirect_count", st.Ticket.RedirectCount))
		return StepEnd, nil
	}

	if err := st.Ticket.BumpRedirect(); err != nil {
		return StepEnd, apperrors.NewInternalError(err)
	}
	st.RedirectReason = redirectQuery(detection)

	e.publish(ctx, st, events.EventRedirectDetected, events.RedirectDetectedPayload{
		Reason:        detection.Reason,
		Method:        detection.Method,
		RedirectCount: st.Ticket.RedirectCount,
	})
	e.logger.Info("redirect requested",
		zap.String("ticket_id", st.Ticket.ID),
		zap.String("method", detection.Method),
		zap.Int("redirect_count", st.Ticket.RedirectCount))
	return StepResetAssignment, nil
}

// resetAssignmentStep clears the assignee and call state so matching can
// run again. History and redirect count are preserved so earlier
// assignees stay excluded and the cap keeps counting.
func (e *Engine) resetAssignmentStep(_ context.Context, st *State) (Step, error) {
	st.Ticket.ClearAssignment()
	st.Exclude = append([]string(nil), st.Ticket.AssignmentHistory...)
	return StepAssignExpert, nil
}

// finalFormatStep reviews the outcome text and solves the ticket. The
// self-serve path formats the synthesized draft; the call path formats a
// resolution distilled from the transcript.
func (e *Engine) finalFormatStep(ctx context.Context, st *State) (Step, error) {
	selfServe := st.Draft != "" && len(st.Ticket.Transcript) == 0

	var contextText string
	if selfServe {
		contextText = fmt.Sprintf("Question: %s\n\nDraft answer:\n%s", st.effectiveQuery(), st.Draft)
	} else {
		contextText = fmt.Sprintf("Question: %s\n\nCall transcript:\n%s",
			st.effectiveQuery(), flattenTranscript(st.Ticket.Transcript))
	}

	answer, err := e.completeWithRetry(ctx, oracle.RoleFinalFormat, contextText,
		"Write the final resolution the requester will read. Be concise, "+
			"actionable, and grounded only in the material above.")
	if err != nil {
		return StepEnd, err
	}

	st.Ticket.MarkSolved(answer, time.Now())
	st.Outcome = domain.RunOutcomeSolved

	e.publish(ctx, st, events.EventTicketSolved, events.TicketSolvedPayload{SelfServe: selfServe})
	e.logger.Info("ticket solved",
		zap.String("ticket_id", st.Ticket.ID),
		zap.Bool("self_serve", selfServe))
	return StepEnd, nil
}

// redirectQuery builds the text the next matching round scores against.
func redirectQuery(detection Detection) string {
	parts := make([]string, 0, 2)
	if detection.TargetRole != "" {
		parts = append(parts, detection.TargetRole)
	}
	if detection.Reason != "" {
		parts = append(parts, detection.Reason)
	}
	if len(parts) == 0 {
		return "reassignment requested during call"
	}
	return strings.Join(parts, " ")
}
