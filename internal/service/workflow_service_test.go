package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/support-router/internal/domain"
	"github.com/spec-kit/support-router/internal/events"
	apperrors "github.com/spec-kit/support-router/pkg/util"
)

type stubTicketRepo struct {
	tickets map[string]*domain.Ticket
	creates int
	updates int
}

func newStubTicketRepo() *stubTicketRepo {
	return &stubTicketRepo{tickets: map[string]*domain.Ticket{}}
}

func (r *stubTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	r.creates++
	if ticket.ID == "" {
		ticket.ID = uuid.NewString()
	}
	copied := *ticket
	r.tickets[ticket.ID] = &copied
	return nil
}

func (r *stubTicketRepo) Update(_ context.Context, ticket *domain.Ticket) error {
	if _, ok := r.tickets[ticket.ID]; !ok {
		return errors.New("ticket not found")
	}
	r.updates++
	copied := *ticket
	r.tickets[ticket.ID] = &copied
	return nil
}

func (r *stubTicketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, errors.New("ticket not found")
	}
	copied := *ticket
	return &copied, nil
}

func (r *stubTicketRepo) ListByCreator(_ context.Context, creatorID string, _, _ int) ([]domain.Ticket, error) {
	result := make([]domain.Ticket, 0)
	for _, ticket := range r.tickets {
		if ticket.CreatorID == creatorID {
			result = append(result, *ticket)
		}
	}
	return result, nil
}

type stubRunRepo struct {
	created []domain.WorkflowRun
}

func (r *stubRunRepo) Create(_ context.Context, run *domain.WorkflowRun) error {
	r.created = append(r.created, *run)
	return nil
}

func (r *stubRunRepo) Finish(context.Context, string, domain.RunOutcome, *string) error {
	return nil
}

func (r *stubRunRepo) ListByTicket(context.Context, string, int) ([]domain.WorkflowRun, error) {
	return nil, nil
}

type stubLocker struct {
	acquired []string
	released int
	err      error
}

func (l *stubLocker) Acquire(_ context.Context, ticketID string) (func(), error) {
	if l.err != nil {
		return nil, l.err
	}
	l.acquired = append(l.acquired, ticketID)
	return func() { l.released++ }, nil
}

type stubEngine struct {
	runs    int
	resumes int
	err     error
}

func (e *stubEngine) Run(context.Context, *domain.Ticket, *domain.WorkflowRun) error {
	e.runs++
	return e.err
}

func (e *stubEngine) Resume(context.Context, *domain.Ticket, *domain.WorkflowRun) error {
	e.resumes++
	return e.err
}

type serviceFixture struct {
	service *WorkflowService
	tickets *stubTicketRepo
	runs    *stubRunRepo
	locker  *stubLocker
	engine  *stubEngine
}

func newServiceFixture() *serviceFixture {
	f := &serviceFixture{
		tickets: newStubTicketRepo(),
		runs:    &stubRunRepo{},
		locker:  &stubLocker{},
		engine:  &stubEngine{},
	}
	f.service = NewWorkflowService(WorkflowDependencies{
		TicketRepo:   f.tickets,
		RunRepo:      f.runs,
		Locker:       f.locker,
		Engine:       f.engine,
		Dispatcher:   events.NewInMemoryDispatcher(),
		Logger:       zap.NewNop(),
		MaxRedirects: 3,
	})
	return f
}

func validInput() SubmitTicketInput {
	return SubmitTicketInput{
		Subject:     "Printer offline",
		Description: "The third floor printer refuses every job",
		CreatorID:   "user-1",
	}
}

func TestSubmitValidatesInput(t *testing.T) {
	f := newServiceFixture()

	input := validInput()
	input.Subject = "  "
	_, _, err := f.service.Submit(context.Background(), input)

	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))
	assert.Zero(t, f.tickets.creates)
	assert.Zero(t, f.engine.runs)
}

func TestSubmitRejectsUnknownPriority(t *testing.T) {
	f := newServiceFixture()

	input := validInput()
	input.Priority = domain.TicketPriority("WHENEVER")
	_, _, err := f.service.Submit(context.Background(), input)

	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))
}

func TestSubmitRunsEngineUnderLock(t *testing.T) {
	f := newServiceFixture()

	ticket, runID, err := f.service.Submit(context.Background(), validInput())

	require.NoError(t, err)
	require.NotNil(t, ticket)
	assert.NotEmpty(t, runID)
	assert.Equal(t, domain.TicketPriorityMedium, ticket.Priority)
	assert.Equal(t, 3, ticket.MaxRedirects)
	assert.Equal(t, 1, f.engine.runs)
	assert.Equal(t, []string{ticket.ID}, f.locker.acquired)
	assert.Equal(t, 1, f.locker.released)
	require.Len(t, f.runs.created, 1)
	assert.Equal(t, domain.RunEntrySubmission, f.runs.created[0].EntryPoint)
}

func TestSubmitReturnsTicketWhenRunFails(t *testing.T) {
	f := newServiceFixture()
	f.engine.err = apperrors.NewMalformedQuery("unusable request text")

	ticket, runID, err := f.service.Submit(context.Background(), validInput())

	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "MALFORMED_QUERY"))
	require.NotNil(t, ticket)
	assert.NotEmpty(t, runID)
}

func TestSubmitLockContention(t *testing.T) {
	f := newServiceFixture()
	f.locker.err = errors.New("lock held")

	_, _, err := f.service.Submit(context.Background(), validInput())

	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "CONFLICT"))
	assert.Zero(t, f.engine.runs)
}

func TestNotifyCallEndedResumesEngine(t *testing.T) {
	f := newServiceFixture()
	ticket := &domain.Ticket{
		CreatorID:  "user-1",
		Status:     domain.TicketStatusInProgress,
		CallStatus: domain.CallStatusActive,
	}
	require.NoError(t, f.tickets.Create(context.Background(), ticket))

	transcript := []domain.ConversationEntry{{Speaker: "expert", Utterance: "All set."}}
	updated, runID, err := f.service.NotifyCallEnded(context.Background(), ticket.ID, transcript)

	require.NoError(t, err)
	assert.NotEmpty(t, runID)
	assert.Equal(t, domain.CallStatusEnded, updated.CallStatus)
	assert.Equal(t, transcript, updated.Transcript)
	assert.Equal(t, 1, f.engine.resumes)
	require.Len(t, f.runs.created, 1)
	assert.Equal(t, domain.RunEntryCallEnded, f.runs.created[0].EntryPoint)
	assert.Equal(t, 1, f.locker.released)
}

func TestNotifyCallEndedDiscardsStaleEvent(t *testing.T) {
	f := newServiceFixture()
	resolution := "done"
	ticket := &domain.Ticket{
		CreatorID:  "user-1",
		Status:     domain.TicketStatusSolved,
		CallStatus: domain.CallStatusEnded,
		Resolution: &resolution,
	}
	require.NoError(t, f.tickets.Create(context.Background(), ticket))

	_, _, err := f.service.NotifyCallEnded(context.Background(), ticket.ID, nil)

	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "STALE_CALL_EVENT"))
	assert.Zero(t, f.engine.resumes)
	assert.Empty(t, f.runs.created)

	stored, getErr := f.tickets.GetByID(context.Background(), ticket.ID)
	require.NoError(t, getErr)
	assert.Equal(t, domain.TicketStatusSolved, stored.Status)
	require.NotNil(t, stored.Resolution)
	assert.Equal(t, "done", *stored.Resolution)
}

func TestNotifyCallStartedMarksActive(t *testing.T) {
	f := newServiceFixture()
	ticket := &domain.Ticket{
		CreatorID:  "user-1",
		Status:     domain.TicketStatusInProgress,
		CallStatus: domain.CallStatusRinging,
	}
	require.NoError(t, f.tickets.Create(context.Background(), ticket))

	require.NoError(t, f.service.NotifyCallStarted(context.Background(), ticket.ID))

	stored, err := f.tickets.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CallStatusActive, stored.CallStatus)
	assert.Zero(t, f.engine.resumes)
}

func TestNotifyCallStartedOutOfOrderIsIgnored(t *testing.T) {
	f := newServiceFixture()
	ticket := &domain.Ticket{
		CreatorID:  "user-1",
		Status:     domain.TicketStatusInProgress,
		CallStatus: domain.CallStatusEnded,
	}
	require.NoError(t, f.tickets.Create(context.Background(), ticket))

	require.NoError(t, f.service.NotifyCallStarted(context.Background(), ticket.ID))

	stored, err := f.tickets.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CallStatusEnded, stored.CallStatus)
	assert.Zero(t, f.tickets.updates)
}
