package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/support-router/internal/api/http"
	"github.com/spec-kit/support-router/internal/api/http/handlers"
	"github.com/spec-kit/support-router/internal/domain"
	"github.com/spec-kit/support-router/internal/observability"
	"github.com/spec-kit/support-router/internal/service"
)

type stubTicketRepo struct {
	tickets map[string]*domain.Ticket
}

func newStubTicketRepo() *stubTicketRepo {
	return &stubTicketRepo{tickets: map[string]*domain.Ticket{}}
}

func (r *stubTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	if ticket.ID == "" {
		ticket.ID = uuid.NewString()
	}
	copied := *ticket
	r.tickets[ticket.ID] = &copied
	return nil
}

func (r *stubTicketRepo) Update(_ context.Context, ticket *domain.Ticket) error {
	copied := *ticket
	r.tickets[ticket.ID] = &copied
	return nil
}

func (r *stubTicketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
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

type stubRunRepo struct{}

func (stubRunRepo) Create(context.Context, *domain.WorkflowRun) error { return nil }
func (stubRunRepo) Finish(context.Context, string, domain.RunOutcome, *string) error {
	return nil
}
func (stubRunRepo) ListByTicket(context.Context, string, int) ([]domain.WorkflowRun, error) {
	return []domain.WorkflowRun{}, nil
}

type stubTransitionRepo struct{}

func (stubTransitionRepo) Create(context.Context, *domain.WorkflowTransition) error { return nil }
func (stubTransitionRepo) ListByTicket(context.Context, string, int, int) ([]domain.WorkflowTransition, error) {
	return []domain.WorkflowTransition{}, nil
}

type stubLocker struct{}

func (stubLocker) Acquire(context.Context, string) (func(), error) {
	return func() {}, nil
}

type stubEngine struct{}

func (stubEngine) Run(context.Context, *domain.Ticket, *domain.WorkflowRun) error    { return nil }
func (stubEngine) Resume(context.Context, *domain.Ticket, *domain.WorkflowRun) error { return nil }

func newTestApp(t *testing.T) (*fiber.App, *stubTicketRepo) {
	t.Helper()
	repo := newStubTicketRepo()

	workflowService := service.NewWorkflowService(service.WorkflowDependencies{
		TicketRepo:   repo,
		RunRepo:      stubRunRepo{},
		Locker:       stubLocker{},
		Engine:       stubEngine{},
		Logger:       zap.NewNop(),
		MaxRedirects: 3,
	})
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:     repo,
		RunRepo:        stubRunRepo{},
		TransitionRepo: stubTransitionRepo{},
	})

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, zap.NewNop(), observability.NewMetrics(), 0)

	ticketsHandler := handlers.NewTicketsHandler(workflowService, ticketService)
	voiceHandler := handlers.NewVoiceHandler(workflowService)
	healthHandler := handlers.NewHealthHandler("test", "dev", nil, nil)

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:  healthHandler,
		Tickets: ticketsHandler,
		Voice:   voiceHandler,
	})
	return app, repo
}

func postJSON(t *testing.T, app *fiber.App, path string, payload any) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeError(t *testing.T, resp *http.Response) (code string) {
	t.Helper()
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	return envelope.Error.Code
}

func TestSubmitTicketValidationFailure(t *testing.T) {
	app, _ := newTestApp(t)

	resp := postJSON(t, app, "/tickets", map[string]string{"subject": "only a subject"})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION_FAILED", decodeError(t, resp))
}

func TestSubmitTicketSuccess(t *testing.T) {
	app, repo := newTestApp(t)

	resp := postJSON(t, app, "/tickets", map[string]string{
		"subject":     "VPN keeps dropping",
		"description": "Connection drops every ten minutes on the office network",
		"creator_id":  "user-7",
	})

	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var envelope struct {
		Data struct {
			Ticket struct {
				ID        string `json:"id"`
				Status    string `json:"status"`
				CreatorID string `json:"creator_id"`
			} `json:"ticket"`
			RunID string `json:"run_id"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	assert.NotEmpty(t, envelope.Data.Ticket.ID)
	assert.NotEmpty(t, envelope.Data.RunID)
	assert.Equal(t, "user-7", envelope.Data.Ticket.CreatorID)
	assert.Len(t, repo.tickets, 1)
}

func TestGetTicketNotFound(t *testing.T) {
	app, _ := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/tickets/"+uuid.NewString(), nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", decodeError(t, resp))
}

func TestCallEndedOnTerminalTicketIsStale(t *testing.T) {
	app, repo := newTestApp(t)
	resolution := "done"
	ticket := &domain.Ticket{
		CreatorID:  "user-7",
		Status:     domain.TicketStatusSolved,
		Resolution: &resolution,
	}
	require.NoError(t, repo.Create(context.Background(), ticket))

	resp := postJSON(t, app, "/tickets/"+ticket.ID+"/call-ended", map[string]any{
		"transcript": []map[string]string{{"speaker": "expert", "utterance": "hello"}},
	})

	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "STALE_CALL_EVENT", decodeError(t, resp))
}

func TestVoiceEventUnsupportedType(t *testing.T) {
	app, _ := newTestApp(t)

	resp := postJSON(t, app, "/voice/events", map[string]string{
		"type":      "call.muted",
		"ticket_id": uuid.NewString(),
	})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION_FAILED", decodeError(t, resp))
}

func TestVoiceCallStartedAcknowledged(t *testing.T) {
	app, repo := newTestApp(t)
	ticket := &domain.Ticket{
		CreatorID:  "user-7",
		Status:     domain.TicketStatusInProgress,
		CallStatus: domain.CallStatusRinging,
	}
	require.NoError(t, repo.Create(context.Background(), ticket))

	resp := postJSON(t, app, "/voice/events", map[string]string{
		"type":      "call.started",
		"ticket_id": ticket.ID,
	})

	require.Equal(t, http.StatusOK, resp.StatusCode)
	stored, err := repo.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CallStatusActive, stored.CallStatus)
}
