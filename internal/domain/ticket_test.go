package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAssignmentRejectsCreator(t *testing.T) {
	ticket := &Ticket{ID: "t1", CreatorID: "user-1"}

	err := ticket.RecordAssignment("user-1")
	require.Error(t, err)
	assert.Nil(t, ticket.AssignedTo)
	assert.Empty(t, ticket.AssignmentHistory)
}

func TestRecordAssignmentRejectsRepeatAssignee(t *testing.T) {
	ticket := &Ticket{ID: "t1", CreatorID: "user-1"}

	require.NoError(t, ticket.RecordAssignment("emp-1"))
	require.Error(t, ticket.RecordAssignment("emp-1"))

	assert.Equal(t, []string{"emp-1"}, ticket.AssignmentHistory)
	assert.Equal(t, TicketStatusAssigned, ticket.Status)
}

func TestRecordAssignmentAppendsHistory(t *testing.T) {
	ticket := &Ticket{ID: "t1", CreatorID: "user-1"}

	require.NoError(t, ticket.RecordAssignment("emp-1"))
	ticket.ClearAssignment()
	require.NoError(t, ticket.RecordAssignment("emp-2"))

	require.NotNil(t, ticket.AssignedTo)
	assert.Equal(t, "emp-2", *ticket.AssignedTo)
	assert.Equal(t, []string{"emp-1", "emp-2"}, ticket.AssignmentHistory)
}

func TestBumpRedirectStopsAtCap(t *testing.T) {
	ticket := &Ticket{ID: "t1", MaxRedirects: 2}

	require.NoError(t, ticket.BumpRedirect())
	require.NoError(t, ticket.BumpRedirect())
	assert.False(t, ticket.RedirectAllowed())
	require.Error(t, ticket.BumpRedirect())
	assert.Equal(t, 2, ticket.RedirectCount)
}

func TestBumpRedirectUsesDefaultCap(t *testing.T) {
	ticket := &Ticket{ID: "t1"}

	for i := 0; i < DefaultMaxRedirects; i++ {
		require.NoError(t, ticket.BumpRedirect())
	}
	require.Error(t, ticket.BumpRedirect())
}

func TestClearAssignmentPreservesAuditFields(t *testing.T) {
	session := "sess-1"
	ticket := &Ticket{
		ID:            "t1",
		CreatorID:     "user-1",
		RedirectCount: 2,
		CallStatus:    CallStatusEnded,
		CallSessionID: &session,
	}
	require.NoError(t, ticket.RecordAssignment("emp-1"))

	ticket.ClearAssignment()

	assert.Nil(t, ticket.AssignedTo)
	assert.Nil(t, ticket.CallSessionID)
	assert.Equal(t, CallStatusNotInitiated, ticket.CallStatus)
	assert.Equal(t, TicketStatusOpen, ticket.Status)
	assert.Equal(t, 2, ticket.RedirectCount)
	assert.Equal(t, []string{"emp-1"}, ticket.AssignmentHistory)
}

func TestMarkSolvedIsTerminal(t *testing.T) {
	ticket := &Ticket{ID: "t1"}
	now := time.Now()

	ticket.MarkSolved("use the reset link", now)

	assert.True(t, ticket.Terminal())
	require.NotNil(t, ticket.Resolution)
	assert.Equal(t, "use the reset link", *ticket.Resolution)
	require.NotNil(t, ticket.ResolvedAt)
}

func TestMarkEscalatedSetsReasonAndResolution(t *testing.T) {
	ticket := &Ticket{ID: "t1"}

	ticket.MarkEscalated(EscalationRedirectLimit, time.Now())

	assert.True(t, ticket.Terminal())
	require.NotNil(t, ticket.EscalationReason)
	assert.Equal(t, EscalationRedirectLimit, *ticket.EscalationReason)
	require.NotNil(t, ticket.Resolution)
	assert.Contains(t, *ticket.Resolution, EscalationRedirectLimit)
}
