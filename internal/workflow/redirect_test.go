package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/support-router/internal/domain"
	"github.com/spec-kit/support-router/internal/oracle"
)

func TestDetectEmptyTranscript(t *testing.T) {
	detector := NewRedirectDetector(newFakeOracle(), zap.NewNop())

	detection := detector.Detect(context.Background(), "t1", nil)

	assert.False(t, detection.Requested)
	assert.Equal(t, "none", detection.Method)
}

func TestDetectStructuredHeaders(t *testing.T) {
	detector := NewRedirectDetector(newFakeOracle(), zap.NewNop())
	transcript := []domain.ConversationEntry{
		{Speaker: "expert", Utterance: "REDIRECT_REQUESTED: true"},
		{Speaker: "expert", Utterance: "USERNAME_TO_REDIRECT: dana"},
		{Speaker: "expert", Utterance: "ROLE_OF_THE_REDIRECT_TO: data engineer"},
		{Speaker: "expert", Utterance: "RESPONSIBILITIES: owns the reporting pipeline"},
	}

	detection := detector.Detect(context.Background(), "t1", transcript)

	require.True(t, detection.Requested)
	assert.Equal(t, "structured", detection.Method)
	assert.Equal(t, "dana", detection.TargetUsername)
	assert.Equal(t, "data engineer", detection.TargetRole)
	assert.Equal(t, "owns the reporting pipeline", detection.Reason)
}

func TestDetectStructuredFalseBeatsKeyword(t *testing.T) {
	detector := NewRedirectDetector(newFakeOracle(), zap.NewNop())
	transcript := []domain.ConversationEntry{
		{Speaker: "expert", Utterance: "I considered whether to transfer this, but I can handle it."},
		{Speaker: "expert", Utterance: "REDIRECT_REQUESTED: false"},
	}

	detection := detector.Detect(context.Background(), "t1", transcript)

	assert.False(t, detection.Requested)
	assert.Equal(t, "structured", detection.Method)
}

func TestDetectKeywordVerb(t *testing.T) {
	detector := NewRedirectDetector(newFakeOracle(), zap.NewNop())
	transcript := []domain.ConversationEntry{
		{Speaker: "user", Utterance: "The report is empty every Monday."},
		{Speaker: "expert", Utterance: "Please forward this to the analytics team."},
	}

	detection := detector.Detect(context.Background(), "t1", transcript)

	require.True(t, detection.Requested)
	assert.Equal(t, "keyword", detection.Method)
	assert.Contains(t, detection.Reason, "forward this to the analytics team")
}

func TestDetectOracleFallback(t *testing.T) {
	o := newFakeOracle()
	o.respond(oracle.RoleRedirectDetector,
		"REDIRECT_REQUESTED: true\nROLE_OF_THE_REDIRECT_TO: billing specialist\nRESPONSIBILITIES: invoicing disputes")
	detector := NewRedirectDetector(o, zap.NewNop())
	transcript := []domain.ConversationEntry{
		{Speaker: "expert", Utterance: "I believe a colleague from billing is better suited for this case."},
	}

	detection := detector.Detect(context.Background(), "t1", transcript)

	require.True(t, detection.Requested)
	assert.Equal(t, "oracle", detection.Method)
	assert.Equal(t, "billing specialist", detection.TargetRole)
	assert.Equal(t, "invoicing disputes", detection.Reason)
}

func TestDetectOracleUndecidedMeansNoRedirect(t *testing.T) {
	o := newFakeOracle()
	o.respond(oracle.RoleRedirectDetector, "The conversation was a normal support call.")
	detector := NewRedirectDetector(o, zap.NewNop())
	transcript := []domain.ConversationEntry{
		{Speaker: "expert", Utterance: "That should be everything you need."},
	}

	detection := detector.Detect(context.Background(), "t1", transcript)

	assert.False(t, detection.Requested)
	assert.Equal(t, "oracle", detection.Method)
}

func TestDetectOracleFailureDegradesToNoRedirect(t *testing.T) {
	o := newFakeOracle()
	o.fail(oracle.RoleRedirectDetector, errors.New("oracle down"))
	detector := NewRedirectDetector(o, zap.NewNop())
	transcript := []domain.ConversationEntry{
		{Speaker: "expert", Utterance: "A colleague might know this better than me."},
	}

	detection := detector.Detect(context.Background(), "t1", transcript)

	assert.False(t, detection.Requested)
	assert.Equal(t, "oracle_failed", detection.Method)
}
