package workflow

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-router/internal/domain"
)

func TestScoreCandidateDomainAndKeywordBonus(t *testing.T) {
	emp := domain.Employee{
		ID:            "emp-1",
		Name:          "Alice",
		ExpertiseTags: []string{"machine learning", "python"},
		Availability:  domain.AvailabilityAvailable,
	}

	scored := ScoreCandidate("machine learning model keeps failing", emp, DefaultKeywordTable())

	// domain bucket 40, "machine" and "learning" keyword overlap, availability 10
	assert.GreaterOrEqual(t, scored.Score, 40+10)
	assert.Contains(t, scored.Reasons, "domain:ml")
}

func TestScoreCandidateIgnoresStopWords(t *testing.T) {
	emp := domain.Employee{
		ID:            "emp-1",
		Name:          "The And Or",
		ExpertiseTags: nil,
		Availability:  domain.AvailabilityOffline,
	}

	scored := ScoreCandidate("please can you help with the and or", emp, DefaultKeywordTable())

	for _, reason := range scored.Reasons {
		assert.NotContains(t, reason, "keyword:the")
		assert.NotContains(t, reason, "keyword:and")
	}
}

func TestSelectCandidatePrefersExpertiseOverAvailability(t *testing.T) {
	candidates := []domain.Employee{
		{ID: "emp-free", Name: "Free Generalist", Availability: domain.AvailabilityAvailable},
		{ID: "emp-busy", Name: "Busy Expert", ExpertiseTags: []string{"machine learning"}, Availability: domain.AvailabilityBusy},
	}

	winner, ok := SelectCandidate("machine learning model tuning", candidates, nil, DefaultKeywordTable())

	require.True(t, ok)
	assert.Equal(t, "emp-busy", winner.Employee.ID)
}

func TestSelectCandidateAvailabilityBreaksTies(t *testing.T) {
	candidates := []domain.Employee{
		{ID: "emp-a", ExpertiseTags: []string{"sql"}, Availability: domain.AvailabilityOffline},
		{ID: "emp-b", ExpertiseTags: []string{"sql"}, Availability: domain.AvailabilityAvailable},
	}

	winner, ok := SelectCandidate("sql report broken", candidates, nil, DefaultKeywordTable())

	require.True(t, ok)
	assert.Equal(t, "emp-b", winner.Employee.ID)
}

func TestSelectCandidateDeterministicOnEqualScores(t *testing.T) {
	candidates := []domain.Employee{
		{ID: "emp-z", Availability: domain.AvailabilityAvailable},
		{ID: "emp-a", Availability: domain.AvailabilityAvailable},
	}

	winner, ok := SelectCandidate("unrelated topic", candidates, nil, DefaultKeywordTable())

	require.True(t, ok)
	assert.Equal(t, "emp-a", winner.Employee.ID)
}

func TestSelectCandidateHonorsExclusions(t *testing.T) {
	candidates := []domain.Employee{
		{ID: "emp-1", ExpertiseTags: []string{"machine learning"}, Availability: domain.AvailabilityAvailable},
		{ID: "emp-2", Availability: domain.AvailabilityAvailable},
	}
	exclude := map[string]struct{}{"emp-1": {}}

	winner, ok := SelectCandidate("machine learning help", candidates, exclude, DefaultKeywordTable())

	require.True(t, ok)
	assert.Equal(t, "emp-2", winner.Employee.ID)
}

func TestSelectCandidateEmptyPool(t *testing.T) {
	_, ok := SelectCandidate("anything", nil, nil, DefaultKeywordTable())
	assert.False(t, ok)

	exclude := map[string]struct{}{"emp-1": {}}
	_, ok = SelectCandidate("anything", []domain.Employee{{ID: "emp-1"}}, exclude, DefaultKeywordTable())
	assert.False(t, ok)
}

func TestLoadKeywordTableDefaultsWithoutPath(t *testing.T) {
	table, err := LoadKeywordTable("")
	require.NoError(t, err)
	assert.Contains(t, table, "ml")
	assert.Contains(t, table, "backend")
}

func TestLoadKeywordTableFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keywords.yaml")
	content := "billing:\n  - invoice\n  - refund\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	table, err := LoadKeywordTable(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"invoice", "refund"}, table["billing"])
	assert.NotContains(t, table, "ml")
}
