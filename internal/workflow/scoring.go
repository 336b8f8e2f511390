package workflow

import (
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/spec-kit/support-router/internal/domain"
)

// Scoring weights. The domain bucket dominates, literal keyword overlap
// refines, availability breaks near-ties between equally qualified experts.
const (
	domainMatchBonus  = 40
	keywordMatchBonus = 5
)

var availabilityBonus = map[domain.Availability]int{
	domain.AvailabilityAvailable:    10,
	domain.AvailabilityBusy:         6,
	domain.AvailabilityInMeeting:    3,
	domain.AvailabilityDoNotDisturb: 1,
	domain.AvailabilityOffline:      0,
}

var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "or": {}, "but": {}, "in": {}, "on": {}, "at": {},
	"to": {}, "for": {}, "of": {}, "with": {}, "by": {}, "is": {}, "are": {},
	"was": {}, "were": {}, "be": {}, "been": {}, "have": {}, "has": {}, "had": {},
	"please": {}, "can": {}, "you": {}, "my": {}, "our": {}, "about": {},
}

// KeywordTable maps an expertise domain bucket to the phrases that signal it.
type KeywordTable map[string][]string

// DefaultKeywordTable returns the built-in expertise buckets.
func DefaultKeywordTable() KeywordTable {
	return KeywordTable{
		"ml":      {"machine learning", "ml", "model", "neural", "deep learning", "classification", "algorithm", "data science"},
		"ui_ux":   {"design", "interface", "user experience", "prototype", "wireframe", "figma", "frontend"},
		"data":    {"data", "analysis", "visualization", "dashboard", "sql", "analytics"},
		"backend": {"api", "server", "database", "backend", "python", "javascript", "microservices", "connection"},
		"product": {"product", "roadmap", "requirements", "specification", "agile", "stakeholder"},
	}
}

// LoadKeywordTable reads a YAML override of the expertise buckets, falling
// back to the built-in table when no path is configured.
func LoadKeywordTable(path string) (KeywordTable, error) {
	if path == "" {
		return DefaultKeywordTable(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	table := KeywordTable{}
	if err := yaml.Unmarshal(raw, &table); err != nil {
		return nil, err
	}
	if len(table) == 0 {
		return DefaultKeywordTable(), nil
	}
	return table, nil
}

// ScoredCandidate pairs an employee with the score the matcher gave them.
type ScoredCandidate struct {
	Employee domain.Employee
	Score    int
	Reasons  []string
}

// ScoreCandidate rates one employee against a query. Pure function; no
// oracle involvement.
func ScoreCandidate(query string, emp domain.Employee, table KeywordTable) ScoredCandidate {
	queryText := strings.ToLower(query)
	empText := employeeText(emp)

	scored := ScoredCandidate{Employee: emp}

	for bucket, phrases := range table {
		if !textMatchesAny(queryText, phrases) {
			continue
		}
		if textMatchesAny(empText, phrases) {
			scored.Score += domainMatchBonus
			scored.Reasons = append(scored.Reasons, "domain:"+bucket)
		}
	}

	for _, term := range queryTerms(queryText) {
		if strings.Contains(empText, term) {
			scored.Score += keywordMatchBonus
			scored.Reasons = append(scored.Reasons, "keyword:"+term)
		}
	}

	if bonus, ok := availabilityBonus[emp.Availability]; ok {
		scored.Score += bonus
	}

	return scored
}

// SelectCandidate filters the exclusion set, scores the rest, and picks
// the winner. Ties break on the lexically smallest employee id so the
// choice is deterministic. ok is false when the pool is empty.
func SelectCandidate(query string, candidates []domain.Employee, exclude map[string]struct{}, table KeywordTable) (ScoredCandidate, bool) {
	scored := make([]ScoredCandidate, 0, len(candidates))
	for _, emp := range candidates {
		if _, banned := exclude[emp.ID]; banned {
			continue
		}
		scored = append(scored, ScoreCandidate(query, emp, table))
	}
	if len(scored) == 0 {
		return ScoredCandidate{}, false
	}
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Employee.ID < scored[j].Employee.ID
	})
	return scored[0], true
}

func employeeText(emp domain.Employee) string {
	parts := make([]string, 0, len(emp.ExpertiseTags)+2)
	parts = append(parts, strings.ToLower(emp.Name), strings.ToLower(string(emp.Role)))
	for _, tag := range emp.ExpertiseTags {
		parts = append(parts, strings.ToLower(tag))
	}
	return strings.Join(parts, " ")
}

func textMatchesAny(text string, phrases []string) bool {
	for _, phrase := range phrases {
		if strings.Contains(phrase, " ") {
			if strings.Contains(text, phrase) {
				return true
			}
			continue
		}
		for _, word := range strings.Fields(text) {
			if strings.Trim(word, ".,!?;:") == phrase {
				return true
			}
		}
	}
	return false
}

func queryTerms(queryText string) []string {
	terms := make([]string, 0)
	seen := map[string]struct{}{}
	for _, word := range strings.Fields(queryText) {
		word = strings.Trim(word, ".,!?;:\"'")
		if len(word) <= 2 {
			continue
		}
		if _, skip := stopWords[word]; skip {
			continue
		}
		if _, dup := seen[word]; dup {
			continue
		}
		seen[word] = struct{}{}
		terms = append(terms, word)
	}
	return terms
}
