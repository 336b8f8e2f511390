package workflow

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/support-router/internal/domain"
	"github.com/spec-kit/support-router/internal/oracle"
)

// Structured header markers an expert-facing client may embed in the
// transcript. When present they win over every other detection method.
const (
	headerRedirectRequested = "REDIRECT_REQUESTED:"
	headerTargetUsername    = "USERNAME_TO_REDIRECT:"
	headerTargetRole        = "ROLE_OF_THE_REDIRECT_TO:"
	headerResponsibilities  = "RESPONSIBILITIES:"
)

var redirectVerbPattern = regexp.MustCompile(`(?i)\b(redirect|transfer|forward|reassign|hand\s+(?:this\s+)?over)\b`)

// Detection is the outcome of scanning a call for a reassignment request.
type Detection struct {
	Requested      bool
	TargetUsername string
	TargetRole     string
	Reason         string
	Method         string
}

// RedirectDetector scans transcripts for reassignment requests: structured
// headers first, then literal redirect verbs, then an oracle classification
// of free text. Structured pattern wins whenever both are present.
type RedirectDetector struct {
	oracle Oracle
	logger *zap.Logger
}

// NewRedirectDetector builds a detector.
func NewRedirectDetector(o Oracle, logger *zap.Logger) *RedirectDetector {
	return &RedirectDetector{oracle: o, logger: logger}
}

// Detect analyzes a completed call transcript. Oracle failure during the
// free-text fallback degrades to "no redirect" so a flaky oracle cannot
// spin a resolved call back into reassignment.
func (d *RedirectDetector) Detect(ctx context.Context, ticketID string, transcript []domain.ConversationEntry) Detection {
	text := flattenTranscript(transcript)
	if strings.TrimSpace(text) == "" {
		return Detection{Method: "none"}
	}

	if detection, decided := parseStructuredHeaders(text); decided {
		detection.Method = "structured"
		return detection
	}

	if redirectVerbPattern.MatchString(text) {
		return Detection{
			Requested: true,
			Reason:    reasonFromKeywordMatch(text),
			Method:    "keyword",
		}
	}

	answer, err := d.oracle.Complete(ctx, oracle.RoleRedirectDetector, text,
		"Decide whether the assigned expert asked for this case to be reassigned to someone else. "+
			"Answer using exactly these headers:\n"+
			"REDIRECT_REQUESTED: true|false\nUSERNAME_TO_REDIRECT: <username or empty>\n"+
			"ROLE_OF_THE_REDIRECT_TO: <role or empty>\nRESPONSIBILITIES: <reason or empty>")
	if err != nil {
		d.logger.Warn("redirect classification degraded to no-redirect",
			zap.String("ticket_id", ticketID), zap.Error(err))
		return Detection{Method: "oracle_failed"}
	}

	if detection, decided := parseStructuredHeaders(answer); decided {
		detection.Method = "oracle"
		return detection
	}
	return Detection{Method: "oracle"}
}

// parseStructuredHeaders reports decided=true only when the
// REDIRECT_REQUESTED header is present with a parseable value. Headers
// are matched anywhere in a line; transcripts prefix every line with the
// speaker name.
func parseStructuredHeaders(text string) (Detection, bool) {
	var detection Detection
	decided := false
	for _, line := range strings.Split(text, "\n") {
		if value, ok := headerValue(line, headerRedirectRequested); ok {
			switch strings.ToLower(value) {
			case "true":
				detection.Requested = true
				decided = true
			case "false":
				detection.Requested = false
				decided = true
			}
		}
		if value, ok := headerValue(line, headerTargetUsername); ok {
			detection.TargetUsername = value
		}
		if value, ok := headerValue(line, headerTargetRole); ok {
			detection.TargetRole = value
		}
		if value, ok := headerValue(line, headerResponsibilities); ok {
			detection.Reason = value
		}
	}
	return detection, decided
}

func headerValue(line, header string) (string, bool) {
	idx := strings.Index(line, header)
	if idx < 0 {
		return "", false
	}
	return strings.TrimSpace(line[idx+len(header):]), true
}

func reasonFromKeywordMatch(text string) string {
	for _, sentence := range strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?' || r == '\n'
	}) {
		if redirectVerbPattern.MatchString(sentence) {
			return strings.TrimSpace(sentence)
		}
	}
	return "reassignment requested during call"
}

func flattenTranscript(transcript []domain.ConversationEntry) string {
	lines := make([]string, 0, len(transcript))
	for _, entry := range transcript {
		lines = append(lines, entry.Speaker+": "+entry.Utterance)
	}
	return strings.Join(lines, "\n")
}
