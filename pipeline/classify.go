package pipeline

import (
	"fmt"
	"regexp"
	"strings"
)

// SubjectRule decides whether a subject line belongs to a meeting-notes
// email and captures the identity hint from it. The rule is the required
// token, the exclusion terms, and a capture pattern with exactly one group;
// exclusion wins over the required token.
type SubjectRule struct {
	requiredToken string
	excludeTerms  []string
	capture       *regexp.Regexp
}

// NewSubjectRule compiles a subject rule. capturePattern must contain at
// least one capturing group; matching is case-insensitive throughout.
func NewSubjectRule(requiredToken string, excludeTerms []string, capturePattern string) (*SubjectRule, error) {
	if strings.TrimSpace(requiredToken) == "" {
		return nil, fmt.Errorf("subject rule: required token is empty")
	}
	re, err := regexp.Compile("(?i)" + capturePattern)
	if err != nil {
		return nil, fmt.Errorf("subject rule: compile capture pattern: %w", err)
	}
	if re.NumSubexp() < 1 {
		return nil, fmt.Errorf("subject rule: capture pattern has no capturing group")
	}
	return &SubjectRule{
		requiredToken: requiredToken,
		excludeTerms:  excludeTerms,
		capture:       re,
	}, nil
}

// Classify applies the rule to a raw subject line. It is a pure function:
// no side effects, no I/O. A non-match is a normal filtering outcome, not
// an error. A match whose captured hint is empty after trimming is treated
// as a non-match rather than propagating an empty hint.
func Classify(subject string, rule *SubjectRule) ClassificationResult {
	lower := strings.ToLower(subject)
	if !strings.Contains(lower, strings.ToLower(rule.requiredToken)) {
		return ClassificationResult{}
	}
	for _, term := range rule.excludeTerms {
		if term == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(term)) {
			return ClassificationResult{}
		}
	}
	m := rule.capture.FindStringSubmatch(subject)
	if len(m) < 2 {
		return ClassificationResult{}
	}
	hint := strings.TrimSpace(m[1])
	if hint == "" {
		return ClassificationResult{}
	}
	return ClassificationResult{Matches: true, Hint: hint}
}
