package pipeline

import (
	"context"
	"log/slog"
	"strings"
)

// LegalNameLookup resolves a person's legal name from prior correspondence
// headers. It returns empty when nothing is on file; an error means the
// lookup itself could not run.
type LegalNameLookup interface {
	FindLegalName(ctx context.Context, email string) (string, error)
}

// ResolveCandidates builds the ordered list of folder-name candidates for a
// subject. Order is a strict priority cascade, highest first, because the
// folder resolver stops at the first unambiguous match:
//
//  1. the classification hint (pen/display name used in scheduling),
//  2. the legal name from correspondence history, when it differs,
//  3. the first token of whichever of those is longest, which covers
//     folders named with a first name only.
//
// Candidates are trimmed, deduplicated case-insensitively preserving
// first-seen order, and empty strings are dropped. An empty return is a
// defined outcome: both folder lookups short-circuit to not-found.
func ResolveCandidates(ctx context.Context, hint string, rec *MeetingRecord, lookup LegalNameLookup, logger *slog.Logger) []string {
	if logger == nil {
		logger = slog.Default()
	}

	var candidates []string
	add := func(name string) {
		name = strings.TrimSpace(name)
		if name == "" {
			return
		}
		for _, c := range candidates {
			if strings.EqualFold(c, name) {
				return
			}
		}
		candidates = append(candidates, name)
	}

	add(hint)

	if lookup != nil && rec != nil && rec.SubjectEmail != "" {
		legal, err := lookup.FindLegalName(ctx, rec.SubjectEmail)
		if err != nil {
			// Best-effort capability: a lookup failure narrows the
			// cascade instead of failing the run.
			logger.Warn("legal name lookup failed",
				slog.String("email", rec.SubjectEmail),
				slog.String("error", err.Error()))
		} else {
			add(legal)
		}
	}

	if first := firstTokenOfLongest(candidates); first != "" {
		add(first)
	}

	return candidates
}

func firstTokenOfLongest(candidates []string) string {
	longest := ""
	for _, c := range candidates {
		if len(c) > len(longest) {
			longest = c
		}
	}
	fields := strings.Fields(longest)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
