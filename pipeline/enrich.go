package pipeline

import (
	"context"
	"log/slog"
	"regexp"
)

// AddressLookup searches correspondence history for a person's email
// address given their name. Empty means nothing matched; an error means
// the lookup itself could not run.
type AddressLookup interface {
	FindAddress(ctx context.Context, name string) (string, error)
}

// ContractTimelineLookup reads a person's contract timeline from the
// production tracking sheet. Empty means no timeline is recorded.
type ContractTimelineLookup interface {
	ContractTimeline(ctx context.Context, name string) (string, error)
}

// Capabilities are the optional read-only external lookups the pipeline
// consults to enrich an extracted record. Any field may be nil. Every
// enrichment is best-effort: a lookup failure narrows the result but
// never fails the run.
type Capabilities struct {
	LegalName LegalNameLookup
	Address   AddressLookup
	Timeline  ContractTimelineLookup
}

// invitedRE pulls a best-effort email address out of an "Invited:" line in
// the notes body when the extraction did not yield one.
var invitedRE = regexp.MustCompile(`(?im)^\s*invited:\s*.*?([^\s<>,;:]+@[^\s<>,;:]+\.[A-Za-z]{2,})`)

// enrichEmail fills a missing subject email, first from an "Invited:"
// line in the body, then from a correspondence search by the hint name.
// The record is rebuilt, never edited in place.
func (p *Pipeline) enrichEmail(ctx context.Context, rec *MeetingRecord, hint, body string) *MeetingRecord {
	if rec.SubjectEmail != "" {
		return rec
	}
	if m := invitedRE.FindStringSubmatch(body); len(m) == 2 {
		p.logger.Debug("subject email derived from invited line", slog.String("email", m[1]))
		return rec.WithSubjectEmail(m[1])
	}
	if p.caps.Address == nil || hint == "" {
		return rec
	}
	addr, err := p.caps.Address.FindAddress(ctx, hint)
	if err != nil {
		p.logger.Warn("address lookup failed",
			slog.String("hint", hint),
			slog.String("error", err.Error()))
		return rec
	}
	if addr == "" || !emailRE.MatchString(addr) {
		return rec
	}
	p.logger.Debug("subject email found in correspondence", slog.String("email", addr))
	return rec.WithSubjectEmail(addr)
}

// enrichTimeline fills the contract-timeline date field from the tracking
// sheet when the notes did not state one.
func (p *Pipeline) enrichTimeline(ctx context.Context, rec *MeetingRecord) *MeetingRecord {
	if p.caps.Timeline == nil || rec.DateFields[DateContractTimeline] != "" {
		return rec
	}
	timeline, err := p.caps.Timeline.ContractTimeline(ctx, rec.SubjectName)
	if err != nil {
		p.logger.Warn("contract timeline lookup failed",
			slog.String("subject_name", rec.SubjectName),
			slog.String("error", err.Error()))
		return rec
	}
	if timeline == "" {
		return rec
	}
	p.logger.Debug("contract timeline read from tracking sheet", slog.String("timeline", timeline))
	return rec.WithDateField(DateContractTimeline, timeline)
}
