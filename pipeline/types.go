package pipeline

import (
	"time"

	"github.com/google/uuid"
)

// Status is the terminal outcome of processing one message.
type Status string

// Terminal pipeline statuses.
const (
	StatusComplete Status = "complete"
	StatusPartial  Status = "partial"
	StatusRejected Status = "rejected"
	StatusFailed   Status = "failed"
)

// Message is the read-only view of an inbound mail message consumed by the
// pipeline. It is built by the mail source and never mutated here.
type Message struct {
	ID       string
	ThreadID string
	From     string
	Subject  string
	Body     string
	LabelIDs []string
}

// ClassificationResult reports whether a subject line is a meeting-notes
// subject and, when it is, the identity hint captured from it.
type ClassificationResult struct {
	Matches bool
	Hint    string
}

// DateField is one of the fixed date-field keys an extraction may populate.
type DateField string

// Recognized date-field keys. Anything else returned by the model is dropped
// during validation.
const (
	DateOutlineDelivery  DateField = "outline-delivery"
	DateDemoVideo        DateField = "demo-video"
	DateBio              DateField = "bio"
	DateContractTimeline DateField = "contract-timeline"
	DateCheckInSchedule  DateField = "check-in-schedule"
)

// KnownDateFields lists every recognized date-field key.
var KnownDateFields = []DateField{
	DateOutlineDelivery,
	DateDemoVideo,
	DateBio,
	DateContractTimeline,
	DateCheckInSchedule,
}

// MeetingRecord is the validated structured output of notes extraction.
// It is constructed only by the Extractor, fully validated, and never
// partially built: either extraction succeeds and yields a complete record
// or it fails and no record exists. Treat as immutable after construction;
// enrichment rebuilds a copy rather than editing in place.
type MeetingRecord struct {
	SubjectName  string
	SubjectEmail string
	Topic        string
	ActionItems  []string
	DateFields   map[DateField]string
}

// WithSubjectEmail returns a copy of the record with the subject email set.
func (r *MeetingRecord) WithSubjectEmail(email string) *MeetingRecord {
	c := *r
	c.SubjectEmail = email
	return &c
}

// WithDateField returns a copy of the record with one date field set. The
// date-field map is copied so the source record stays untouched.
func (r *MeetingRecord) WithDateField(key DateField, value string) *MeetingRecord {
	c := *r
	c.DateFields = make(map[DateField]string, len(r.DateFields)+1)
	for k, v := range r.DateFields {
		c.DateFields[k] = v
	}
	c.DateFields[key] = value
	return &c
}

// Entry is one child of a storage folder as reported by a StorageBrowser.
type Entry struct {
	ID       string
	Name     string
	Link     string
	IsFolder bool
}

// FolderLookupResult is the outcome of one storage lookup. Found=false
// carries no link; the renderer substitutes a placeholder, never this core.
type FolderLookupResult struct {
	Found       bool
	Link        string
	MatchedName string
}

// Result is the immutable aggregate produced for one processed message.
// It is the only artifact the pipeline exposes to its consumers.
type Result struct {
	RunID       uuid.UUID
	MessageID   string
	ThreadID    string
	Hint        string
	Status      Status
	Record      *MeetingRecord
	Folder      FolderLookupResult
	Outline     FolderLookupResult
	Err         error
	CompletedAt time.Time
}
