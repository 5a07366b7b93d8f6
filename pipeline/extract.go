package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"
)

// Completer sends one extraction request to a language-model completion
// service and returns the raw text response. Implementations wrap
// transient failures with ErrServiceUnavailable.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

const extractionSystemPrompt = `You extract structured facts from meeting-notes emails about course production.
Return ONLY a JSON object, no prose and no markdown fencing, with this shape:
{
  "subject_name": "full name of the person the meeting is about (required)",
  "subject_email": "their email address if the notes contain one, else omit",
  "topic": "short topic of the meeting, else omit",
  "action_items": ["ordered list of action items, may be empty"],
  "date_fields": {
    "outline-delivery": "", "demo-video": "", "bio": "",
    "contract-timeline": "", "check-in-schedule": ""
  }
}
Include a date_fields key only when the notes state a date or timeframe for it.
Never invent values. If a field is not present in the notes, omit it.`

// emailRE is a loose shape check, not RFC validation. Model output that
// fails it is dropped rather than trusted.
var emailRE = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// rawRecord mirrors the JSON contract the model is instructed to return.
type rawRecord struct {
	SubjectName  string            `json:"subject_name"`
	SubjectEmail string            `json:"subject_email"`
	Topic        string            `json:"topic"`
	ActionItems  []string          `json:"action_items"`
	DateFields   map[string]string `json:"date_fields"`
}

// Extractor turns a notes-email body into a validated MeetingRecord via a
// single model completion. The model response is never trusted blindly:
// it is stripped, parsed, and structurally validated, and any violation
// yields an ExtractionError instead of a partial record.
type Extractor struct {
	completer  Completer
	retryCount int
	retryDelay time.Duration
	logger     *slog.Logger
}

// NewExtractor builds an Extractor. retryCount bounds how many extra
// attempts are made after a transient service failure; retryDelay is the
// pause before each retry.
func NewExtractor(c Completer, retryCount int, retryDelay time.Duration, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		completer:  c,
		retryCount: retryCount,
		retryDelay: retryDelay,
		logger:     logger,
	}
}

// Extract sends the body to the completion service and validates the
// response into a MeetingRecord. hint, when non-empty, is passed to the
// model as a disambiguation aid only.
func (e *Extractor) Extract(ctx context.Context, body, hint string) (*MeetingRecord, error) {
	user := body
	if hint != "" {
		user = fmt.Sprintf("The meeting is believed to be about %q.\n\n%s", hint, body)
	}

	resp, err := e.complete(ctx, user)
	if err != nil {
		return nil, err
	}

	payload := stripToJSON(resp)
	if payload == "" {
		return nil, &ExtractionError{Reason: ReasonMalformedResponse, Err: fmt.Errorf("no JSON object in response")}
	}

	var raw rawRecord
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, &ExtractionError{Reason: ReasonMalformedResponse, Err: err}
	}

	return e.validate(raw)
}

// complete performs the model call with a single bounded retry on
// transient failures. The call crosses a network boundary to a paid
// service; a bare transient failure would discard a message that might
// succeed moments later.
func (e *Extractor) complete(ctx context.Context, user string) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= e.retryCount; attempt++ {
		if attempt > 0 {
			e.logger.Warn("extraction retry",
				slog.Int("attempt", attempt),
				slog.String("error", lastErr.Error()))
			select {
			case <-time.After(e.retryDelay):
			case <-ctx.Done():
				return "", &ExtractionError{Reason: ReasonServiceUnavailable, Err: ctx.Err()}
			}
		}
		resp, err := e.completer.Complete(ctx, extractionSystemPrompt, user)
		if err == nil {
			return resp, nil
		}
		if !errors.Is(err, ErrServiceUnavailable) {
			return "", &ExtractionError{Reason: ReasonCompletionRejected, Err: err}
		}
		lastErr = err
	}
	return "", &ExtractionError{Reason: ReasonServiceUnavailable, Err: lastErr}
}

func (e *Extractor) validate(raw rawRecord) (*MeetingRecord, error) {
	name := strings.TrimSpace(raw.SubjectName)
	if name == "" {
		return nil, &ExtractionError{
			Reason: ReasonMissingRequiredField,
			Err:    fmt.Errorf("subject_name is empty"),
		}
	}

	email := strings.TrimSpace(raw.SubjectEmail)
	if email != "" && !emailRE.MatchString(email) {
		e.logger.Warn("dropping malformed subject_email from extraction",
			slog.String("subject_email", email))
		email = ""
	}

	items := make([]string, 0, len(raw.ActionItems))
	for _, it := range raw.ActionItems {
		if it = strings.TrimSpace(it); it != "" {
			items = append(items, it)
		}
	}

	var dates map[DateField]string
	for _, key := range KnownDateFields {
		v, ok := raw.DateFields[string(key)]
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		if dates == nil {
			dates = make(map[DateField]string)
		}
		dates[key] = strings.TrimSpace(v)
	}

	return &MeetingRecord{
		SubjectName:  name,
		SubjectEmail: email,
		Topic:        strings.TrimSpace(raw.Topic),
		ActionItems:  items,
		DateFields:   dates,
	}, nil
}

// stripToJSON trims prose and markdown fencing around the model's JSON
// object, returning the substring from the first '{' to the last '}'.
func stripToJSON(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}
