package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

// fakeCompleter returns queued responses in order; an entry with err set
// fails that attempt.
type fakeCompleter struct {
	responses []completion
	calls     int
}

type completion struct {
	text string
	err  error
}

func (f *fakeCompleter) Complete(_ context.Context, _, _ string) (string, error) {
	if f.calls >= len(f.responses) {
		return "", fmt.Errorf("unexpected call %d", f.calls)
	}
	c := f.responses[f.calls]
	f.calls++
	return c.text, c.err
}

func newTestExtractor(c Completer) *Extractor {
	return NewExtractor(c, 1, time.Millisecond, nil)
}

func TestExtract_ValidResponse(t *testing.T) {
	fc := &fakeCompleter{responses: []completion{{text: `{
		"subject_name": "Jane Doe",
		"subject_email": "jane@example.com",
		"topic": "course production",
		"action_items": ["send outline", "record demo"],
		"date_fields": {"outline-delivery": "next Friday", "made-up-key": "x"}
	}`}}}

	rec, err := newTestExtractor(fc).Extract(context.Background(), "body", "Jane Doe")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if rec.SubjectName != "Jane Doe" {
		t.Errorf("SubjectName = %q", rec.SubjectName)
	}
	if rec.SubjectEmail != "jane@example.com" {
		t.Errorf("SubjectEmail = %q", rec.SubjectEmail)
	}
	if len(rec.ActionItems) != 2 || rec.ActionItems[0] != "send outline" || rec.ActionItems[1] != "record demo" {
		t.Errorf("ActionItems = %v, want ordered pair", rec.ActionItems)
	}
	if rec.DateFields[DateOutlineDelivery] != "next Friday" {
		t.Errorf("DateFields = %v", rec.DateFields)
	}
	if len(rec.DateFields) != 1 {
		t.Errorf("unknown date keys should be dropped, got %v", rec.DateFields)
	}
}

func TestExtract_FencedResponse(t *testing.T) {
	fc := &fakeCompleter{responses: []completion{{
		text: "Here you go:\n```json\n{\"subject_name\": \"Jane Doe\"}\n```\n",
	}}}
	rec, err := newTestExtractor(fc).Extract(context.Background(), "body", "")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if rec.SubjectName != "Jane Doe" {
		t.Errorf("SubjectName = %q", rec.SubjectName)
	}
}

func TestExtract_ProseResponse(t *testing.T) {
	fc := &fakeCompleter{responses: []completion{{text: "Sorry, I cannot process this."}}}
	_, err := newTestExtractor(fc).Extract(context.Background(), "body", "")

	var exErr *ExtractionError
	if !errors.As(err, &exErr) {
		t.Fatalf("err = %v, want ExtractionError", err)
	}
	if exErr.Reason != ReasonMalformedResponse {
		t.Errorf("reason = %s, want %s", exErr.Reason, ReasonMalformedResponse)
	}
}

func TestExtract_MissingSubjectName(t *testing.T) {
	fc := &fakeCompleter{responses: []completion{{text: `{"topic": "x", "subject_name": "  "}`}}}
	rec, err := newTestExtractor(fc).Extract(context.Background(), "body", "")
	if rec != nil {
		t.Fatal("no record may exist when validation fails")
	}

	var exErr *ExtractionError
	if !errors.As(err, &exErr) || exErr.Reason != ReasonMissingRequiredField {
		t.Fatalf("err = %v, want missing_required_field", err)
	}
}

func TestExtract_MalformedEmailDropped(t *testing.T) {
	fc := &fakeCompleter{responses: []completion{{
		text: `{"subject_name": "Jane Doe", "subject_email": "not-an-email"}`,
	}}}
	rec, err := newTestExtractor(fc).Extract(context.Background(), "body", "")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if rec.SubjectEmail != "" {
		t.Errorf("SubjectEmail = %q, want dropped", rec.SubjectEmail)
	}
}

func TestExtract_TransientRetriesOnce(t *testing.T) {
	fc := &fakeCompleter{responses: []completion{
		{err: fmt.Errorf("%w: 503", ErrServiceUnavailable)},
		{text: `{"subject_name": "Jane Doe"}`},
	}}
	rec, err := newTestExtractor(fc).Extract(context.Background(), "body", "")
	if err != nil {
		t.Fatalf("Extract after retry: %v", err)
	}
	if rec.SubjectName != "Jane Doe" {
		t.Errorf("SubjectName = %q", rec.SubjectName)
	}
	if fc.calls != 2 {
		t.Errorf("calls = %d, want 2", fc.calls)
	}
}

func TestExtract_TransientExhausted(t *testing.T) {
	fc := &fakeCompleter{responses: []completion{
		{err: fmt.Errorf("%w: 503", ErrServiceUnavailable)},
		{err: fmt.Errorf("%w: 503", ErrServiceUnavailable)},
	}}
	_, err := newTestExtractor(fc).Extract(context.Background(), "body", "")

	var exErr *ExtractionError
	if !errors.As(err, &exErr) || exErr.Reason != ReasonServiceUnavailable {
		t.Fatalf("err = %v, want service_unavailable", err)
	}
	if fc.calls != 2 {
		t.Errorf("calls = %d, want 2", fc.calls)
	}
}

func TestExtract_PermanentFailureNoRetry(t *testing.T) {
	fc := &fakeCompleter{responses: []completion{{err: errors.New("401 unauthorized")}}}
	_, err := newTestExtractor(fc).Extract(context.Background(), "body", "")

	var exErr *ExtractionError
	if !errors.As(err, &exErr) {
		t.Fatalf("err = %v, want ExtractionError", err)
	}
	if exErr.Reason != ReasonCompletionRejected {
		t.Errorf("reason = %s, want %s (permanent failures are not retryable)", exErr.Reason, ReasonCompletionRejected)
	}
	if fc.calls != 1 {
		t.Errorf("calls = %d, want 1 (no retry on permanent errors)", fc.calls)
	}
}
