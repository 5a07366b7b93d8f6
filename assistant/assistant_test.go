package assistant

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/marian-merour/prodmeeting-followup-email/config"
	"github.com/marian-merour/prodmeeting-followup-email/pipeline"
)

const notesSubject = `Notes: "21 Draw Course Production w/ Marian & Jane Doe"`

// fakeSource records side effects instead of talking to Gmail.
type fakeSource struct {
	messages  []pipeline.Message
	lastQuery string
	marked    []string
	drafts    []string
}

func (f *fakeSource) Search(_ context.Context, query string) ([]pipeline.Message, error) {
	f.lastQuery = query
	// Mimic the label filter: already-marked threads are not re-selected.
	var out []pipeline.Message
	for _, m := range f.messages {
		processed := false
		for _, id := range f.marked {
			if id == m.ThreadID {
				processed = true
			}
		}
		if !processed {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeSource) MarkProcessed(_ context.Context, threadID string) error {
	f.marked = append(f.marked, threadID)
	return nil
}

func (f *fakeSource) CreateDraft(_ context.Context, threadID, to, subject, body string) error {
	f.drafts = append(f.drafts, threadID)
	return nil
}

type scriptedCompleter struct {
	response string
	err      error
	calls    int
}

func (s *scriptedCompleter) Complete(context.Context, string, string) (string, error) {
	s.calls++
	return s.response, s.err
}

type staticBrowser struct{ children map[string][]pipeline.Entry }

func (b *staticBrowser) ListChildren(_ context.Context, id string) ([]pipeline.Entry, error) {
	return b.children[id], nil
}

func testConfig() *config.Config {
	cfg := config.NewDefaultConfig()
	cfg.Gmail.SearchQuery = "in:inbox"
	cfg.Gmail.ProcessedLabel = "followup-assistant/processed"
	cfg.Drive.BasePath = []string{"Artists"}
	return cfg
}

func newTestAssistant(t *testing.T, src *fakeSource, comp pipeline.Completer) *Assistant {
	t.Helper()
	cfg := testConfig()

	rule, err := pipeline.NewSubjectRule("notes", nil, `w/ .* & ([^"]+)`)
	if err != nil {
		t.Fatalf("rule: %v", err)
	}
	browser := &staticBrowser{children: map[string][]pipeline.Entry{
		"": {{ID: "artists", Name: "Artists", IsFolder: true}},
		"artists": {
			{ID: "f1", Name: "Jane_artist_edit", Link: "https://drive/f1", IsFolder: true},
		},
		"f1": {{ID: "d1", Name: "Course outline", Link: "https://drive/d1"}},
	}}
	folders, err := pipeline.NewFolderResolver(browser, cfg.Drive.BasePath, cfg.Drive.OutlinePattern, nil)
	if err != nil {
		t.Fatalf("folders: %v", err)
	}
	extractor := pipeline.NewExtractor(comp, 0, time.Millisecond, nil)
	pipe := pipeline.New(rule, extractor, pipeline.Capabilities{}, folders, nil)
	return New(cfg, rule, src, pipe, nil)
}

func TestCheckAndProcess_CompleteMarksAndDrafts(t *testing.T) {
	src := &fakeSource{messages: []pipeline.Message{
		{ID: "m1", ThreadID: "t1", From: "Marian <marian@example.com>", Subject: notesSubject, Body: "body"},
	}}
	comp := &scriptedCompleter{response: `{"subject_name": "Jane Doe"}`}
	a := newTestAssistant(t, src, comp)

	results, err := a.CheckAndProcess(context.Background(), false)
	if err != nil {
		t.Fatalf("CheckAndProcess: %v", err)
	}
	if len(results) != 1 || results[0].Status != pipeline.StatusComplete {
		t.Fatalf("results = %+v, want one complete", results)
	}
	if len(src.drafts) != 1 || src.drafts[0] != "t1" {
		t.Errorf("drafts = %v, want [t1]", src.drafts)
	}
	if len(src.marked) != 1 || src.marked[0] != "t1" {
		t.Errorf("marked = %v, want [t1]", src.marked)
	}
}

func TestCheckAndProcess_RejectedMarksWithoutDraft(t *testing.T) {
	src := &fakeSource{messages: []pipeline.Message{
		{ID: "m1", ThreadID: "t1", Subject: "Weekly update", Body: "body"},
	}}
	comp := &scriptedCompleter{}
	a := newTestAssistant(t, src, comp)

	results, err := a.CheckAndProcess(context.Background(), false)
	if err != nil {
		t.Fatalf("CheckAndProcess: %v", err)
	}
	if results[0].Status != pipeline.StatusRejected {
		t.Fatalf("status = %s, want rejected", results[0].Status)
	}
	if len(src.drafts) != 0 {
		t.Error("rejected messages must not produce drafts")
	}
	if len(src.marked) != 1 {
		t.Error("rejected messages are still marked processed")
	}
}

func TestCheckAndProcess_FailedLeavesUnmarked(t *testing.T) {
	src := &fakeSource{messages: []pipeline.Message{
		{ID: "m1", ThreadID: "t1", Subject: notesSubject, Body: "body"},
	}}
	comp := &scriptedCompleter{response: "Sorry, I cannot process this."}
	a := newTestAssistant(t, src, comp)

	results, err := a.CheckAndProcess(context.Background(), false)
	if err != nil {
		t.Fatalf("CheckAndProcess: %v", err)
	}
	if results[0].Status != pipeline.StatusFailed {
		t.Fatalf("status = %s, want failed", results[0].Status)
	}
	if len(src.marked) != 0 || len(src.drafts) != 0 {
		t.Error("failed messages must stay unlabeled with no draft")
	}
}

func TestCheckAndProcess_Idempotent(t *testing.T) {
	src := &fakeSource{messages: []pipeline.Message{
		{ID: "m1", ThreadID: "t1", Subject: notesSubject, Body: "body"},
	}}
	comp := &scriptedCompleter{response: `{"subject_name": "Jane Doe"}`}
	a := newTestAssistant(t, src, comp)

	if _, err := a.CheckAndProcess(context.Background(), false); err != nil {
		t.Fatalf("first pass: %v", err)
	}
	second, err := a.CheckAndProcess(context.Background(), false)
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if len(second) != 0 {
		t.Errorf("second pass results = %+v, want none (message already processed)", second)
	}
	if comp.calls != 1 {
		t.Errorf("completion calls = %d, want 1", comp.calls)
	}
}

func TestCheckAndProcess_DryRunHasNoSideEffects(t *testing.T) {
	src := &fakeSource{messages: []pipeline.Message{
		{ID: "m1", ThreadID: "t1", Subject: notesSubject, Body: "body"},
		{ID: "m2", ThreadID: "t2", Subject: "Weekly update", Body: "body"},
	}}
	comp := &scriptedCompleter{}
	a := newTestAssistant(t, src, comp)

	results, err := a.CheckAndProcess(context.Background(), true)
	if err != nil {
		t.Fatalf("CheckAndProcess: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("dry run matched %d, want 1", len(results))
	}
	if results[0].Status != "" {
		t.Errorf("status = %q, want none (nothing was processed)", results[0].Status)
	}
	if results[0].Hint != "Jane Doe" {
		t.Errorf("hint = %q, want the captured subject name", results[0].Hint)
	}
	if comp.calls != 0 {
		t.Error("dry run must not call the completion service")
	}
	if len(src.marked) != 0 || len(src.drafts) != 0 {
		t.Error("dry run must not emit side effects")
	}
}

func TestSearchQuery_ExcludesProcessedLabel(t *testing.T) {
	src := &fakeSource{}
	a := newTestAssistant(t, src, &scriptedCompleter{})
	if _, err := a.CheckAndProcess(context.Background(), false); err != nil {
		t.Fatalf("CheckAndProcess: %v", err)
	}
	want := fmt.Sprintf("in:inbox -label:%s", "followup-assistant-processed")
	if src.lastQuery != want {
		t.Errorf("query = %q, want %q", src.lastQuery, want)
	}
	if !strings.Contains(src.lastQuery, "-label:") {
		t.Error("query must exclude the processed label")
	}
}
