package pipeline

import "testing"

func testRule(t *testing.T) *SubjectRule {
	t.Helper()
	rule, err := NewSubjectRule("notes", []string{"internal sync", "standup"}, `w/ .* & ([^"]+)`)
	if err != nil {
		t.Fatalf("compile rule: %v", err)
	}
	return rule
}

func TestClassify_NoRequiredToken(t *testing.T) {
	rule := testRule(t)
	subjects := []string{
		"",
		"Weekly update",
		`Minutes: "Course Production w/ Marian & Jane Doe"`,
	}
	for _, s := range subjects {
		if res := Classify(s, rule); res.Matches {
			t.Errorf("Classify(%q) matched, want reject", s)
		}
	}
}

func TestClassify_ExclusionWins(t *testing.T) {
	rule := testRule(t)
	s := `Notes: "Internal Sync w/ Marian & Jane Doe"`
	if res := Classify(s, rule); res.Matches {
		t.Errorf("Classify(%q) matched despite excluded term", s)
	}
}

func TestClassify_CapturesTrimmedHint(t *testing.T) {
	rule := testRule(t)
	s := `Notes: "21 Draw Course Production w/ Marian & Jane Doe"`
	res := Classify(s, rule)
	if !res.Matches {
		t.Fatalf("Classify(%q) rejected, want match", s)
	}
	if res.Hint != "Jane Doe" {
		t.Errorf("hint = %q, want %q", res.Hint, "Jane Doe")
	}
}

func TestClassify_CaseInsensitive(t *testing.T) {
	rule := testRule(t)
	res := Classify(`NOTES: "Production W/ Marian & Jane Doe"`, rule)
	if !res.Matches {
		t.Fatal("uppercase subject should still match")
	}
	if res.Hint != "Jane Doe" {
		t.Errorf("hint = %q, want %q", res.Hint, "Jane Doe")
	}
}

func TestClassify_EmptyHintRejects(t *testing.T) {
	rule, err := NewSubjectRule("notes", nil, `notes:\s*(.*)`)
	if err != nil {
		t.Fatalf("compile rule: %v", err)
	}
	for _, s := range []string{"Notes:", "Notes:    "} {
		if res := Classify(s, rule); res.Matches {
			t.Errorf("Classify(%q) matched with empty hint", s)
		}
	}
}

func TestNewSubjectRule_Invalid(t *testing.T) {
	if _, err := NewSubjectRule("", nil, "(x)"); err == nil {
		t.Error("empty required token should fail")
	}
	if _, err := NewSubjectRule("notes", nil, "(unclosed"); err == nil {
		t.Error("bad pattern should fail")
	}
	if _, err := NewSubjectRule("notes", nil, "no group"); err == nil {
		t.Error("pattern without capture group should fail")
	}
}
