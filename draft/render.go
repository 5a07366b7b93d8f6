// Package draft renders a pipeline result into the follow-up email text a
// human reviews before sending. Failed lookups are rendered as explicit
// placeholders here, never fabricated by the pipeline itself.
package draft

import (
	"fmt"
	"strings"

	"github.com/marian-merour/prodmeeting-followup-email/pipeline"
)

// Placeholders substituted for unresolved lookups so a reviewer can see
// exactly what needs manual correction.
const (
	FolderPlaceholder  = "[upload folder not found - add link manually]"
	OutlinePlaceholder = "[outline document not found - add link manually]"
)

// Labels for the date fields in the rendered draft, in render order.
var dateFieldLabels = []struct {
	key   pipeline.DateField
	label string
}{
	{pipeline.DateOutlineDelivery, "Outline delivery"},
	{pipeline.DateDemoVideo, "Demo video"},
	{pipeline.DateBio, "Bio"},
	{pipeline.DateContractTimeline, "Contract timeline"},
	{pipeline.DateCheckInSchedule, "Check-in schedule"},
}

// Render produces the draft subject and body for a result. The result
// must carry a record, i.e. its status is complete or partial.
func Render(res pipeline.Result) (subject, body string, err error) {
	if res.Record == nil {
		return "", "", fmt.Errorf("render: result %s has no meeting record", res.RunID)
	}
	rec := res.Record

	subject = fmt.Sprintf("Follow-up: %s", rec.SubjectName)
	if rec.Topic != "" {
		subject = fmt.Sprintf("Follow-up: %s - %s", rec.SubjectName, rec.Topic)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", firstName(rec.SubjectName))
	fmt.Fprintf(&b, "Thank you for the great meeting")
	if rec.Topic != "" {
		fmt.Fprintf(&b, " about %s", rec.Topic)
	}
	b.WriteString("! Here is a summary of what we agreed on.\n\n")

	if len(rec.ActionItems) > 0 {
		b.WriteString("Action items:\n")
		for _, item := range rec.ActionItems {
			fmt.Fprintf(&b, "  - %s\n", item)
		}
		b.WriteString("\n")
	}

	var dates []string
	for _, df := range dateFieldLabels {
		if v, ok := rec.DateFields[df.key]; ok {
			dates = append(dates, fmt.Sprintf("  - %s: %s", df.label, v))
		}
	}
	if len(dates) > 0 {
		b.WriteString("Key dates:\n")
		b.WriteString(strings.Join(dates, "\n"))
		b.WriteString("\n\n")
	}

	fmt.Fprintf(&b, "Your upload folder: %s\n", linkOrPlaceholder(res.Folder, FolderPlaceholder))
	fmt.Fprintf(&b, "Course outline: %s\n\n", linkOrPlaceholder(res.Outline, OutlinePlaceholder))

	b.WriteString("Please let us know if anything above looks off.\n\nBest,\nThe production team\n")
	return subject, b.String(), nil
}

func linkOrPlaceholder(r pipeline.FolderLookupResult, placeholder string) string {
	if r.Found {
		return r.Link
	}
	return placeholder
}

func firstName(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return name
	}
	return fields[0]
}
