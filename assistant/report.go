package assistant

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/marian-merour/prodmeeting-followup-email/pipeline"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63")).MarginBottom(1)
	nameStyle  = lipgloss.NewStyle().Bold(true)
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "240", Dark: "244"})
	matchStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))

	statusStyles = map[pipeline.Status]lipgloss.Style{
		pipeline.StatusComplete: lipgloss.NewStyle().Foreground(lipgloss.Color("28")).Bold(true),
		pipeline.StatusPartial:  lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true),
		pipeline.StatusRejected: lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "245", Dark: "238"}),
		pipeline.StatusFailed:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
	}
)

// Summary renders a terminal report for one pass, one line per result.
func Summary(results []pipeline.Result) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("Processed %d message(s)", len(results))))
	b.WriteString("\n")

	for _, res := range results {
		if res.Status == "" {
			// Dry-run match: classified only, no pipeline outcome.
			b.WriteString(fmt.Sprintf("%-28s %s\n",
				matchStyle.Render("MATCH"), nameStyle.Render(res.Hint)))
			continue
		}
		status := statusStyles[res.Status].Render(strings.ToUpper(string(res.Status)))
		line := fmt.Sprintf("%-28s", status)
		if res.Record != nil {
			line += " " + nameStyle.Render(res.Record.SubjectName)
			line += dimStyle.Render(fmt.Sprintf("  folder:%s outline:%s",
				foundMark(res.Folder), foundMark(res.Outline)))
		} else if res.Err != nil {
			line += " " + dimStyle.Render(res.Err.Error())
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

func foundMark(r pipeline.FolderLookupResult) string {
	if r.Found {
		return "ok"
	}
	return "missing"
}
