// Package sheets reads the production tracking spreadsheet for the
// contract-timeline enrichment: it locates the tab by grid ID, finds the
// column whose header names the subject, and formats the start and end
// date cells the way the follow-up drafts present them.
package sheets

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Client resolves contract timelines from one spreadsheet tab. It
// satisfies pipeline.ContractTimelineLookup and only ever reads.
type Client struct {
	srv           *sheets.Service
	spreadsheetID string
	gridID        int64
	nameRow       int
	startRow      int
	endRow        int
}

// NewClient builds a Client from an authenticated HTTP client (the same
// OAuth client the Gmail adapter uses; the Sheets read-only scope is part
// of the consent flow). Row numbers are 1-based, as shown in the sheet UI.
func NewClient(ctx context.Context, httpClient *http.Client, spreadsheetID string, gridID int64, nameRow, startRow, endRow int) (*Client, error) {
	srv, err := sheets.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &Client{
		srv:           srv,
		spreadsheetID: spreadsheetID,
		gridID:        gridID,
		nameRow:       nameRow,
		startRow:      startRow,
		endRow:        endRow,
	}, nil
}

// ContractTimeline returns the recorded timeline for name, formatted as
// "Jan 2 - Feb 23". Empty means the sheet has no column for the name or
// no dates in it.
func (c *Client) ContractTimeline(ctx context.Context, name string) (string, error) {
	title, err := c.tabTitle(ctx)
	if err != nil {
		return "", err
	}
	resp, err := c.srv.Spreadsheets.Values.Get(c.spreadsheetID, title).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("read sheet %q: %w", title, err)
	}
	return timelineFromGrid(stringGrid(resp.Values), name, c.nameRow, c.startRow, c.endRow), nil
}

// tabTitle maps the configured grid ID to the tab's current title so the
// values read survives tab renames.
func (c *Client) tabTitle(ctx context.Context) (string, error) {
	meta, err := c.srv.Spreadsheets.Get(c.spreadsheetID).
		Fields("sheets.properties").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("read spreadsheet metadata: %w", err)
	}
	for _, s := range meta.Sheets {
		if s.Properties != nil && s.Properties.SheetId == c.gridID {
			return s.Properties.Title, nil
		}
	}
	return "", fmt.Errorf("spreadsheet %s has no tab with grid id %d", c.spreadsheetID, c.gridID)
}

func stringGrid(values [][]interface{}) [][]string {
	rows := make([][]string, len(values))
	for i, row := range values {
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = fmt.Sprint(v)
		}
		rows[i] = cells
	}
	return rows
}

// timelineFromGrid finds the column whose header cell on nameRow contains
// name case-insensitively and joins the formatted start and end cells.
func timelineFromGrid(rows [][]string, name string, nameRow, startRow, endRow int) string {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" || nameRow-1 >= len(rows) {
		return ""
	}
	col := -1
	for i, cell := range rows[nameRow-1] {
		if strings.Contains(strings.ToLower(cell), needle) {
			col = i
			break
		}
	}
	if col < 0 {
		return ""
	}

	start := formatDate(cellAt(rows, startRow-1, col))
	end := formatDate(cellAt(rows, endRow-1, col))
	switch {
	case start != "" && end != "":
		return start + " - " + end
	case start != "":
		return start
	default:
		return end
	}
}

func cellAt(rows [][]string, row, col int) string {
	if row < 0 || row >= len(rows) || col >= len(rows[row]) {
		return ""
	}
	return rows[row][col]
}

// dateLayouts are tried in order; day-first wins for ambiguous cells
// because that is how the tracking sheet is filled in.
var dateLayouts = []string{"02/01/2006", "2006-01-02", "01/02/2006"}

// formatDate renders a date cell as "Jan 2". Values in none of the known
// layouts pass through unchanged rather than being dropped.
func formatDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("Jan 2")
		}
	}
	return s
}
