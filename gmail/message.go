package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/mail"
	"regexp"
	"strings"

	"google.golang.org/api/gmail/v1"

	"github.com/marian-merour/prodmeeting-followup-email/pipeline"
)

const searchPageSize = 25

// Search returns full messages matching the Gmail query, oldest first.
// The caller composes the query; excluding the processed label there is
// what makes reprocessing idempotent.
func (c *Client) Search(ctx context.Context, query string) ([]pipeline.Message, error) {
	list, err := c.srv.Users.Messages.List(user).
		Q(query).
		MaxResults(searchPageSize).
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("search messages: %w", err)
	}

	msgs := make([]pipeline.Message, 0, len(list.Messages))
	for i := len(list.Messages) - 1; i >= 0; i-- {
		full, err := c.srv.Users.Messages.Get(user, list.Messages[i].Id).
			Format("full").
			Context(ctx).Do()
		if err != nil {
			c.logger.Warn("skipping unreadable message",
				slog.String("message_id", list.Messages[i].Id),
				slog.String("error", err.Error()))
			continue
		}
		msgs = append(msgs, parseMessage(full))
	}
	return msgs, nil
}

func parseMessage(msg *gmail.Message) pipeline.Message {
	m := pipeline.Message{
		ID:       msg.Id,
		ThreadID: msg.ThreadId,
		LabelIDs: msg.LabelIds,
	}
	if msg.Payload == nil {
		return m
	}
	for _, header := range msg.Payload.Headers {
		switch header.Name {
		case "Subject":
			m.Subject = header.Value
		case "From":
			m.From = header.Value
		}
	}
	m.Body = plainTextBody(msg.Payload)
	return m
}

// plainTextBody walks the MIME tree depth-first for the first text/plain
// part and decodes its base64url payload.
func plainTextBody(payload *gmail.MessagePart) string {
	if payload.MimeType == "text/plain" && payload.Body != nil && payload.Body.Data != "" {
		data, err := base64.URLEncoding.DecodeString(payload.Body.Data)
		if err == nil {
			return string(data)
		}
	}
	for _, part := range payload.Parts {
		mt := strings.ToLower(part.MimeType)
		if strings.HasPrefix(mt, "text/") || strings.HasPrefix(mt, "multipart/") {
			if body := plainTextBody(part); body != "" {
				return body
			}
		}
	}
	return ""
}

// displayName extracts the display-name portion of a From header value,
// e.g. "Jane Janssen" from `Jane Janssen <jane@example.com>`. Empty when
// the header carries a bare address.
func displayName(from string) string {
	addr, err := mail.ParseAddress(from)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(addr.Name)
}

// looseAddrRE recovers an address from header values that net/mail
// refuses to parse, such as unquoted display names with punctuation.
var looseAddrRE = regexp.MustCompile(`[\w.+-]+@[\w.-]+\.\w+`)

// addressFromHeader picks the most plausible personal address out of a
// From or To header value. Entries whose display name or address contains
// hint win over the first entry; notification and calendar infrastructure
// addresses are skipped entirely.
func addressFromHeader(header, hint string) string {
	addrs, err := mail.ParseAddressList(header)
	if err != nil {
		if a := looseAddrRE.FindString(header); a != "" && !systemAddress(a) {
			return a
		}
		return ""
	}
	hint = strings.ToLower(strings.TrimSpace(hint))
	first := ""
	for _, a := range addrs {
		if systemAddress(a.Address) {
			continue
		}
		if hint != "" &&
			(strings.Contains(strings.ToLower(a.Name), hint) ||
				strings.Contains(strings.ToLower(a.Address), hint)) {
			return a.Address
		}
		if first == "" {
			first = a.Address
		}
	}
	return first
}

func systemAddress(addr string) bool {
	addr = strings.ToLower(addr)
	return strings.Contains(addr, "noreply") ||
		strings.Contains(addr, "no-reply") ||
		strings.Contains(addr, "google.com")
}

// localSplitRE splits an address local part into name fragments.
var localSplitRE = regexp.MustCompile(`[._0-9]+`)

// nameFromAddress derives a display name from the address local part:
// "john.smith@example.com" becomes "John Smith". Single-letter fragments
// are dropped as initials.
func nameFromAddress(email string) string {
	local, _, ok := strings.Cut(email, "@")
	if !ok || local == "" {
		return ""
	}
	var parts []string
	for _, p := range localSplitRE.Split(local, -1) {
		if len(p) > 1 {
			parts = append(parts, strings.ToUpper(p[:1])+strings.ToLower(p[1:]))
		}
	}
	return strings.Join(parts, " ")
}
