// Package gmail adapts the Gmail API to the pipeline's message-source,
// legal-name-lookup, and address-lookup interfaces: filtered search,
// message parsing, the processed label, correspondence header searches,
// and draft creation.
package gmail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

const user = "me"

// Scopes requested during the OAuth consent flow. Drive and Sheets are
// read-only; the assistant never writes to the storage hierarchy or the
// tracking spreadsheet.
var Scopes = []string{
	gmail.GmailModifyScope,
	"https://www.googleapis.com/auth/drive.readonly",
	"https://www.googleapis.com/auth/spreadsheets.readonly",
}

// Client wraps the Gmail service for the assistant's operations.
type Client struct {
	srv    *gmail.Service
	logger *slog.Logger

	processedLabelID string
}

// NewClient builds a Gmail client from an authenticated HTTP client
// obtained via OAuthHTTPClient.
func NewClient(ctx context.Context, httpClient *http.Client, logger *slog.Logger) (*Client, error) {
	srv, err := gmail.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{srv: srv, logger: logger}, nil
}

// OAuthHTTPClient returns an HTTP client authenticated with the token at
// tokenFile. It fails rather than prompting when no token is stored; run
// the setup-auth flow first.
func OAuthHTTPClient(ctx context.Context, credentialsFile, tokenFile string) (*http.Client, error) {
	cfg, err := oauthConfig(credentialsFile)
	if err != nil {
		return nil, err
	}
	tok, err := tokenFromFile(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("no stored token (run with --setup-auth first): %w", err)
	}
	return cfg.Client(ctx, tok), nil
}

// SetupAuth runs the interactive OAuth consent flow and persists the
// resulting token to tokenFile.
func SetupAuth(ctx context.Context, credentialsFile, tokenFile string) error {
	cfg, err := oauthConfig(credentialsFile)
	if err != nil {
		return err
	}
	authURL := cfg.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	fmt.Printf("Go to the following link in your browser then type the authorization code:\n%v\n", authURL)

	var authCode string
	if _, err := fmt.Scan(&authCode); err != nil {
		return fmt.Errorf("read authorization code: %w", err)
	}
	tok, err := cfg.Exchange(ctx, authCode)
	if err != nil {
		return fmt.Errorf("exchange authorization code: %w", err)
	}
	return saveToken(tokenFile, tok)
}

func oauthConfig(credentialsFile string) (*oauth2.Config, error) {
	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read client secret file: %w", err)
	}
	cfg, err := google.ConfigFromJSON(b, Scopes...)
	if err != nil {
		return nil, fmt.Errorf("parse client secret file: %w", err)
	}
	return cfg, nil
}

func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, err
	}
	return tok, nil
}

func saveToken(path string, token *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("save oauth token: %w", err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(token)
}

// EnsureLabel resolves the named label's ID, creating the label when it
// does not exist yet, and remembers it for MarkProcessed.
func (c *Client) EnsureLabel(ctx context.Context, name string) error {
	list, err := c.srv.Users.Labels.List(user).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("list labels: %w", err)
	}
	for _, l := range list.Labels {
		if l.Name == name {
			c.processedLabelID = l.Id
			return nil
		}
	}
	created, err := c.srv.Users.Labels.Create(user, &gmail.Label{
		Name:                  name,
		LabelListVisibility:   "labelShow",
		MessageListVisibility: "show",
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("create label %q: %w", name, err)
	}
	c.logger.Info("created processed label", slog.String("label", name))
	c.processedLabelID = created.Id
	return nil
}

// MarkProcessed applies the processed label to a thread so the search
// filter never selects it again.
func (c *Client) MarkProcessed(ctx context.Context, threadID string) error {
	if c.processedLabelID == "" {
		return fmt.Errorf("processed label not resolved (call EnsureLabel first)")
	}
	_, err := c.srv.Users.Threads.Modify(user, threadID, &gmail.ModifyThreadRequest{
		AddLabelIds: []string{c.processedLabelID},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("label thread %s: %w", threadID, err)
	}
	return nil
}

// FindLegalName resolves a legal name from historical correspondence: the
// display name on the most recent From header for the address, falling
// back to a name derived from the address local part, which is often
// "first.last" for personal accounts. Empty means nothing on file.
func (c *Client) FindLegalName(ctx context.Context, email string) (string, error) {
	list, err := c.srv.Users.Messages.List(user).
		Q(fmt.Sprintf("from:%s", email)).
		MaxResults(searchCorrespondenceSize).
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("search correspondence for %s: %w", email, err)
	}
	for _, m := range list.Messages {
		value, ok := c.messageHeader(ctx, m.Id, "From")
		if !ok {
			continue
		}
		if name := displayName(value); name != "" {
			return name, nil
		}
	}
	return nameFromAddress(email), nil
}

// FindAddress searches correspondence for a person's email address by
// name: first messages they sent, then messages sent to them. Empty means
// nothing matched.
func (c *Client) FindAddress(ctx context.Context, name string) (string, error) {
	addr, err := c.headerAddress(ctx, fmt.Sprintf("from:%s", name), "From", name)
	if err != nil {
		return "", err
	}
	if addr != "" {
		return addr, nil
	}
	return c.headerAddress(ctx, fmt.Sprintf("in:sent to:%s", name), "To", name)
}

const searchCorrespondenceSize = 5

// headerAddress scans the named header of the most recent messages
// matching query for a plausible personal address.
func (c *Client) headerAddress(ctx context.Context, query, header, hint string) (string, error) {
	list, err := c.srv.Users.Messages.List(user).
		Q(query).
		MaxResults(searchCorrespondenceSize).
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("search %q: %w", query, err)
	}
	for _, m := range list.Messages {
		value, ok := c.messageHeader(ctx, m.Id, header)
		if !ok {
			continue
		}
		if addr := addressFromHeader(value, hint); addr != "" {
			return addr, nil
		}
	}
	return "", nil
}

// messageHeader fetches one header value via a metadata-only get.
func (c *Client) messageHeader(ctx context.Context, messageID, header string) (string, bool) {
	msg, err := c.srv.Users.Messages.Get(user, messageID).
		Format("metadata").
		MetadataHeaders(header).
		Context(ctx).Do()
	if err != nil {
		c.logger.Warn("skipping unreadable correspondence message",
			slog.String("message_id", messageID),
			slog.String("error", err.Error()))
		return "", false
	}
	if msg.Payload == nil {
		return "", false
	}
	for _, h := range msg.Payload.Headers {
		if h.Name == header {
			return h.Value, true
		}
	}
	return "", false
}

// CreateDraft stores a follow-up draft on the thread. Drafts are never
// sent by the assistant; a human reviews and sends.
func (c *Client) CreateDraft(ctx context.Context, threadID, to, subject, body string) error {
	msg := fmt.Sprintf("To: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=\"UTF-8\"\r\n\r\n%s", to, subject, body)
	_, err := c.srv.Users.Drafts.Create(user, &gmail.Draft{
		Message: &gmail.Message{
			ThreadId: threadID,
			Raw:      base64.URLEncoding.EncodeToString([]byte(msg)),
		},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("create draft on thread %s: %w", threadID, err)
	}
	return nil
}
