// Package assistant binds the mail source, the extraction pipeline, and
// the draft renderer into the check-and-process pass that the CLI runs
// once or on a daemon interval.
package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/marian-merour/prodmeeting-followup-email/config"
	"github.com/marian-merour/prodmeeting-followup-email/draft"
	"github.com/marian-merour/prodmeeting-followup-email/pipeline"
)

// MessageSource is the mail-side surface the assistant needs. Implemented
// by gmail.Client; faked in tests.
type MessageSource interface {
	Search(ctx context.Context, query string) ([]pipeline.Message, error)
	MarkProcessed(ctx context.Context, threadID string) error
	CreateDraft(ctx context.Context, threadID, to, subject, body string) error
}

// Assistant runs the recurring workflow: find candidate notes emails, run
// each through the pipeline, store a draft, and label the thread.
type Assistant struct {
	cfg    *config.Config
	rule   *pipeline.SubjectRule
	source MessageSource
	pipe   *pipeline.Pipeline
	logger *slog.Logger
}

// New assembles an Assistant.
func New(cfg *config.Config, rule *pipeline.SubjectRule, source MessageSource, pipe *pipeline.Pipeline, logger *slog.Logger) *Assistant {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assistant{cfg: cfg, rule: rule, source: source, pipe: pipe, logger: logger}
}

// CheckAndProcess performs one synchronous pass. Messages are processed
// one at a time; no side effect is emitted for a message until its full
// result exists. In dry-run mode it only classifies and reports, with no
// extraction calls, drafts, or labels.
func (a *Assistant) CheckAndProcess(ctx context.Context, dryRun bool) ([]pipeline.Result, error) {
	msgs, err := a.source.Search(ctx, a.searchQuery())
	if err != nil {
		return nil, fmt.Errorf("search inbox: %w", err)
	}
	a.logger.Info("inbox checked", slog.Int("candidates", len(msgs)))

	var results []pipeline.Result
	for _, msg := range msgs {
		if ctx.Err() != nil {
			return results, ctx.Err()
		}
		if dryRun {
			cls := pipeline.Classify(msg.Subject, a.rule)
			a.logger.Info("dry run",
				slog.String("subject", msg.Subject),
				slog.Bool("matches", cls.Matches),
				slog.String("hint", cls.Hint))
			if cls.Matches {
				// No status: nothing ran, so Summary renders these as
				// plain matches rather than pipeline outcomes.
				results = append(results, pipeline.Result{
					MessageID: msg.ID,
					ThreadID:  msg.ThreadID,
					Hint:      cls.Hint,
				})
			}
			continue
		}
		results = append(results, a.processOne(ctx, msg))
	}
	return results, nil
}

// processOne runs the pipeline for one message and applies its side
// effects. Only a failed run leaves the thread unlabeled so the next poll
// retries it; rejected, partial, and complete all mark the thread
// processed.
func (a *Assistant) processOne(ctx context.Context, msg pipeline.Message) pipeline.Result {
	res := a.pipe.Process(ctx, msg)

	switch res.Status {
	case pipeline.StatusFailed:
		return res
	case pipeline.StatusComplete, pipeline.StatusPartial:
		subject, body, err := draft.Render(res)
		if err != nil {
			a.logger.Error("render draft", slog.String("error", err.Error()))
			res.Status = pipeline.StatusFailed
			res.Err = err
			return res
		}
		if err := a.source.CreateDraft(ctx, msg.ThreadID, a.draftRecipient(res, msg), subject, body); err != nil {
			a.logger.Error("create draft", slog.String("error", err.Error()))
			res.Status = pipeline.StatusFailed
			res.Err = err
			return res
		}
	}

	if err := a.source.MarkProcessed(ctx, msg.ThreadID); err != nil {
		// The draft exists but the thread will be re-selected next poll.
		// Surface as failed so the operator sees the inconsistency.
		a.logger.Error("mark processed", slog.String("error", err.Error()))
		res.Status = pipeline.StatusFailed
		res.Err = err
	}
	return res
}

// searchQuery composes the inbox filter with the processed-label
// exclusion that makes reprocessing idempotent.
func (a *Assistant) searchQuery() string {
	return fmt.Sprintf("%s -label:%s", a.cfg.Gmail.SearchQuery, queryLabel(a.cfg.Gmail.ProcessedLabel))
}

// queryLabel rewrites a label name into Gmail's query form.
func queryLabel(name string) string {
	return strings.NewReplacer(" ", "-", "/", "-").Replace(name)
}

// draftRecipient prefers the extracted subject email and falls back to the
// notes sender.
func (a *Assistant) draftRecipient(res pipeline.Result, msg pipeline.Message) string {
	if res.Record != nil && res.Record.SubjectEmail != "" {
		return res.Record.SubjectEmail
	}
	if addr, err := mail.ParseAddress(msg.From); err == nil {
		return addr.Address
	}
	return strings.TrimSpace(msg.From)
}
