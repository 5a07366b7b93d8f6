package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Pipeline sequences classification, extraction, identity resolution, and
// folder resolution for one message at a time and produces an immutable
// Result. It holds no mutable state between runs; concurrent use requires
// nothing beyond independent contexts because every component is a pure
// function of its inputs plus read-only external capabilities.
type Pipeline struct {
	rule      *SubjectRule
	extractor *Extractor
	caps      Capabilities
	folders   *FolderResolver
	logger    *slog.Logger
}

// New assembles a pipeline from its components. Any Capabilities field
// may be nil when the corresponding history is not available.
func New(rule *SubjectRule, extractor *Extractor, caps Capabilities, folders *FolderResolver, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		rule:      rule,
		extractor: extractor,
		caps:      caps,
		folders:   folders,
		logger:    logger,
	}
}

// Process runs one message through the full pipeline. It never emits
// external side effects itself; callers act on the returned Result. Only
// StatusFailed should suppress the caller's mark-processed step so the
// message is re-selected on a later poll.
func (p *Pipeline) Process(ctx context.Context, msg Message) Result {
	res := Result{
		RunID:     uuid.New(),
		MessageID: msg.ID,
		ThreadID:  msg.ThreadID,
	}
	log := p.logger.With(
		slog.String("run_id", res.RunID.String()),
		slog.String("message_id", msg.ID))

	cls := Classify(msg.Subject, p.rule)
	if !cls.Matches {
		log.Debug("subject rejected", slog.String("subject", msg.Subject))
		return p.finish(res, StatusRejected, nil)
	}
	res.Hint = cls.Hint
	log.Info("subject classified", slog.String("hint", cls.Hint))

	rec, err := p.extractor.Extract(ctx, msg.Body, cls.Hint)
	if err != nil {
		log.Error("extraction failed", slog.String("error", err.Error()))
		return p.finish(res, StatusFailed, err)
	}
	rec = p.enrichEmail(ctx, rec, cls.Hint, msg.Body)
	rec = p.enrichTimeline(ctx, rec)
	res.Record = rec
	log.Info("notes extracted",
		slog.String("subject_name", rec.SubjectName),
		slog.Int("action_items", len(rec.ActionItems)))

	candidates := ResolveCandidates(ctx, cls.Hint, rec, p.caps.LegalName, p.logger)
	log.Info("candidates resolved", slog.Any("candidates", candidates))

	folder, outline, err := p.folders.Resolve(ctx, candidates)
	if err != nil {
		log.Error("folder resolution failed", slog.String("error", err.Error()))
		return p.finish(res, StatusFailed, err)
	}
	res.Folder = folder
	res.Outline = outline

	status := StatusPartial
	if folder.Found && outline.Found {
		status = StatusComplete
	}
	log.Info("pipeline finished",
		slog.String("status", string(status)),
		slog.Bool("folder_found", folder.Found),
		slog.Bool("outline_found", outline.Found))
	return p.finish(res, status, nil)
}

func (p *Pipeline) finish(res Result, status Status, err error) Result {
	res.Status = status
	res.Err = err
	res.CompletedAt = time.Now().UTC()
	return res
}
