package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// StorageBrowser lists the children of one folder in the storage
// hierarchy. folderID "" means the hierarchy root. It is read-only.
type StorageBrowser interface {
	ListChildren(ctx context.Context, folderID string) ([]Entry, error)
}

// FolderResolver locates a subject's personal upload folder under a fixed
// base path, and the outline document nested inside it. Candidate names
// are tried strictly in order; a candidate matching more than one folder
// is skipped rather than guessed among, so name collisions never pick the
// wrong person's folder.
type FolderResolver struct {
	browser        StorageBrowser
	basePath       []string
	outlinePattern *regexp.Regexp
	logger         *slog.Logger
}

// NewFolderResolver builds a resolver. basePath is the ordered folder
// names from the hierarchy root down to the parent of all personal
// folders; outlinePattern matches the outline document's name,
// case-insensitively.
func NewFolderResolver(b StorageBrowser, basePath []string, outlinePattern string, logger *slog.Logger) (*FolderResolver, error) {
	re, err := regexp.Compile("(?i)" + outlinePattern)
	if err != nil {
		return nil, fmt.Errorf("folder resolver: compile outline pattern: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FolderResolver{
		browser:        b,
		basePath:       basePath,
		outlinePattern: re,
		logger:         logger,
	}, nil
}

// Resolve performs both lookups. With no candidates it returns two
// not-found results without touching the storage backend. A non-nil error
// is always a *StorageIOError and means the backend failed, which is
// distinct from a clean not-found.
func (r *FolderResolver) Resolve(ctx context.Context, candidates []string) (folder, outline FolderLookupResult, err error) {
	if len(candidates) == 0 {
		return FolderLookupResult{}, FolderLookupResult{}, nil
	}

	baseID, err := r.walkBasePath(ctx)
	if err != nil {
		return FolderLookupResult{}, FolderLookupResult{}, err
	}
	if baseID == "" {
		// Configured base path absent from the hierarchy: clean not-found.
		return FolderLookupResult{}, FolderLookupResult{}, nil
	}

	entries, err := r.browser.ListChildren(ctx, baseID)
	if err != nil {
		return FolderLookupResult{}, FolderLookupResult{}, &StorageIOError{Op: "list base folder", Err: err}
	}

	matched, folder := r.matchCandidate(entries, candidates)
	if !folder.Found {
		return folder, FolderLookupResult{}, nil
	}

	outline, err = r.findOutline(ctx, matched)
	if err != nil {
		return folder, FolderLookupResult{}, err
	}
	return folder, outline, nil
}

// walkBasePath descends the configured path segments from the root,
// matching each segment name case-insensitively. Returns "" when a
// segment is missing.
func (r *FolderResolver) walkBasePath(ctx context.Context) (string, error) {
	id := ""
	for _, segment := range r.basePath {
		entries, err := r.browser.ListChildren(ctx, id)
		if err != nil {
			return "", &StorageIOError{Op: fmt.Sprintf("list %q", segment), Err: err}
		}
		next := ""
		for _, e := range entries {
			if e.IsFolder && strings.EqualFold(e.Name, segment) {
				next = e.ID
				break
			}
		}
		if next == "" {
			r.logger.Warn("base path segment not found", slog.String("segment", segment))
			return "", nil
		}
		id = next
	}
	return id, nil
}

// matchCandidate walks the candidate cascade over the base folder's
// children: first candidate with exactly one case-insensitive substring
// match wins. Ambiguous candidates are skipped, not guessed among.
func (r *FolderResolver) matchCandidate(entries []Entry, candidates []string) (Entry, FolderLookupResult) {
	for _, cand := range candidates {
		needle := strings.ToLower(strings.TrimSpace(cand))
		if needle == "" {
			continue
		}
		var hits []Entry
		for _, e := range entries {
			if e.IsFolder && strings.Contains(strings.ToLower(e.Name), needle) {
				hits = append(hits, e)
			}
		}
		switch len(hits) {
		case 0:
			continue
		case 1:
			return hits[0], FolderLookupResult{Found: true, Link: hits[0].Link, MatchedName: cand}
		default:
			r.logger.Warn("candidate matched multiple folders, skipping",
				slog.String("candidate", cand),
				slog.Int("matches", len(hits)))
		}
	}
	return Entry{}, FolderLookupResult{}
}

// findOutline searches inside the matched personal folder only. Multiple
// matches degrade to not-found the same way ambiguous candidates do.
func (r *FolderResolver) findOutline(ctx context.Context, folder Entry) (FolderLookupResult, error) {
	entries, err := r.browser.ListChildren(ctx, folder.ID)
	if err != nil {
		return FolderLookupResult{}, &StorageIOError{Op: "list personal folder", Err: err}
	}
	var hits []Entry
	for _, e := range entries {
		if !e.IsFolder && r.outlinePattern.MatchString(e.Name) {
			hits = append(hits, e)
		}
	}
	if len(hits) != 1 {
		if len(hits) > 1 {
			r.logger.Warn("outline pattern matched multiple documents",
				slog.String("folder", folder.Name),
				slog.Int("matches", len(hits)))
		}
		return FolderLookupResult{}, nil
	}
	return FolderLookupResult{Found: true, Link: hits[0].Link, MatchedName: hits[0].Name}, nil
}
