package pagination

import (
	"context"
	"fmt"

	"feedwire/pkg/feedwire"
)

// Request describes one page of a newest-first feed sequence.
//
// After and Before are mutually exclusive in intent; when both are set,
// After wins, because "everything since my last look" is the refresh path
// and must not be silently capped to a page.
type Request struct {
	// After requests every entry strictly newer than the cursor, uncapped.
	After *feedwire.Cursor
	// Before requests up to PageSize entries strictly older than the cursor.
	Before *feedwire.Cursor
	// PageSize caps Before and first-page results. Ignored in After mode.
	PageSize int
}

// Validate checks the request is well formed.
func (r Request) Validate() error {
	if r.After == nil && r.PageSize <= 0 {
		return fmt.Errorf("validate pagination request: page size %d: %w", r.PageSize, feedwire.ErrInvalidPageSize)
	}

	return nil
}

// Source is the durable query surface FromSource pages over. The durable
// entry store satisfies it directly.
type Source interface {
	NewestEntries(ctx context.Context, ownerID int64, limit int) ([]feedwire.FeedEntry, error)
	EntriesBefore(ctx context.Context, ownerID int64, cursor feedwire.Cursor, limit int) ([]feedwire.FeedEntry, error)
	EntriesAfter(ctx context.Context, ownerID int64, cursor feedwire.Cursor) ([]feedwire.FeedEntry, error)
}

// Paginate pages over an in-memory window already ordered newest first.
func Paginate(window []feedwire.FeedEntry, req Request) (feedwire.Page, error) {
	if err := req.Validate(); err != nil {
		return feedwire.Page{}, err
	}

	if req.After != nil {
		return feedwire.Page{Entries: entriesNewerThan(window, *req.After)}, nil
	}

	start := 0
	if req.Before != nil {
		offset, found := firstOlderThan(window, *req.Before)
		if !found {
			return feedwire.Page{}, nil
		}
		start = offset
	}

	end := start + req.PageSize
	if end > len(window) {
		end = len(window)
	}

	return feedwire.Page{
		Entries:     append([]feedwire.FeedEntry(nil), window[start:end]...),
		HasNextPage: len(window) > start+req.PageSize,
	}, nil
}

// FromSource pages over the durable store with the same semantics as
// Paginate. HasNextPage is computed by over-fetching one row past the page.
func FromSource(ctx context.Context, source Source, ownerID int64, req Request) (feedwire.Page, error) {
	if err := req.Validate(); err != nil {
		return feedwire.Page{}, err
	}

	if req.After != nil {
		entries, err := source.EntriesAfter(ctx, ownerID, *req.After)
		if err != nil {
			return feedwire.Page{}, fmt.Errorf("paginate owner %d after cursor: %w", ownerID, err)
		}

		return feedwire.Page{Entries: entries}, nil
	}

	var entries []feedwire.FeedEntry
	var err error
	probe := req.PageSize + 1
	if req.Before != nil {
		entries, err = source.EntriesBefore(ctx, ownerID, *req.Before, probe)
	} else {
		entries, err = source.NewestEntries(ctx, ownerID, probe)
	}
	if err != nil {
		return feedwire.Page{}, fmt.Errorf("paginate owner %d: %w", ownerID, err)
	}

	hasNext := len(entries) > req.PageSize
	if hasNext {
		entries = entries[:req.PageSize]
	}

	return feedwire.Page{Entries: entries, HasNextPage: hasNext}, nil
}

// entriesNewerThan collects the window prefix strictly newer than the
// cursor. The window is newest first, so collection stops at the first entry
// at or past the cursor position.
func entriesNewerThan(window []feedwire.FeedEntry, cursor feedwire.Cursor) []feedwire.FeedEntry {
	var newer []feedwire.FeedEntry
	for _, entry := range window {
		if !entry.NewerThan(cursor) {
			break
		}
		newer = append(newer, entry)
	}

	return newer
}

// firstOlderThan locates the first window index strictly older than the
// cursor. found is false when no such entry exists.
func firstOlderThan(window []feedwire.FeedEntry, cursor feedwire.Cursor) (int, bool) {
	for idx, entry := range window {
		if entry.OlderThan(cursor) {
			return idx, true
		}
	}

	return 0, false
}
