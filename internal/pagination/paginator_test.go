package pagination

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"feedwire/pkg/feedwire"
)

// sliceSource serves Source queries by filtering and re-sorting a copied
// slice on every call, deliberately sharing no code with Paginate.
type sliceSource struct {
	entries []feedwire.FeedEntry
	err     error
}

func (s *sliceSource) sorted() []feedwire.FeedEntry {
	cloned := append([]feedwire.FeedEntry(nil), s.entries...)
	sort.Slice(cloned, func(i, j int) bool {
		if !cloned[i].CreatedAt.Equal(cloned[j].CreatedAt) {
			return cloned[i].CreatedAt.After(cloned[j].CreatedAt)
		}
		return cloned[i].ID > cloned[j].ID
	})

	return cloned
}

func (s *sliceSource) NewestEntries(_ context.Context, _ int64, limit int) ([]feedwire.FeedEntry, error) {
	if s.err != nil {
		return nil, s.err
	}
	entries := s.sorted()
	if len(entries) > limit {
		entries = entries[:limit]
	}

	return entries, nil
}

func (s *sliceSource) EntriesBefore(_ context.Context, _ int64, cursor feedwire.Cursor, limit int) ([]feedwire.FeedEntry, error) {
	if s.err != nil {
		return nil, s.err
	}
	var older []feedwire.FeedEntry
	for _, entry := range s.sorted() {
		if entry.OlderThan(cursor) {
			older = append(older, entry)
		}
	}
	if len(older) > limit {
		older = older[:limit]
	}

	return older, nil
}

func (s *sliceSource) EntriesAfter(_ context.Context, _ int64, cursor feedwire.Cursor) ([]feedwire.FeedEntry, error) {
	if s.err != nil {
		return nil, s.err
	}
	var newer []feedwire.FeedEntry
	for _, entry := range s.sorted() {
		if entry.NewerThan(cursor) {
			newer = append(newer, entry)
		}
	}

	return newer, nil
}

// feedWindow builds count entries newest first. Entries at even ids share a
// timestamp with their successor to exercise tie-break ordering.
func feedWindow(count int) []feedwire.FeedEntry {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	entries := make([]feedwire.FeedEntry, 0, count)
	for id := count; id >= 1; id-- {
		createdAt := base.Add(time.Duration(id/2) * time.Minute)
		entries = append(entries, feedwire.FeedEntry{
			ID:          int64(id),
			OwnerUserID: 1,
			PostID:      int64(100 + id),
			CreatedAt:   createdAt,
		})
	}

	return entries
}

func entryIDs(entries []feedwire.FeedEntry) []int64 {
	ids := make([]int64, 0, len(entries))
	for _, entry := range entries {
		ids = append(ids, entry.ID)
	}

	return ids
}

func equalIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for idx := range a {
		if a[idx] != b[idx] {
			return false
		}
	}

	return true
}

func TestPaginate(t *testing.T) {
	window := feedWindow(9)
	cursorAt := func(id int) *feedwire.Cursor {
		for _, entry := range window {
			if entry.ID == int64(id) {
				cursor := feedwire.CursorFromEntry(entry)
				return &cursor
			}
		}
		t.Fatalf("no entry with id %d in window", id)
		return nil
	}

	tests := []struct {
		name        string
		request     Request
		wantIDs     []int64
		wantHasNext bool
		wantErr     error
	}{
		{
			name:        "first page",
			request:     Request{PageSize: 3},
			wantIDs:     []int64{9, 8, 7},
			wantHasNext: true,
		},
		{
			name:    "first page covering everything",
			request: Request{PageSize: 9},
			wantIDs: []int64{9, 8, 7, 6, 5, 4, 3, 2, 1},
		},
		{
			name:        "before cursor resumes mid sequence",
			request:     Request{Before: cursorAt(7), PageSize: 3},
			wantIDs:     []int64{6, 5, 4},
			wantHasNext: true,
		},
		{
			name:    "before cursor on tie break boundary",
			request: Request{Before: cursorAt(5), PageSize: 10},
			wantIDs: []int64{4, 3, 2, 1},
		},
		{
			name:    "before oldest entry is empty",
			request: Request{Before: cursorAt(1), PageSize: 3},
		},
		{
			name:    "after cursor returns everything newer uncapped",
			request: Request{After: cursorAt(4), PageSize: 2},
			wantIDs: []int64{9, 8, 7, 6, 5},
		},
		{
			name:    "after newest entry is empty",
			request: Request{After: cursorAt(9), PageSize: 2},
		},
		{
			name:    "after wins over before",
			request: Request{After: cursorAt(7), Before: cursorAt(5), PageSize: 2},
			wantIDs: []int64{9, 8},
		},
		{
			name:    "zero page size rejected",
			request: Request{PageSize: 0},
			wantErr: feedwire.ErrInvalidPageSize,
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			page, err := Paginate(window, testCase.request)
			if testCase.wantErr != nil {
				if !errors.Is(err, testCase.wantErr) {
					t.Fatalf("error = %v, want %v", err, testCase.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := entryIDs(page.Entries); !equalIDs(got, testCase.wantIDs) {
				t.Fatalf("entry ids = %v, want %v", got, testCase.wantIDs)
			}
			if page.HasNextPage != testCase.wantHasNext {
				t.Fatalf("has next page = %v, want %v", page.HasNextPage, testCase.wantHasNext)
			}
		})
	}
}

func TestPaginateAndFromSourceAgree(t *testing.T) {
	window := feedWindow(12)
	source := &sliceSource{entries: window}

	requests := []Request{
		{PageSize: 4},
		{PageSize: 12},
		{PageSize: 30},
		{Before: &feedwire.Cursor{CreatedAt: window[3].CreatedAt, TieBreakID: window[3].ID}, PageSize: 4},
		{Before: &feedwire.Cursor{CreatedAt: window[7].CreatedAt, TieBreakID: window[7].ID}, PageSize: 2},
		{After: &feedwire.Cursor{CreatedAt: window[5].CreatedAt, TieBreakID: window[5].ID}, PageSize: 3},
		{After: &feedwire.Cursor{CreatedAt: window[0].CreatedAt, TieBreakID: window[0].ID}, PageSize: 3},
	}

	for _, request := range requests {
		fromWindow, err := Paginate(window, request)
		if err != nil {
			t.Fatalf("paginate window failed: %v", err)
		}
		fromSource, err := FromSource(context.Background(), source, 1, request)
		if err != nil {
			t.Fatalf("paginate source failed: %v", err)
		}

		if !equalIDs(entryIDs(fromWindow.Entries), entryIDs(fromSource.Entries)) {
			t.Fatalf("request %+v: window ids %v != source ids %v",
				request, entryIDs(fromWindow.Entries), entryIDs(fromSource.Entries))
		}
		if fromWindow.HasNextPage != fromSource.HasNextPage {
			t.Fatalf("request %+v: window has next %v != source has next %v",
				request, fromWindow.HasNextPage, fromSource.HasNextPage)
		}
	}
}

func TestCursorPagingRoundTrip(t *testing.T) {
	window := feedWindow(17)

	var collected []feedwire.FeedEntry
	var cursor *feedwire.Cursor
	for {
		page, err := Paginate(window, Request{Before: cursor, PageSize: 4})
		if err != nil {
			t.Fatalf("paginate failed: %v", err)
		}
		collected = append(collected, page.Entries...)
		if !page.HasNextPage {
			break
		}
		last := feedwire.CursorFromEntry(page.Entries[len(page.Entries)-1])
		cursor = &last
	}

	if !equalIDs(entryIDs(collected), entryIDs(window)) {
		t.Fatalf("round trip ids = %v, want %v", entryIDs(collected), entryIDs(window))
	}
}

func TestFromSourcePropagatesQueryErrors(t *testing.T) {
	queryErr := errors.New("storage unavailable")
	source := &sliceSource{err: queryErr}

	_, err := FromSource(context.Background(), source, 1, Request{PageSize: 5})
	if !errors.Is(err, queryErr) {
		t.Fatalf("error = %v, want wrapped %v", err, queryErr)
	}
}
