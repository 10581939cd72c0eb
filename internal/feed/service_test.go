package feed

import (
	"context"
	"errors"
	"testing"
	"time"

	"feedwire/internal/listcache"
	"feedwire/internal/memstore"
	"feedwire/internal/pagination"
	"feedwire/pkg/feedwire"
)

// flakyCache wraps the in-memory cache and fails on demand.
type flakyCache struct {
	*listcache.Memory
	getErr error
}

func (f *flakyCache) Get(ctx context.Context, ownerID int64) ([]feedwire.FeedEntry, bool, error) {
	if f.getErr != nil {
		return nil, false, f.getErr
	}

	return f.Memory.Get(ctx, ownerID)
}

// seedEntries inserts count entries for owner, one second apart, and
// returns them newest first.
func seedEntries(t *testing.T, store *memstore.Store, ownerID int64, count int) []feedwire.FeedEntry {
	t.Helper()

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	batch := make([]feedwire.FeedEntry, 0, count)
	for seq := 0; seq < count; seq++ {
		batch = append(batch, feedwire.FeedEntry{
			OwnerUserID: ownerID,
			PostID:      int64(1000 + seq),
			CreatedAt:   base.Add(time.Duration(seq) * time.Second),
		})
	}
	if _, err := store.BulkInsert(context.Background(), batch); err != nil {
		t.Fatalf("seed entries failed: %v", err)
	}

	newest, err := store.NewestEntries(context.Background(), ownerID, count)
	if err != nil {
		t.Fatalf("read seeded entries failed: %v", err)
	}

	return newest
}

func postIDs(entries []feedwire.FeedEntry) []int64 {
	ids := make([]int64, 0, len(entries))
	for _, entry := range entries {
		ids = append(ids, entry.PostID)
	}

	return ids
}

func TestListFeedSaturatedWindowFallsBackToDurable(t *testing.T) {
	t.Parallel()

	// Cap 10, 15 entries: the cached window holds the 10 newest and the
	// page ending at its edge must come from the durable store with a true
	// next-page signal, continuing into entries 11..15.
	store := memstore.NewStore()
	cache := listcache.NewMemory(listcache.WithMemoryLimit(10))
	seeded := seedEntries(t, store, 1, 15)
	service := New(cache, store, nil, WithCacheLimit(10))
	ctx := context.Background()

	first, err := service.ListFeed(ctx, 1, pagination.Request{PageSize: 10})
	if err != nil {
		t.Fatalf("list feed failed: %v", err)
	}
	if len(first.Entries) != 10 {
		t.Fatalf("first page holds %d entries, want 10", len(first.Entries))
	}
	if !first.HasNextPage {
		t.Fatal("first page reports no next page at the cache boundary")
	}

	// The cold read populated the window with exactly the 10 newest.
	window, present, err := cache.Get(ctx, 1)
	if err != nil {
		t.Fatalf("cache get failed: %v", err)
	}
	if !present {
		t.Fatal("window still cold after read")
	}
	if len(window) != 10 {
		t.Fatalf("window holds %d entries, want 10", len(window))
	}

	cursor := feedwire.CursorFromEntry(first.Entries[len(first.Entries)-1])
	second, err := service.ListFeed(ctx, 1, pagination.Request{Before: &cursor, PageSize: 10})
	if err != nil {
		t.Fatalf("second page failed: %v", err)
	}
	if len(second.Entries) != 5 {
		t.Fatalf("second page holds %d entries, want 5", len(second.Entries))
	}
	if second.HasNextPage {
		t.Fatal("second page reports a next page past the end")
	}

	all := append(append([]feedwire.FeedEntry(nil), first.Entries...), second.Entries...)
	seen := make(map[int64]bool, len(all))
	for _, entry := range all {
		if seen[entry.PostID] {
			t.Fatalf("post %d served twice across pages", entry.PostID)
		}
		seen[entry.PostID] = true
	}
	if len(all) != len(seeded) {
		t.Fatalf("pages cover %d entries, want all %d", len(all), len(seeded))
	}
}

func TestListFeedServesSmallFeedsEntirelyFromCache(t *testing.T) {
	t.Parallel()

	store := memstore.NewStore()
	cache := listcache.NewMemory(listcache.WithMemoryLimit(10))
	seeded := seedEntries(t, store, 1, 4)
	service := New(cache, store, nil, WithCacheLimit(10))
	ctx := context.Background()

	// First read warms the window.
	if _, err := service.ListFeed(ctx, 1, pagination.Request{PageSize: 10}); err != nil {
		t.Fatalf("warming read failed: %v", err)
	}

	// Once warmed, reads below the cap never touch the durable store.
	readsAfterWarming := store.ReadCount()
	page, err := service.ListFeed(ctx, 1, pagination.Request{PageSize: 10})
	if err != nil {
		t.Fatalf("cached read failed: %v", err)
	}
	if len(page.Entries) != 4 || page.HasNextPage {
		t.Fatalf("page = %d entries, has next %v; want 4 entries, no next page", len(page.Entries), page.HasNextPage)
	}
	for idx := range seeded {
		if page.Entries[idx].PostID != seeded[idx].PostID {
			t.Fatalf("entry %d post = %d, want %d", idx, page.Entries[idx].PostID, seeded[idx].PostID)
		}
	}
	if got := store.ReadCount(); got != readsAfterWarming {
		t.Fatalf("durable store read %d more times, want 0", got-readsAfterWarming)
	}
}

func TestListFeedAfterCursorReturnsEverythingNew(t *testing.T) {
	t.Parallel()

	store := memstore.NewStore()
	cache := listcache.NewMemory(listcache.WithMemoryLimit(10))
	seeded := seedEntries(t, store, 1, 8)
	service := New(cache, store, nil, WithCacheLimit(10))
	ctx := context.Background()

	cursor := feedwire.CursorFromEntry(seeded[5])
	page, err := service.ListFeed(ctx, 1, pagination.Request{After: &cursor, PageSize: 2})
	if err != nil {
		t.Fatalf("after-cursor read failed: %v", err)
	}
	if len(page.Entries) != 5 {
		t.Fatalf("after-cursor page holds %d entries, want 5 uncapped", len(page.Entries))
	}
	if page.HasNextPage {
		t.Fatal("after-cursor page reports a next page")
	}
}

func TestListFeedDegradesWhenCacheUnavailable(t *testing.T) {
	t.Parallel()

	store := memstore.NewStore()
	cache := &flakyCache{
		Memory: listcache.NewMemory(listcache.WithMemoryLimit(10)),
		getErr: feedwire.ErrCacheUnavailable,
	}
	seeded := seedEntries(t, store, 1, 6)
	service := New(cache, store, nil, WithCacheLimit(10))

	page, err := service.ListFeed(context.Background(), 1, pagination.Request{PageSize: 4})
	if err != nil {
		t.Fatalf("degraded read failed: %v", err)
	}
	if len(page.Entries) != 4 || !page.HasNextPage {
		t.Fatalf("page = %d entries, has next %v; want 4 entries with next page", len(page.Entries), page.HasNextPage)
	}
	if page.Entries[0].PostID != seeded[0].PostID {
		t.Fatalf("head post = %d, want %d", page.Entries[0].PostID, seeded[0].PostID)
	}
}

func TestListFeedCacheAndDurableAgreeBelowCap(t *testing.T) {
	t.Parallel()

	store := memstore.NewStore()
	cache := listcache.NewMemory(listcache.WithMemoryLimit(20))
	seedEntries(t, store, 1, 12)
	cachedService := New(cache, store, nil, WithCacheLimit(20))
	durableService := New(&flakyCache{
		Memory: listcache.NewMemory(listcache.WithMemoryLimit(20)),
		getErr: feedwire.ErrCacheUnavailable,
	}, store, nil, WithCacheLimit(20))
	ctx := context.Background()

	var cursor *feedwire.Cursor
	for pageNum := 0; ; pageNum++ {
		req := pagination.Request{Before: cursor, PageSize: 5}
		fromCache, err := cachedService.ListFeed(ctx, 1, req)
		if err != nil {
			t.Fatalf("cached page %d failed: %v", pageNum, err)
		}
		fromDurable, err := durableService.ListFeed(ctx, 1, req)
		if err != nil {
			t.Fatalf("durable page %d failed: %v", pageNum, err)
		}

		cachedIDs := postIDs(fromCache.Entries)
		durableIDs := postIDs(fromDurable.Entries)
		if len(cachedIDs) != len(durableIDs) {
			t.Fatalf("page %d: cache %v != durable %v", pageNum, cachedIDs, durableIDs)
		}
		for idx := range cachedIDs {
			if cachedIDs[idx] != durableIDs[idx] {
				t.Fatalf("page %d: cache %v != durable %v", pageNum, cachedIDs, durableIDs)
			}
		}
		if fromCache.HasNextPage != fromDurable.HasNextPage {
			t.Fatalf("page %d: cache has next %v != durable has next %v",
				pageNum, fromCache.HasNextPage, fromDurable.HasNextPage)
		}

		if !fromCache.HasNextPage {
			break
		}
		last := feedwire.CursorFromEntry(fromCache.Entries[len(fromCache.Entries)-1])
		cursor = &last
	}
}

func TestListFeedRejectsInvalidPageSize(t *testing.T) {
	t.Parallel()

	service := New(listcache.NewMemory(), memstore.NewStore(), nil)

	_, err := service.ListFeed(context.Background(), 1, pagination.Request{PageSize: 0})
	if !errors.Is(err, feedwire.ErrInvalidPageSize) {
		t.Fatalf("error = %v, want ErrInvalidPageSize", err)
	}
}
