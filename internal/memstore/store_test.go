package memstore

import (
	"context"
	"testing"
	"time"

	"feedwire/pkg/feedwire"
)

func TestStoreBulkInsertSkipsConflicts(t *testing.T) {
	t.Parallel()

	store := NewStore()
	ctx := context.Background()
	createdAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	batch := []feedwire.FeedEntry{
		{OwnerUserID: 1, PostID: 100, CreatedAt: createdAt},
		{OwnerUserID: 2, PostID: 100, CreatedAt: createdAt},
	}

	inserted, err := store.BulkInsert(ctx, batch)
	if err != nil {
		t.Fatalf("bulk insert failed: %v", err)
	}
	if len(inserted) != 2 {
		t.Fatalf("inserted = %d rows, want 2", len(inserted))
	}
	if inserted[0].ID == 0 || inserted[1].ID == 0 {
		t.Fatal("inserted rows missing assigned ids")
	}

	// Re-running the same batch must insert nothing.
	reinserted, err := store.BulkInsert(ctx, batch)
	if err != nil {
		t.Fatalf("bulk insert rerun failed: %v", err)
	}
	if len(reinserted) != 0 {
		t.Fatalf("rerun inserted %d rows, want 0", len(reinserted))
	}
	if store.Len() != 2 {
		t.Fatalf("store holds %d rows, want 2", store.Len())
	}
}

func TestStoreNewestEntriesOrdering(t *testing.T) {
	t.Parallel()

	store := NewStore()
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	// Two posts share a timestamp; insertion order breaks the tie via id.
	if _, err := store.BulkInsert(ctx, []feedwire.FeedEntry{
		{OwnerUserID: 1, PostID: 100, CreatedAt: base},
		{OwnerUserID: 1, PostID: 101, CreatedAt: base},
		{OwnerUserID: 1, PostID: 102, CreatedAt: base.Add(time.Second)},
	}); err != nil {
		t.Fatalf("bulk insert failed: %v", err)
	}

	newest, err := store.NewestEntries(ctx, 1, 10)
	if err != nil {
		t.Fatalf("newest entries failed: %v", err)
	}
	wantPosts := []int64{102, 101, 100}
	if len(newest) != len(wantPosts) {
		t.Fatalf("newest = %d entries, want %d", len(newest), len(wantPosts))
	}
	for idx, entry := range newest {
		if entry.PostID != wantPosts[idx] {
			t.Fatalf("newest[%d].PostID = %d, want %d", idx, entry.PostID, wantPosts[idx])
		}
	}
}

func TestStoreNullifyPostKeepsRows(t *testing.T) {
	t.Parallel()

	store := NewStore()
	ctx := context.Background()
	createdAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	if _, err := store.BulkInsert(ctx, []feedwire.FeedEntry{
		{OwnerUserID: 1, PostID: 100, CreatedAt: createdAt},
		{OwnerUserID: 2, PostID: 100, CreatedAt: createdAt},
		{OwnerUserID: 1, PostID: 101, CreatedAt: createdAt.Add(time.Second)},
	}); err != nil {
		t.Fatalf("bulk insert failed: %v", err)
	}

	if err := store.NullifyPost(ctx, 100); err != nil {
		t.Fatalf("nullify post failed: %v", err)
	}
	if store.Len() != 3 {
		t.Fatalf("store holds %d rows after nullify, want 3", store.Len())
	}

	newest, err := store.NewestEntries(ctx, 1, 10)
	if err != nil {
		t.Fatalf("newest entries failed: %v", err)
	}
	if newest[1].PostID != 0 {
		t.Fatalf("nullified entry post id = %d, want 0", newest[1].PostID)
	}
}
