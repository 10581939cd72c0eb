package feed

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"feedwire/internal/memstore"
	"feedwire/pkg/feedwire"
)

func testPost(id int64) feedwire.Post {
	return feedwire.Post{
		ID:        id,
		AuthorID:  id * 10,
		CreatedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		Content:   "hello",
	}
}

func TestPostCacheReadThrough(t *testing.T) {
	t.Parallel()

	store := memstore.NewPosts()
	store.Put(testPost(1))
	cache := NewPostCache(store)
	ctx := context.Background()

	first, err := cache.Get(ctx, 1)
	if err != nil {
		t.Fatalf("cold get failed: %v", err)
	}
	if first.ID != 1 || first.AuthorID != 10 {
		t.Fatalf("got post %+v, want id 1 author 10", first)
	}

	if _, err := cache.Get(ctx, 1); err != nil {
		t.Fatalf("warm get failed: %v", err)
	}
	if got := store.GetCount(); got != 1 {
		t.Fatalf("store reached %d times, want 1", got)
	}
}

func TestPostCacheInvalidateForcesReload(t *testing.T) {
	t.Parallel()

	store := memstore.NewPosts()
	store.Put(testPost(7))
	cache := NewPostCache(store)
	ctx := context.Background()

	if _, err := cache.Get(ctx, 7); err != nil {
		t.Fatalf("cold get failed: %v", err)
	}

	edited := testPost(7)
	edited.Content = "edited"
	store.Put(edited)

	// Without invalidation the stale copy is served.
	stale, err := cache.Get(ctx, 7)
	if err != nil {
		t.Fatalf("warm get failed: %v", err)
	}
	if stale.Content != "hello" {
		t.Fatalf("content = %q before invalidation, want cached copy", stale.Content)
	}

	cache.Invalidate(7)
	fresh, err := cache.Get(ctx, 7)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if fresh.Content != "edited" {
		t.Fatalf("content = %q after invalidation, want %q", fresh.Content, "edited")
	}
}

func TestPostCacheMissingPost(t *testing.T) {
	t.Parallel()

	cache := NewPostCache(memstore.NewPosts())

	_, err := cache.Get(context.Background(), 404)
	if !errors.Is(err, feedwire.ErrPostNotFound) {
		t.Fatalf("error = %v, want ErrPostNotFound", err)
	}
}

func TestPostCacheEvictsLeastRecentlyUsed(t *testing.T) {
	t.Parallel()

	store := memstore.NewPosts()
	for id := int64(1); id <= 3; id++ {
		store.Put(testPost(id))
	}
	cache := NewPostCache(store, WithPostCacheEntries(2))
	ctx := context.Background()

	for id := int64(1); id <= 2; id++ {
		if _, err := cache.Get(ctx, id); err != nil {
			t.Fatalf("get %d failed: %v", id, err)
		}
	}
	// Touch 1 so 2 becomes the eviction candidate.
	if _, err := cache.Get(ctx, 1); err != nil {
		t.Fatalf("touch failed: %v", err)
	}
	if _, err := cache.Get(ctx, 3); err != nil {
		t.Fatalf("get 3 failed: %v", err)
	}

	loadsBefore := store.GetCount()
	if _, err := cache.Get(ctx, 1); err != nil {
		t.Fatalf("warm get 1 failed: %v", err)
	}
	if got := store.GetCount(); got != loadsBefore {
		t.Fatal("post 1 was evicted despite being recently used")
	}
	if _, err := cache.Get(ctx, 2); err != nil {
		t.Fatalf("reload 2 failed: %v", err)
	}
	if got := store.GetCount(); got != loadsBefore+1 {
		t.Fatalf("store reached %d times, want %d after evicted reload", got, loadsBefore+1)
	}
}

func TestPostCacheConcurrentGets(t *testing.T) {
	t.Parallel()

	store := memstore.NewPosts()
	store.Put(testPost(5))
	cache := NewPostCache(store)

	var wg sync.WaitGroup
	for worker := 0; worker < 16; worker++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cache.Get(context.Background(), 5); err != nil {
				t.Errorf("concurrent get failed: %v", err)
			}
		}()
	}
	wg.Wait()
}
