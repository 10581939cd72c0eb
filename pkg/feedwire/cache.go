package feedwire

import "context"

// ListCache is a per-owner, length-bounded, newest-first view of that
// owner's feed entry stream, held in a fast store.
//
// Implementations must be concurrency-safe: pushes for different owners
// never touch the same key, but two posts fanned out near-simultaneously to
// the same owner must apply their prepend-and-trim as one atomic operation
// against the store, never as a separate read and write.
type ListCache interface {
	// Get returns the cached window for an owner, newest first, holding at
	// most the configured cap. present is false on a cold cache; the caller
	// must then repopulate from durable storage.
	Get(ctx context.Context, ownerID int64) (entries []FeedEntry, present bool, err error)
	// Push prepends one entry to an existing cached window and trims it back
	// within bounds. Pushing to an absent key is a no-op: the first cold Get
	// triggers full repopulation instead of per-write partial rebuilds.
	// Pushing an entry whose post is already in the window is a no-op.
	Push(ctx context.Context, ownerID int64, entry FeedEntry) error
	// Populate replaces the owner's window with the given entries, truncated
	// to the cap. Used by readers after a cold Get miss.
	Populate(ctx context.Context, ownerID int64, entries []FeedEntry) error
	// Invalidate deletes the cached window entirely, forcing the next Get to
	// repopulate from durable storage.
	Invalidate(ctx context.Context, ownerID int64) error
}
