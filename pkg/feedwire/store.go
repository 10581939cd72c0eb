package feedwire

import "context"

// EntryStore is the durable feed entry store. Entries for one owner are
// totally ordered by (CreatedAt, ID) descending, and at most one entry
// exists per (owner, post) pair.
type EntryStore interface {
	// BulkInsert persists entries as a single bulk operation and returns the
	// rows actually inserted, with store-assigned IDs. Entries conflicting
	// with an existing (owner, post) pair are silently skipped and absent
	// from the result, which makes batch re-runs idempotent.
	BulkInsert(ctx context.Context, entries []FeedEntry) ([]FeedEntry, error)
	// NewestEntries returns up to limit newest entries for an owner.
	NewestEntries(ctx context.Context, ownerID int64, limit int) ([]FeedEntry, error)
	// EntriesBefore returns up to limit entries strictly older than the
	// cursor, newest first.
	EntriesBefore(ctx context.Context, ownerID int64, cursor Cursor, limit int) ([]FeedEntry, error)
	// EntriesAfter returns every entry strictly newer than the cursor,
	// newest first, with no length cap.
	EntriesAfter(ctx context.Context, ownerID int64, cursor Cursor) ([]FeedEntry, error)
	// NullifyPost clears the post reference from every entry pointing at the
	// deleted post. Rows are kept to preserve feed continuity.
	NullifyPost(ctx context.Context, postID int64) error
}

// PostStore is the external durable post lookup this subsystem consumes.
type PostStore interface {
	// GetByID returns one post or ErrPostNotFound.
	GetByID(ctx context.Context, postID int64) (Post, error)
}

// FollowerDirectory is the external follow-graph collaborator. It manages
// its own caching and invalidation; this subsystem only queries it.
type FollowerDirectory interface {
	// Followers returns the ids of every user following the given user, in a
	// stable snapshot order.
	Followers(ctx context.Context, userID int64) ([]int64, error)
	// FollowerIDs is the id-only variant used for batch scheduling; it may
	// skip any profile hydration Followers performs.
	FollowerIDs(ctx context.Context, userID int64) ([]int64, error)
	// IsFollowing reports whether followerID follows followeeID.
	IsFollowing(ctx context.Context, followerID, followeeID int64) (bool, error)
}
