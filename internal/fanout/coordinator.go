package fanout

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"feedwire/pkg/feedwire"
)

const defaultBatchSize = 3000

// Option mutates coordinator configuration.
type Option func(*Coordinator)

// WithLogger injects a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(coordinator *Coordinator) {
		if logger != nil {
			coordinator.logger = logger
		}
	}
}

// WithBatchSize sets the follower count per batch unit.
func WithBatchSize(batchSize int) Option {
	return func(coordinator *Coordinator) {
		if batchSize > 0 {
			coordinator.batchSize = batchSize
		}
	}
}

// WithClock injects the entry timestamp source.
func WithClock(clock func() time.Time) Option {
	return func(coordinator *Coordinator) {
		if clock != nil {
			coordinator.clock = clock
		}
	}
}

// Coordinator drives publish-time fanout.
type Coordinator struct {
	logger    *slog.Logger
	store     feedwire.EntryStore
	cache     feedwire.ListCache
	directory feedwire.FollowerDirectory
	batchSize int
	clock     func() time.Time

	dispatcher feedwire.Dispatcher
}

// New creates a fanout coordinator. The dispatcher is attached separately
// with SetDispatcher because the dispatcher's runner is the coordinator
// itself.
func New(
	store feedwire.EntryStore,
	cache feedwire.ListCache,
	directory feedwire.FollowerDirectory,
	options ...Option,
) *Coordinator {
	coordinator := &Coordinator{
		logger:    slog.Default(),
		store:     store,
		cache:     cache,
		directory: directory,
		batchSize: defaultBatchSize,
		clock:     time.Now,
	}
	for _, option := range options {
		option(coordinator)
	}

	return coordinator
}

// SetDispatcher attaches the async batch dispatcher. Must be called before
// OnPublish.
func (c *Coordinator) SetDispatcher(dispatcher feedwire.Dispatcher) {
	c.dispatcher = dispatcher
}

// OnPublish fans a freshly published post out to its author and followers.
// The author's entry is written synchronously for immediate self-visibility;
// follower batches are deferred to the dispatcher. A durable write failure
// surfaces to the caller with no cache mutation, and the publish workflow
// retries the whole operation.
func (c *Coordinator) OnPublish(ctx context.Context, post feedwire.Post) error {
	if err := post.Validate(); err != nil {
		return fmt.Errorf("fanout publish: %w", err)
	}
	if c.dispatcher == nil {
		return fmt.Errorf("fanout publish post %d: dispatcher not configured", post.ID)
	}

	if err := c.insertAndPush(ctx, post.ID, []int64{post.AuthorID}); err != nil {
		return fmt.Errorf("fanout publish post %d author entry: %w", post.ID, err)
	}

	followerIDs, err := c.directory.FollowerIDs(ctx, post.AuthorID)
	if err != nil {
		return fmt.Errorf("fanout publish post %d resolve followers: %w", post.ID, err)
	}

	batches := 0
	for start := 0; start < len(followerIDs); start += c.batchSize {
		end := start + c.batchSize
		if end > len(followerIDs) {
			end = len(followerIDs)
		}
		unit := feedwire.BatchUnit{
			PostID:      post.ID,
			FollowerIDs: followerIDs[start:end],
		}
		if err := c.dispatcher.Submit(ctx, unit); err != nil {
			return fmt.Errorf("fanout publish post %d submit batch %d: %w", post.ID, batches, err)
		}
		batches++
	}

	c.logger.Info("fanout scheduled",
		"post_id", post.ID,
		"author_id", post.AuthorID,
		"followers", len(followerIDs),
		"batches", batches,
	)

	return nil
}

// RunBatch executes one batch unit: durable bulk insert for this slice of
// followers, then cache pushes for the rows that landed. Safe to re-run:
// conflicting inserts are skipped and already-cached posts are not pushed
// twice.
func (c *Coordinator) RunBatch(ctx context.Context, unit feedwire.BatchUnit) error {
	if err := c.insertAndPush(ctx, unit.PostID, unit.FollowerIDs); err != nil {
		return fmt.Errorf("fanout batch post %d (%d followers): %w", unit.PostID, len(unit.FollowerIDs), err)
	}

	return nil
}

// insertAndPush bulk-inserts one entry per owner and pushes the inserted
// rows into their owners' caches. Cache push failures are logged and
// tolerated: the cache self-heals on the next cold read or invalidation.
func (c *Coordinator) insertAndPush(ctx context.Context, postID int64, ownerIDs []int64) error {
	if len(ownerIDs) == 0 {
		return nil
	}

	createdAt := c.clock().UTC()
	entries := make([]feedwire.FeedEntry, 0, len(ownerIDs))
	for _, ownerID := range ownerIDs {
		entries = append(entries, feedwire.FeedEntry{
			OwnerUserID: ownerID,
			PostID:      postID,
			CreatedAt:   createdAt,
		})
	}

	inserted, err := c.store.BulkInsert(ctx, entries)
	if err != nil {
		return fmt.Errorf("bulk insert: %w", err)
	}

	for _, entry := range inserted {
		if err := c.cache.Push(ctx, entry.OwnerUserID, entry); err != nil {
			c.logger.Warn("cache push failed, feed cache left stale",
				"owner_id", entry.OwnerUserID,
				"post_id", entry.PostID,
				"error", err,
			)
		}
	}

	return nil
}

var _ feedwire.BatchRunner = (*Coordinator)(nil)
