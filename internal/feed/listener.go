package feed

import (
	"context"
	"fmt"
	"log/slog"

	"feedwire/pkg/feedwire"
)

// Listener reacts to upstream entity mutations with targeted cache
// eviction. Invalidation stays O(1) per mutation: feed windows hold only ids
// and timestamps, so a profile or post edit never touches follower feed
// caches; renders pick the fresh entity up through the post cache instead.
type Listener struct {
	logger *slog.Logger
	cache  feedwire.ListCache
	posts  *PostCache
	store  feedwire.EntryStore
}

// NewListener creates an invalidation listener.
func NewListener(cache feedwire.ListCache, posts *PostCache, store feedwire.EntryStore, logger *slog.Logger) *Listener {
	if logger == nil {
		logger = slog.Default()
	}

	return &Listener{
		logger: logger,
		cache:  cache,
		posts:  posts,
		store:  store,
	}
}

// OnOwnerMutated evicts one owner's feed window, forcing the next read to
// repopulate from durable storage.
func (l *Listener) OnOwnerMutated(ctx context.Context, ownerID int64) error {
	if err := l.cache.Invalidate(ctx, ownerID); err != nil {
		return fmt.Errorf("invalidate feed window for owner %d: %w", ownerID, err)
	}

	return nil
}

// OnPostMutated evicts one post from the read-through post cache. Feed
// windows are untouched.
func (l *Listener) OnPostMutated(_ context.Context, postID int64) error {
	if l.posts != nil {
		l.posts.Invalidate(postID)
	}

	return nil
}

// OnPostDeleted clears durable references to a deleted post and evicts it
// from the post cache. Feed entries are kept with a nulled reference to
// preserve feed continuity.
func (l *Listener) OnPostDeleted(ctx context.Context, postID int64) error {
	if err := l.store.NullifyPost(ctx, postID); err != nil {
		return fmt.Errorf("delete post %d: %w", postID, err)
	}
	if l.posts != nil {
		l.posts.Invalidate(postID)
	}
	l.logger.Info("post references nulled", "post_id", postID)

	return nil
}
