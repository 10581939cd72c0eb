package feed

import (
	"container/list"
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"feedwire/pkg/feedwire"
)

const defaultPostCacheEntries = 10000

// PostCacheOption mutates post cache configuration.
type PostCacheOption func(*PostCache)

// WithPostCacheEntries sets the in-memory post cache capacity.
func WithPostCacheEntries(maxEntries int) PostCacheOption {
	return func(cache *PostCache) {
		if maxEntries > 0 {
			cache.maxEntries = maxEntries
		}
	}
}

// PostCache is an explicit read-through cache over the external post store,
// used at render time to resolve the posts feed entries reference. Each
// entity is cached and invalidated on its own, composed by the caller,
// rather than memoized through chained lookups.
type PostCache struct {
	store      feedwire.PostStore
	maxEntries int

	mu    sync.Mutex
	posts map[int64]feedwire.Post
	lru   *list.List
	index map[int64]*list.Element

	loads singleflight.Group
}

// NewPostCache creates a bounded read-through post cache.
func NewPostCache(store feedwire.PostStore, options ...PostCacheOption) *PostCache {
	cache := &PostCache{
		store:      store,
		maxEntries: defaultPostCacheEntries,
		posts:      make(map[int64]feedwire.Post),
		lru:        list.New(),
		index:      make(map[int64]*list.Element),
	}
	for _, option := range options {
		option(cache)
	}

	return cache
}

// Get returns one post, loading through to the post store on a miss.
// Concurrent misses for the same post collapse into one store lookup.
func (c *PostCache) Get(ctx context.Context, postID int64) (feedwire.Post, error) {
	c.mu.Lock()
	if post, found := c.posts[postID]; found {
		c.touchLocked(postID)
		c.mu.Unlock()
		return post, nil
	}
	c.mu.Unlock()

	loaded, err, _ := c.loads.Do(postCacheKey(postID), func() (interface{}, error) {
		post, err := c.store.GetByID(ctx, postID)
		if err != nil {
			return feedwire.Post{}, err
		}
		c.remember(post)
		return post, nil
	})
	if err != nil {
		return feedwire.Post{}, fmt.Errorf("post cache get %d: %w", postID, err)
	}

	return loaded.(feedwire.Post), nil
}

// Invalidate drops one post so the next Get reloads it from the store.
func (c *PostCache) Invalidate(postID int64) {
	c.mu.Lock()
	c.deleteLocked(postID)
	c.mu.Unlock()
}

func (c *PostCache) remember(post feedwire.Post) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, found := c.posts[post.ID]; found {
		c.posts[post.ID] = post
		c.touchLocked(post.ID)
		return
	}

	c.posts[post.ID] = post
	c.index[post.ID] = c.lru.PushFront(post.ID)
	for len(c.posts) > c.maxEntries {
		back := c.lru.Back()
		if back == nil {
			break
		}
		c.deleteLocked(back.Value.(int64))
	}
}

func (c *PostCache) touchLocked(postID int64) {
	if element, found := c.index[postID]; found {
		c.lru.MoveToFront(element)
	}
}

func (c *PostCache) deleteLocked(postID int64) {
	if element, found := c.index[postID]; found {
		c.lru.Remove(element)
		delete(c.index, postID)
	}
	delete(c.posts, postID)
}

func postCacheKey(postID int64) string {
	return fmt.Sprintf("post:%d", postID)
}
