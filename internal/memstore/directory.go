package memstore

import (
	"context"
	"fmt"
	"sync"

	"feedwire/pkg/feedwire"
)

// Directory is an in-memory follow graph.
type Directory struct {
	mu sync.RWMutex
	// followers maps followee id to follower ids in follow order.
	followers map[int64][]int64
}

// NewDirectory creates an empty in-memory follower directory.
func NewDirectory() *Directory {
	return &Directory{followers: make(map[int64][]int64)}
}

// Follow records that followerID follows followeeID. Duplicate edges are
// ignored.
func (d *Directory) Follow(followerID, followeeID int64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, existing := range d.followers[followeeID] {
		if existing == followerID {
			return
		}
	}
	d.followers[followeeID] = append(d.followers[followeeID], followerID)
}

// Followers returns the ids of every user following userID, in follow order.
func (d *Directory) Followers(ctx context.Context, userID int64) ([]int64, error) {
	return d.FollowerIDs(ctx, userID)
}

// FollowerIDs is the id-only variant used for batch scheduling.
func (d *Directory) FollowerIDs(ctx context.Context, userID int64) ([]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("query followers of user %d: %w", userID, err)
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	return append([]int64(nil), d.followers[userID]...), nil
}

// IsFollowing reports whether followerID follows followeeID.
func (d *Directory) IsFollowing(ctx context.Context, followerID, followeeID int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("query follow edge %d -> %d: %w", followerID, followeeID, err)
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, existing := range d.followers[followeeID] {
		if existing == followerID {
			return true, nil
		}
	}

	return false, nil
}

// Posts is an in-memory post store.
type Posts struct {
	mu    sync.RWMutex
	posts map[int64]feedwire.Post
	// getCount tracks lookups for read-through cache tests.
	getCount int
}

// NewPosts creates an empty in-memory post store.
func NewPosts() *Posts {
	return &Posts{posts: make(map[int64]feedwire.Post)}
}

// Put stores one post.
func (p *Posts) Put(post feedwire.Post) {
	p.mu.Lock()
	p.posts[post.ID] = post
	p.mu.Unlock()
}

// Delete removes one post.
func (p *Posts) Delete(postID int64) {
	p.mu.Lock()
	delete(p.posts, postID)
	p.mu.Unlock()
}

// GetCount returns how many GetByID calls reached this store.
func (p *Posts) GetCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.getCount
}

// GetByID returns one post or feedwire.ErrPostNotFound.
func (p *Posts) GetByID(ctx context.Context, postID int64) (feedwire.Post, error) {
	if err := ctx.Err(); err != nil {
		return feedwire.Post{}, fmt.Errorf("get post %d: %w", postID, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.getCount++
	post, found := p.posts[postID]
	if !found {
		return feedwire.Post{}, fmt.Errorf("get post %d: %w", postID, feedwire.ErrPostNotFound)
	}

	return post, nil
}

var (
	_ feedwire.FollowerDirectory = (*Directory)(nil)
	_ feedwire.PostStore         = (*Posts)(nil)
)
