package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"feedwire/pkg/feedwire"
)

// Directory reads the follow graph from the external friendships table
// (from_user_id follows to_user_id). This subsystem only queries it; the
// owning service manages writes and its own caching.
type Directory struct {
	pool *pgxpool.Pool
}

// NewDirectory creates a follower directory on an injected pool.
func NewDirectory(pool *pgxpool.Pool) *Directory {
	return &Directory{pool: pool}
}

// Followers returns the ids of every user following userID, oldest follow first.
func (d *Directory) Followers(ctx context.Context, userID int64) ([]int64, error) {
	return d.followerIDs(ctx, userID)
}

// FollowerIDs is the id-only variant used for batch scheduling.
func (d *Directory) FollowerIDs(ctx context.Context, userID int64) ([]int64, error) {
	return d.followerIDs(ctx, userID)
}

func (d *Directory) followerIDs(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT from_user_id
		FROM friendships
		WHERE to_user_id = $1
		ORDER BY created_at, from_user_id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query followers of user %d: %w", userID, err)
	}
	defer rows.Close()

	var followerIDs []int64
	for rows.Next() {
		var followerID int64
		if err := rows.Scan(&followerID); err != nil {
			return nil, fmt.Errorf("scan follower of user %d: %w", userID, err)
		}
		followerIDs = append(followerIDs, followerID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate followers of user %d: %w", userID, err)
	}

	return followerIDs, nil
}

// IsFollowing reports whether followerID follows followeeID.
func (d *Directory) IsFollowing(ctx context.Context, followerID, followeeID int64) (bool, error) {
	var exists bool
	err := d.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM friendships WHERE from_user_id = $1 AND to_user_id = $2
		)`,
		followerID, followeeID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query follow edge %d -> %d: %w", followerID, followeeID, err)
	}

	return exists, nil
}

// Posts reads the external posts table for render-time lookups.
type Posts struct {
	pool *pgxpool.Pool
}

// NewPosts creates a post store on an injected pool.
func NewPosts(pool *pgxpool.Pool) *Posts {
	return &Posts{pool: pool}
}

// GetByID returns one post or feedwire.ErrPostNotFound.
func (p *Posts) GetByID(ctx context.Context, postID int64) (feedwire.Post, error) {
	var post feedwire.Post
	err := p.pool.QueryRow(ctx, `
		SELECT id, user_id, created_at, content
		FROM posts
		WHERE id = $1`,
		postID,
	).Scan(&post.ID, &post.AuthorID, &post.CreatedAt, &post.Content)
	if errors.Is(err, pgx.ErrNoRows) {
		return feedwire.Post{}, fmt.Errorf("get post %d: %w", postID, feedwire.ErrPostNotFound)
	}
	if err != nil {
		return feedwire.Post{}, fmt.Errorf("get post %d: %w", postID, err)
	}

	return post, nil
}

var (
	_ feedwire.FollowerDirectory = (*Directory)(nil)
	_ feedwire.PostStore         = (*Posts)(nil)
)
