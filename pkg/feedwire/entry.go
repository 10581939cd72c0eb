package feedwire

import (
	"fmt"
	"time"
)

// FeedEntry is one materialized feed row: the fact that a post is visible in
// one owner's feed. Entries are created at publish time by the fanout
// coordinator, never updated, and ordered newest first by (CreatedAt, ID).
type FeedEntry struct {
	// ID is the durable store identity, assigned at insert time.
	ID int64 `json:"id"`
	// OwnerUserID identifies whose feed this entry belongs to.
	OwnerUserID int64 `json:"owner_user_id"`
	// PostID references the published post. Zero when the referenced post
	// was deleted; the entry itself is kept to preserve feed continuity.
	PostID int64 `json:"post_id"`
	// CreatedAt records when the entry was materialized.
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks that mandatory entry fields are present.
func (e FeedEntry) Validate() error {
	if e.OwnerUserID <= 0 {
		return fmt.Errorf("validate feed entry: missing owner user id")
	}
	if e.CreatedAt.IsZero() {
		return fmt.Errorf("validate feed entry for owner %d: missing created at", e.OwnerUserID)
	}

	return nil
}

// NewerThan reports whether the entry sorts strictly before the cursor
// position in the newest-first feed order.
func (e FeedEntry) NewerThan(cursor Cursor) bool {
	if !e.CreatedAt.Equal(cursor.CreatedAt) {
		return e.CreatedAt.After(cursor.CreatedAt)
	}

	return e.ID > cursor.TieBreakID
}

// OlderThan reports whether the entry sorts strictly after the cursor
// position in the newest-first feed order.
func (e FeedEntry) OlderThan(cursor Cursor) bool {
	if !e.CreatedAt.Equal(cursor.CreatedAt) {
		return e.CreatedAt.Before(cursor.CreatedAt)
	}

	return e.ID < cursor.TieBreakID
}

// Post is the published content record this subsystem fans out. Content
// lifecycle belongs to the external post store; only identity, authorship,
// and creation time matter here.
type Post struct {
	ID        int64     `json:"id"`
	AuthorID  int64     `json:"author_id"`
	CreatedAt time.Time `json:"created_at"`
	Content   string    `json:"content"`
}

// Validate checks that mandatory post fields are present.
func (p Post) Validate() error {
	if p.ID <= 0 {
		return fmt.Errorf("validate post: missing post id")
	}
	if p.AuthorID <= 0 {
		return fmt.Errorf("validate post %d: missing author id", p.ID)
	}

	return nil
}
