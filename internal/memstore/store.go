package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"feedwire/pkg/feedwire"
)

// Store is an in-memory entry store with the same ordering and uniqueness
// semantics as the Postgres store: at most one entry per (owner, post),
// newest-first order by (created_at, id).
type Store struct {
	mu      sync.Mutex
	nextID  int64
	entries []feedwire.FeedEntry
	// reads counts query calls; tests use it to prove a read was served
	// from cache alone.
	reads int
	// failInserts makes BulkInsert fail while set; used to exercise the
	// durable-write failure path.
	failInserts error
}

// NewStore creates an empty in-memory entry store.
func NewStore() *Store {
	return &Store{}
}

// FailInserts makes subsequent BulkInsert calls return err; nil restores
// normal behavior.
func (s *Store) FailInserts(err error) {
	s.mu.Lock()
	s.failInserts = err
	s.mu.Unlock()
}

// ReadCount returns how many query calls reached this store.
func (s *Store) ReadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.reads
}

// Len returns the number of stored entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.entries)
}

// BulkInsert persists entries, skipping (owner, post) conflicts, and returns
// the rows actually inserted with assigned ids.
func (s *Store) BulkInsert(ctx context.Context, entries []feedwire.FeedEntry) ([]feedwire.FeedEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("bulk insert feed entries: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failInserts != nil {
		return nil, fmt.Errorf("bulk insert %d feed entries: %w", len(entries), s.failInserts)
	}

	var inserted []feedwire.FeedEntry
	for _, entry := range entries {
		if err := entry.Validate(); err != nil {
			return nil, fmt.Errorf("bulk insert feed entries: %w", err)
		}
		if s.conflictLocked(entry.OwnerUserID, entry.PostID) {
			continue
		}
		s.nextID++
		entry.ID = s.nextID
		s.entries = append(s.entries, entry)
		inserted = append(inserted, entry)
	}

	return inserted, nil
}

func (s *Store) conflictLocked(ownerID, postID int64) bool {
	if postID == 0 {
		return false
	}
	for _, existing := range s.entries {
		if existing.OwnerUserID == ownerID && existing.PostID == postID {
			return true
		}
	}

	return false
}

// ownerEntriesLocked returns the owner's entries newest first.
func (s *Store) ownerEntriesLocked(ownerID int64) []feedwire.FeedEntry {
	var owned []feedwire.FeedEntry
	for _, entry := range s.entries {
		if entry.OwnerUserID == ownerID {
			owned = append(owned, entry)
		}
	}
	sort.Slice(owned, func(i, j int) bool {
		if !owned[i].CreatedAt.Equal(owned[j].CreatedAt) {
			return owned[i].CreatedAt.After(owned[j].CreatedAt)
		}
		return owned[i].ID > owned[j].ID
	})

	return owned
}

// NewestEntries returns up to limit newest entries for an owner.
func (s *Store) NewestEntries(ctx context.Context, ownerID int64, limit int) ([]feedwire.FeedEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("query newest entries for owner %d: %w", ownerID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.reads++
	owned := s.ownerEntriesLocked(ownerID)
	if len(owned) > limit {
		owned = owned[:limit]
	}

	return owned, nil
}

// EntriesBefore returns up to limit entries strictly older than the cursor.
func (s *Store) EntriesBefore(ctx context.Context, ownerID int64, cursor feedwire.Cursor, limit int) ([]feedwire.FeedEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("query entries before cursor for owner %d: %w", ownerID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.reads++
	var older []feedwire.FeedEntry
	for _, entry := range s.ownerEntriesLocked(ownerID) {
		if !entry.OlderThan(cursor) {
			continue
		}
		older = append(older, entry)
		if len(older) == limit {
			break
		}
	}

	return older, nil
}

// EntriesAfter returns every entry strictly newer than the cursor.
func (s *Store) EntriesAfter(ctx context.Context, ownerID int64, cursor feedwire.Cursor) ([]feedwire.FeedEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("query entries after cursor for owner %d: %w", ownerID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.reads++
	var newer []feedwire.FeedEntry
	for _, entry := range s.ownerEntriesLocked(ownerID) {
		if entry.NewerThan(cursor) {
			newer = append(newer, entry)
		}
	}

	return newer, nil
}

// NullifyPost clears references to a deleted post while keeping the rows.
func (s *Store) NullifyPost(ctx context.Context, postID int64) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("nullify post %d references: %w", postID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for idx := range s.entries {
		if s.entries[idx].PostID == postID {
			s.entries[idx].PostID = 0
		}
	}

	return nil
}

var _ feedwire.EntryStore = (*Store)(nil)
