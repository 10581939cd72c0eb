package listcache

import (
	"context"
	"fmt"
	"sync"

	"feedwire/pkg/feedwire"
)

const defaultListLimit = 500

// MemoryOption mutates in-memory list cache configuration.
type MemoryOption func(*Memory)

// WithMemoryLimit sets the per-owner window cap.
func WithMemoryLimit(limit int) MemoryOption {
	return func(cache *Memory) {
		if limit > 0 {
			cache.limit = limit
		}
	}
}

// Memory is the in-process bounded list cache. One mutex guards the whole
// key space, which keeps prepend-and-trim atomic per push without
// per-owner lock bookkeeping.
type Memory struct {
	limit int

	mu    sync.Mutex
	lists map[int64][]feedwire.FeedEntry
}

// NewMemory creates an in-memory bounded list cache.
func NewMemory(options ...MemoryOption) *Memory {
	cache := &Memory{
		limit: defaultListLimit,
		lists: make(map[int64][]feedwire.FeedEntry),
	}
	for _, option := range options {
		option(cache)
	}

	return cache
}

// Get returns up to the cap newest entries for an owner.
func (m *Memory) Get(ctx context.Context, ownerID int64) ([]feedwire.FeedEntry, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, fmt.Errorf("memory list cache get owner %d: %w", ownerID, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	window, present := m.lists[ownerID]
	if !present {
		return nil, false, nil
	}
	visible := len(window)
	if visible > m.limit {
		visible = m.limit
	}

	return append([]feedwire.FeedEntry(nil), window[:visible]...), true, nil
}

// Push prepends one entry to an existing window. Absent keys are left cold
// and duplicate posts already in the window are skipped.
func (m *Memory) Push(ctx context.Context, ownerID int64, entry feedwire.FeedEntry) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("memory list cache push owner %d: %w", ownerID, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	window, present := m.lists[ownerID]
	if !present {
		return nil
	}
	for _, cached := range window {
		if cached.PostID != 0 && cached.PostID == entry.PostID {
			return nil
		}
	}

	window = append([]feedwire.FeedEntry{entry}, window...)
	if len(window) > 2*m.limit {
		window = append([]feedwire.FeedEntry(nil), window[:m.limit]...)
	}
	m.lists[ownerID] = window

	return nil
}

// Populate replaces the owner's window, truncated to the cap.
func (m *Memory) Populate(ctx context.Context, ownerID int64, entries []feedwire.FeedEntry) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("memory list cache populate owner %d: %w", ownerID, err)
	}

	if len(entries) > m.limit {
		entries = entries[:m.limit]
	}
	window := append([]feedwire.FeedEntry(nil), entries...)

	m.mu.Lock()
	m.lists[ownerID] = window
	m.mu.Unlock()

	return nil
}

// Invalidate deletes the owner's window.
func (m *Memory) Invalidate(ctx context.Context, ownerID int64) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("memory list cache invalidate owner %d: %w", ownerID, err)
	}

	m.mu.Lock()
	delete(m.lists, ownerID)
	m.mu.Unlock()

	return nil
}

var _ feedwire.ListCache = (*Memory)(nil)
