package pgstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"feedwire/pkg/feedwire"
)

const schema = `
CREATE TABLE IF NOT EXISTS feed_entries (
    id            BIGSERIAL PRIMARY KEY,
    owner_user_id BIGINT NOT NULL,
    post_id       BIGINT,
    created_at    TIMESTAMPTZ NOT NULL,
    UNIQUE (owner_user_id, post_id)
);
CREATE INDEX IF NOT EXISTS feed_entries_owner_created_idx
    ON feed_entries (owner_user_id, created_at DESC, id DESC);
`

// Connect opens a pgx pool for the subsystem. Prepared statements are cached
// per connection to keep the hot keyset queries cheap.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeCacheStatement

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	return pool, nil
}

// Store is the durable feed entry store on a pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a store on an injected pool. The caller owns the pool lifecycle.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// EnsureSchema creates the feed_entries table and indexes when absent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure feed entries schema: %w", err)
	}

	return nil
}

// BulkInsert persists entries in one statement. Conflicting (owner, post)
// pairs are skipped, so re-running a fanout batch inserts nothing new and
// returns only the rows that actually landed.
func (s *Store) BulkInsert(ctx context.Context, entries []feedwire.FeedEntry) ([]feedwire.FeedEntry, error) {
	if len(entries) == 0 {
		return nil, nil
	}

	ownerIDs := make([]int64, 0, len(entries))
	postIDs := make([]int64, 0, len(entries))
	createdAts := make([]interface{}, 0, len(entries))
	for _, entry := range entries {
		if err := entry.Validate(); err != nil {
			return nil, fmt.Errorf("bulk insert feed entries: %w", err)
		}
		ownerIDs = append(ownerIDs, entry.OwnerUserID)
		postIDs = append(postIDs, entry.PostID)
		createdAts = append(createdAts, entry.CreatedAt)
	}

	rows, err := s.pool.Query(ctx, `
		INSERT INTO feed_entries (owner_user_id, post_id, created_at)
		SELECT unnest($1::bigint[]), unnest($2::bigint[]), unnest($3::timestamptz[])
		ON CONFLICT (owner_user_id, post_id) DO NOTHING
		RETURNING id, owner_user_id, post_id, created_at`,
		ownerIDs, postIDs, createdAts,
	)
	if err != nil {
		return nil, fmt.Errorf("bulk insert %d feed entries: %w", len(entries), err)
	}

	inserted, err := scanEntries(rows)
	if err != nil {
		return nil, fmt.Errorf("bulk insert %d feed entries: %w", len(entries), err)
	}

	return inserted, nil
}

// NewestEntries returns up to limit newest entries for an owner.
func (s *Store) NewestEntries(ctx context.Context, ownerID int64, limit int) ([]feedwire.FeedEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, owner_user_id, COALESCE(post_id, 0), created_at
		FROM feed_entries
		WHERE owner_user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`,
		ownerID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query newest entries for owner %d: %w", ownerID, err)
	}

	entries, err := scanEntries(rows)
	if err != nil {
		return nil, fmt.Errorf("query newest entries for owner %d: %w", ownerID, err)
	}

	return entries, nil
}

// EntriesBefore returns up to limit entries strictly older than the cursor.
func (s *Store) EntriesBefore(ctx context.Context, ownerID int64, cursor feedwire.Cursor, limit int) ([]feedwire.FeedEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, owner_user_id, COALESCE(post_id, 0), created_at
		FROM feed_entries
		WHERE owner_user_id = $1 AND (created_at, id) < ($2, $3)
		ORDER BY created_at DESC, id DESC
		LIMIT $4`,
		ownerID, cursor.CreatedAt, cursor.TieBreakID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query entries before cursor for owner %d: %w", ownerID, err)
	}

	entries, err := scanEntries(rows)
	if err != nil {
		return nil, fmt.Errorf("query entries before cursor for owner %d: %w", ownerID, err)
	}

	return entries, nil
}

// EntriesAfter returns every entry strictly newer than the cursor, uncapped.
func (s *Store) EntriesAfter(ctx context.Context, ownerID int64, cursor feedwire.Cursor) ([]feedwire.FeedEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, owner_user_id, COALESCE(post_id, 0), created_at
		FROM feed_entries
		WHERE owner_user_id = $1 AND (created_at, id) > ($2, $3)
		ORDER BY created_at DESC, id DESC`,
		ownerID, cursor.CreatedAt, cursor.TieBreakID,
	)
	if err != nil {
		return nil, fmt.Errorf("query entries after cursor for owner %d: %w", ownerID, err)
	}

	entries, err := scanEntries(rows)
	if err != nil {
		return nil, fmt.Errorf("query entries after cursor for owner %d: %w", ownerID, err)
	}

	return entries, nil
}

// NullifyPost clears references to a deleted post while keeping the rows.
func (s *Store) NullifyPost(ctx context.Context, postID int64) error {
	if _, err := s.pool.Exec(ctx,
		`UPDATE feed_entries SET post_id = NULL WHERE post_id = $1`, postID,
	); err != nil {
		return fmt.Errorf("nullify post %d references: %w", postID, err)
	}

	return nil
}

func scanEntries(rows pgx.Rows) ([]feedwire.FeedEntry, error) {
	defer rows.Close()

	var entries []feedwire.FeedEntry
	for rows.Next() {
		var entry feedwire.FeedEntry
		if err := rows.Scan(&entry.ID, &entry.OwnerUserID, &entry.PostID, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan feed entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feed entries: %w", err)
	}

	return entries, nil
}

var _ feedwire.EntryStore = (*Store)(nil)
