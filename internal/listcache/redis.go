package listcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"feedwire/pkg/feedwire"
)

const defaultKeyTTL = 7 * 24 * time.Hour

// pushScript applies prepend-and-trim as one atomic server-side operation.
// Pushing to an absent key is a no-op so cold windows stay cold until a
// reader repopulates them, and a duplicate of the head post is skipped so
// re-run fanout batches do not double-insert.
//
// KEYS[1] window key; ARGV: entry json, post id, trim threshold, cap, ttl seconds.
var pushScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 0
end
local head = redis.call('LINDEX', KEYS[1], 0)
if head then
  local ok, decoded = pcall(cjson.decode, head)
  if ok and tonumber(decoded['post_id']) == tonumber(ARGV[2]) then
    return 0
  end
end
redis.call('LPUSH', KEYS[1], ARGV[1])
if redis.call('LLEN', KEYS[1]) > tonumber(ARGV[3]) then
  redis.call('LTRIM', KEYS[1], 0, tonumber(ARGV[4]) - 1)
end
if tonumber(ARGV[5]) > 0 then
  redis.call('EXPIRE', KEYS[1], ARGV[5])
end
return 1
`)

// RedisOption mutates Redis list cache configuration.
type RedisOption func(*Redis)

// WithRedisLimit sets the per-owner window cap.
func WithRedisLimit(limit int) RedisOption {
	return func(cache *Redis) {
		if limit > 0 {
			cache.limit = limit
		}
	}
}

// WithRedisTTL sets the expiry refreshed on every window write.
func WithRedisTTL(ttl time.Duration) RedisOption {
	return func(cache *Redis) {
		if ttl > 0 {
			cache.ttl = ttl
		}
	}
}

// Redis is the bounded list cache backed by Redis lists, one key per owner.
// Entries are stored as JSON list elements, newest at the head.
type Redis struct {
	client redis.UniversalClient
	limit  int
	ttl    time.Duration
}

// NewRedis creates a Redis bounded list cache on an injected client. The
// caller owns the client lifecycle.
func NewRedis(client redis.UniversalClient, options ...RedisOption) *Redis {
	cache := &Redis{
		client: client,
		limit:  defaultListLimit,
		ttl:    defaultKeyTTL,
	}
	for _, option := range options {
		option(cache)
	}

	return cache
}

// key returns the owner's window key. Keys are invalidated, never renamed.
func (r *Redis) key(ownerID int64) string {
	return "newsfeed:user:" + strconv.FormatInt(ownerID, 10)
}

// Get returns up to the cap newest entries for an owner.
func (r *Redis) Get(ctx context.Context, ownerID int64) ([]feedwire.FeedEntry, bool, error) {
	pipe := r.client.Pipeline()
	existsCmd := pipe.Exists(ctx, r.key(ownerID))
	rangeCmd := pipe.LRange(ctx, r.key(ownerID), 0, int64(r.limit-1))
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, false, fmt.Errorf("redis list cache get owner %d: %w",
			ownerID, errors.Join(feedwire.ErrCacheUnavailable, err))
	}

	if existsCmd.Val() == 0 {
		return nil, false, nil
	}

	elements := rangeCmd.Val()
	entries := make([]feedwire.FeedEntry, 0, len(elements))
	for _, element := range elements {
		var entry feedwire.FeedEntry
		if err := json.Unmarshal([]byte(element), &entry); err != nil {
			return nil, false, fmt.Errorf("redis list cache get owner %d: decode element: %w", ownerID, err)
		}
		entries = append(entries, entry)
	}

	return entries, true, nil
}

// Push prepends one entry to an existing window via the atomic push script.
func (r *Redis) Push(ctx context.Context, ownerID int64, entry feedwire.FeedEntry) error {
	encoded, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("redis list cache push owner %d: encode entry: %w", ownerID, err)
	}

	err = pushScript.Run(ctx, r.client, []string{r.key(ownerID)},
		string(encoded),
		entry.PostID,
		2*r.limit,
		r.limit,
		int64(r.ttl/time.Second),
	).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis list cache push owner %d: %w",
			ownerID, errors.Join(feedwire.ErrCacheUnavailable, err))
	}

	return nil
}

// Populate replaces the owner's window atomically, truncated to the cap.
func (r *Redis) Populate(ctx context.Context, ownerID int64, entries []feedwire.FeedEntry) error {
	if len(entries) > r.limit {
		entries = entries[:r.limit]
	}

	elements := make([]interface{}, 0, len(entries))
	for _, entry := range entries {
		encoded, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("redis list cache populate owner %d: encode entry %d: %w", ownerID, entry.ID, err)
		}
		elements = append(elements, string(encoded))
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.key(ownerID))
	if len(elements) > 0 {
		pipe.RPush(ctx, r.key(ownerID), elements...)
		pipe.Expire(ctx, r.key(ownerID), r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis list cache populate owner %d: %w",
			ownerID, errors.Join(feedwire.ErrCacheUnavailable, err))
	}

	return nil
}

// Invalidate deletes the owner's window.
func (r *Redis) Invalidate(ctx context.Context, ownerID int64) error {
	if err := r.client.Del(ctx, r.key(ownerID)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis list cache invalidate owner %d: %w",
			ownerID, errors.Join(feedwire.ErrCacheUnavailable, err))
	}

	return nil
}

var _ feedwire.ListCache = (*Redis)(nil)
