// Package fanout materializes feed entries when a post is published. The
// coordinator writes the author's own entry synchronously, snapshots the
// follower set, and splits it into batch units for the async dispatcher.
// Each unit bulk-inserts its slice durably and only then pushes the new
// entries into the owners' bounded list caches, so a cache never references
// an entry that does not exist durably.
package fanout
