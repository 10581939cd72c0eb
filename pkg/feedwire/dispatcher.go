package feedwire

import "context"

// BatchUnit is one independently schedulable, retryable slice of a fanout
// job: materialize feed entries for FollowerIDs referencing PostID.
//
// Units must be safe to fully re-run: duplicate durable inserts are rejected
// by the (owner, post) uniqueness constraint and duplicate cache pushes are
// detected by post identity, so a resubmitted unit never double-writes.
type BatchUnit struct {
	// PostID identifies the published post being fanned out.
	PostID int64
	// FollowerIDs is this unit's slice of the follower snapshot.
	FollowerIDs []int64
	// Attempt counts executions of this unit, starting at zero.
	Attempt int
}

// BatchRunner executes one batch unit end to end: durable bulk insert
// followed by per-owner cache pushes.
type BatchRunner interface {
	RunBatch(ctx context.Context, unit BatchUnit) error
}

// Dispatcher schedules batch units for asynchronous execution with a bounded
// per-unit time budget. Units that exceed the budget or fail are reported,
// never silently dropped.
type Dispatcher interface {
	// Submit enqueues one unit, blocking while the queue is full until ctx
	// is done. Returns ErrDispatcherClosed after shutdown.
	Submit(ctx context.Context, unit BatchUnit) error
}
