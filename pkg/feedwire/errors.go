package feedwire

import "errors"

var (
	// ErrCacheUnavailable indicates the bounded list cache could not be
	// reached. Reads degrade to the durable store; push failures are logged
	// and tolerated.
	ErrCacheUnavailable = errors.New("feedwire: list cache unavailable")
	// ErrInvalidCursor indicates a cursor string that cannot be decoded.
	ErrInvalidCursor = errors.New("feedwire: invalid cursor")
	// ErrInvalidPageSize indicates a non-positive pagination page size.
	ErrInvalidPageSize = errors.New("feedwire: invalid page size")
	// ErrPostNotFound indicates a post store lookup miss.
	ErrPostNotFound = errors.New("feedwire: post not found")
	// ErrBatchTimeout indicates an async batch unit exceeded its time budget
	// and must be resubmitted whole.
	ErrBatchTimeout = errors.New("feedwire: batch time budget exceeded")
	// ErrDispatcherClosed indicates a batch submission after shutdown.
	ErrDispatcherClosed = errors.New("feedwire: dispatcher closed")
)
