// Package feedwire defines the contracts and domain types of the newsfeed
// fan-out subsystem: feed entries, cursors, the bounded list cache, the
// durable entry store, the follower directory, and the async batch
// dispatcher boundary. Implementations live under internal/ and are wired
// together by cmd/feedwired.
package feedwire
