// Package dispatch schedules fanout batch units on a bounded worker pool.
// Each unit runs under a fixed time budget; units that fail or exceed the
// budget are retried up to a configured attempt count and then handed to a
// failure sink, never silently dropped. Units are idempotent end to end, so
// a resubmitted unit whose writes already landed changes nothing.
package dispatch
