// Package memstore provides in-process implementations of the durable entry
// store, the follower directory, and the post store. cmd/feedwired falls
// back to them when no Postgres DSN is configured, and package tests build
// fixtures on them.
package memstore
