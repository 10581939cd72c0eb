// Package listcache provides bounded per-owner feed windows: each key holds
// at most the configured number of newest feed entries for one owner.
//
// Two implementations share the contract in pkg/feedwire. Memory keeps
// windows in process under a mutex and backs tests and single-process
// deployments. Redis keeps windows as Redis lists, with a Lua script making
// the prepend-and-trim of concurrent pushes atomic on the server.
//
// Both apply batch trimming: a window may retain up to twice the cap
// internally before being cut back to the cap, but Get never returns more
// than the cap, so readers always see at most the L newest entries.
package listcache
