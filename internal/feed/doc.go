// Package feed exposes the subsystem's two surfaces: the write trigger
// (OnPublish, delegated to the fanout coordinator) and the paginated read
// API. Reads try the bounded list cache first, repopulating it from the
// durable store on a cold miss, and fall back to durable keyset pagination
// whenever the cached window cannot answer the query completely. The
// package also hosts the post read-through cache and the invalidation
// listener for upstream mutations.
package feed
