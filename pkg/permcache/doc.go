// Package permcache is the read-through cache in front of the matrix
// engine's point check.
//
// Results are stored as a one-character flag under a deterministic key built
// from (workspace, user, resource, action), each part sanitized so backend
// glob syntax cannot leak into scans. Reads are synchronous on the decision
// path but a read failure degrades to a direct engine call; writes are
// fire-and-forget with a fixed TTL. Invalidation scans for matching keys and
// deletes them in bounded batches, swallowing backend failures. Correctness
// never depends on cache availability, only latency does.
package permcache
