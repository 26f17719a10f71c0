// Package audit defines the audit sink contracts consumed by the permission
// core, plus postgres-backed and no-op implementations.
//
// Audit writes are always fire-and-forget: services dispatch them through
// Dispatch, which runs the write off the request path, recovers panics, and
// logs failures instead of propagating them. A broken audit sink can never
// fail a role or permission mutation.
package audit
