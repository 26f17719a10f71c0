// Package matrix resolves effective permissions and mutates the explicit
// override table.
//
// Resolution order, applied identically for the matrix view, the per-user
// effective view, and the point check:
//
//  1. A member whose workspace membership role is owner is granted
//     everything, no lookups.
//  2. For a custom role, an explicit override for the pair is authoritative.
//  3. Otherwise the role's base-role default applies, marked inherited.
//  4. Otherwise deny, not inherited. Members without a custom role resolve
//     straight from their system role's defaults.
//
// Every mutation validates the (resource, permission) pair against the
// catalog, rejects system roles, runs multi-row writes in one transaction,
// and triggers workspace-wide cache invalidation as a side effect that can
// never fail the mutation.
package matrix
