// Package roles owns custom workspace roles and their explicit permission
// overrides.
//
// A workspace exposes two kinds of roles. System roles (owner, admin,
// developer, viewer) are synthetic: they are computed on read from the
// catalog definitions plus live member counts and are never stored. Custom
// roles are persisted rows, optionally inheriting defaults from a base role,
// with explicit per-(resource, permission) overrides layered on top.
//
// The Store handles persistence; the Service layers naming rules, the
// per-workspace role cap, member-count-gated deletion, audit, and cache
// invalidation on top of it. Creation and cloning run the count check and
// insert inside a single transaction guarded by a per-workspace advisory
// lock so two concurrent creations cannot both slip past the cap.
package roles
