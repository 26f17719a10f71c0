// Package membership is the read-only view of workspace membership that the
// permission core consumes. Membership writes (invites, role assignment)
// belong to the workspace service; this package only answers who a member is
// and how many members hold a given role.
package membership
