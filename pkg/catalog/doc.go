// Package catalog holds the static permission vocabulary for gatehouse:
// the resource types a workspace exposes, the permission names each resource
// supports, the base roles custom roles can inherit from, and the default
// grant table for every base role.
//
// Everything in this package is immutable configuration compiled into the
// binary. Accessors return deep copies so callers can never mutate the
// shared tables.
package catalog
