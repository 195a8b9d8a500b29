// Package quota enforces the per-user daily query allowance.
//
// The quota resets at local midnight rather than on a rolling 24h window.
// A user who exhausts the limit just before midnight can therefore complete
// up to twice the limit within a single 24h span crossing the boundary.
// This is accepted behavior, not a bug.
package quota
