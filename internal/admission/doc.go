// Package admission is the request admission and concurrency-control core.
//
// # Lifecycle
//
// Every inbound request walks a fixed state machine:
//
//	Received -> QuotaChecked -> GateChecked -> Dispatching -> {Completed|Failed} -> Released
//
// Side effects are strictly ordered: the quota check precedes gate
// acquisition, which precedes dispatch, which precedes the query log write,
// which precedes the gate release. The release is deferred at the moment of
// acquisition, so it runs on every exit path, including panics; a missed
// release would lock the user out until process restart.
//
// # Denials
//
//   - Denied(quota): at or above the daily limit. No gate interaction, no
//     log entry, fixed quota-exceeded reply.
//   - Denied(busy): the user already holds the processing slot. No state is
//     mutated by the denied request.
//
// # Failure policy
//
// All dispatcher and store failures are caught at this boundary and
// converted to a small fixed set of user-visible messages; internal detail
// is only logged. Nothing is retried. A store outage during the quota check
// aborts the request: a guessed count of zero would silently bypass the
// limit.
package admission
