// Package gate provides the per-user concurrency gate that prevents a user
// from having two requests in flight simultaneously. Acquisition is an
// atomic check-and-insert on a mutex-guarded set; release deletes the
// membership so the set never grows with the user population.
package gate
