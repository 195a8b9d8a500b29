// ABOUTME: Thread-safe per-user in-flight request gate.
// ABOUTME: Grants each user at most one processing slot at a time.

package gate

import "sync"

// Gate tracks which users currently have a request in flight and grants
// exclusive processing slots. It is a per-user mutual-exclusion lock
// implemented as set membership rather than one lock object per user: the
// user population is unbounded, and membership is removed on release, so no
// memory is retained for users who complete and never return.
type Gate struct {
	mu       sync.Mutex
	inFlight map[int64]struct{}
}

// New creates an empty Gate. The in-flight set lives only in process
// memory; it starts empty on every process start.
func New() *Gate {
	return &Gate{
		inFlight: make(map[int64]struct{}),
	}
}

// TryAcquire attempts to take the processing slot for userID. It returns
// true if the slot was free and is now held by the caller, false if the
// user already has a request in flight. The check and the insert happen
// under one lock, so two concurrent callers can never both acquire the same
// user's slot.
func (g *Gate) TryAcquire(userID int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, held := g.inFlight[userID]; held {
		return false
	}
	g.inFlight[userID] = struct{}{}
	return true
}

// Release frees the processing slot for userID unconditionally. It must be
// called exactly once per successful TryAcquire, on every exit path of the
// request lifecycle; a missed release locks that user out until process
// restart.
func (g *Gate) Release(userID int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.inFlight, userID)
}

// Held reports whether userID currently holds a processing slot.
func (g *Gate) Held(userID int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, held := g.inFlight[userID]
	return held
}

// InFlight returns the number of users currently holding a slot.
func (g *Gate) InFlight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.inFlight)
}
