// ABOUTME: Tests for the per-user in-flight gate.
// ABOUTME: Validates atomic acquisition, release semantics, and concurrency safety.

package gate

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGate_TryAcquire(t *testing.T) {
	g := New()

	assert.True(t, g.TryAcquire(1))
	assert.True(t, g.Held(1))

	// Second acquire for the same user is denied.
	assert.False(t, g.TryAcquire(1))

	// Other users are unaffected.
	assert.True(t, g.TryAcquire(2))
}

func TestGate_Release(t *testing.T) {
	g := New()

	assert.True(t, g.TryAcquire(1))
	g.Release(1)

	assert.False(t, g.Held(1))
	assert.Equal(t, 0, g.InFlight())

	// Immediately eligible again after release.
	assert.True(t, g.TryAcquire(1))
}

func TestGate_Release_Unheld(t *testing.T) {
	g := New()

	// Releasing a slot that was never acquired is a no-op.
	g.Release(99)
	assert.Equal(t, 0, g.InFlight())
}

func TestGate_InFlight(t *testing.T) {
	g := New()

	g.TryAcquire(1)
	g.TryAcquire(2)
	g.TryAcquire(3)
	assert.Equal(t, 3, g.InFlight())

	g.Release(2)
	assert.Equal(t, 2, g.InFlight())
}

func TestGate_ConcurrentAcquire_SingleWinner(t *testing.T) {
	g := New()

	const goroutines = 100
	var wg sync.WaitGroup
	var mu sync.Mutex
	acquired := 0

	// All goroutines race for the same user's slot; exactly one may win.
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.TryAcquire(42) {
				mu.Lock()
				acquired++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, acquired)
	assert.Equal(t, 1, g.InFlight())
}

func TestGate_ConcurrentDistinctUsers(t *testing.T) {
	g := New()

	const users = 50
	var wg sync.WaitGroup

	for i := 0; i < users; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			assert.True(t, g.TryAcquire(id))
		}(int64(i))
	}
	wg.Wait()

	assert.Equal(t, users, g.InFlight())

	for i := 0; i < users; i++ {
		g.Release(int64(i))
	}
	assert.Equal(t, 0, g.InFlight())
}
