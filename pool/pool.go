// Package pool bounds how many executor slots may be checked out at once.
// A slot is an opaque token the executor holds for the duration of one
// job; the fixed pool doubles as a concurrency semaphore, the dynamic pool
// as a free-list.
package pool

// Pool hands out reusable slots.
type Pool interface {
	// Get returns a slot, blocking (fixed pool) until one is available.
	Get() any

	// Put returns a slot to the pool.
	Put(any)
}
