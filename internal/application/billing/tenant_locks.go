package billing

import (
	"sync"

	"github.com/google/uuid"
)

// tenantLocks hands out one mutex per tenant so mutating subscription
// operations for the same tenant run strictly one at a time while different
// tenants proceed in parallel. Locks are created lazily and kept for the
// process lifetime; the map is bounded by the tenant population.
type tenantLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func newTenantLocks() *tenantLocks {
	return &tenantLocks{locks: make(map[uuid.UUID]*sync.Mutex)}
}

// Lock acquires the tenant's mutex and returns the unlock function
func (t *tenantLocks) Lock(tenantID uuid.UUID) func() {
	t.mu.Lock()
	lock, ok := t.locks[tenantID]
	if !ok {
		lock = &sync.Mutex{}
		t.locks[tenantID] = lock
	}
	t.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
