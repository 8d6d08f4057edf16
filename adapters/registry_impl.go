package adapters

import (
	"database/sql"
	"sync"

	f "github.com/kestrel-labs/tenancy-go/core"
	"github.com/kestrel-labs/tenancy-go/log"
)

// Registry is the routing table consulted on every connection checkout.
// Shared physical pools are reference-counted under the same lock as the
// entry map, so a shared pool is closed exactly when the last entry
// referencing its pool key is removed.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]f.PoolHandle
	refs    map[string]int
	shared  map[string]*sql.DB
}

func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]f.PoolHandle),
		refs:    make(map[string]int),
		shared:  make(map[string]*sql.DB),
	}
}

func (r *Registry) Get(key string) (f.PoolHandle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handle, ok := r.entries[key]
	return handle, ok
}

func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.entries))
	for key := range r.entries {
		keys = append(keys, key)
	}
	return keys
}

// Put registers a handle under a routing key, replacing and closing any
// previous entry for the same key. At most one live entry per key. The
// incoming handle takes its pool reference before the old entry is
// released, so re-registering a tenant on a shared pool never drives the
// refcount through zero mid-swap.
func (r *Registry) Put(key string, handle f.PoolHandle) {
	r.mu.Lock()
	old, replaced := r.entries[key]
	r.entries[key] = handle
	if poolKey := handle.PoolKey(); poolKey != "" {
		r.refs[poolKey]++
		r.shared[poolKey] = handle.DB()
	}
	var freed []*sql.DB
	if replaced {
		freed = r.detach(old)
	}
	r.mu.Unlock()
	closePools(freed)
}

func (r *Registry) Remove(key string) f.PoolHandle {
	r.mu.Lock()
	handle, ok := r.entries[key]
	var freed []*sql.DB
	if ok {
		delete(r.entries, key)
		freed = r.detach(handle)
	}
	r.mu.Unlock()
	closePools(freed)
	if !ok {
		return nil
	}
	return handle
}

func (r *Registry) SharedPool(poolKey string) (*sql.DB, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	db, ok := r.shared[poolKey]
	return db, ok
}

func (r *Registry) SharedRefs(poolKey string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.refs[poolKey]
}

// Shutdown closes every registered pool. The registry is unusable afterwards.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	var freed []*sql.DB
	for key, handle := range r.entries {
		delete(r.entries, key)
		freed = append(freed, r.detach(handle)...)
	}
	r.mu.Unlock()
	closePools(freed)
}

// detach releases a handle's hold on its pool and reports the physical
// pools that must be closed. Caller holds the write lock; the close itself
// happens outside it.
func (r *Registry) detach(handle f.PoolHandle) []*sql.DB {
	poolKey := handle.PoolKey()
	if poolKey == "" {
		return []*sql.DB{handle.DB()}
	}
	r.refs[poolKey]--
	if r.refs[poolKey] > 0 {
		return nil
	}
	db := r.shared[poolKey]
	delete(r.refs, poolKey)
	delete(r.shared, poolKey)
	if db == nil {
		return nil
	}
	return []*sql.DB{db}
}

func closePools(pools []*sql.DB) {
	for _, db := range pools {
		if err := db.Close(); err != nil {
			log.Warn("failed to close pool: %v", err)
		}
	}
}
