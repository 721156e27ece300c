package relay

import (
	"sync"
	"time"
)

// ThreadRegistry keeps a capped, timestamped record of threads this process
// created. Oldest entries fall off once the cap is reached, so the registry
// cannot grow without bound.
type ThreadRegistry struct {
	mu      sync.Mutex
	cap     int
	created map[string]time.Time
	order   []string
}

func NewThreadRegistry(cap int) *ThreadRegistry {
	return &ThreadRegistry{
		cap:     cap,
		created: make(map[string]time.Time),
	}
}

func (r *ThreadRegistry) Record(threadID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.created[threadID]; ok {
		return
	}
	r.created[threadID] = time.Now()
	r.order = append(r.order, threadID)
	if r.cap > 0 && len(r.order) > r.cap {
		oldest := r.order[0]
		r.order = r.order[1:]
		delete(r.created, oldest)
	}
}

// Known reports whether this process created the given thread.
func (r *ThreadRegistry) Known(threadID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.created[threadID]
	return ok
}

func (r *ThreadRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.created)
}
