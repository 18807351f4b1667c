package subs

import "sync"

// lockPool hands out one mutex per key. Entries are never evicted; the
// key space is bounded by the set of user+thread pairs actively bumping.
type lockPool struct {
	mu sync.Mutex
	m  map[string]*sync.Mutex
}

func (p *lockPool) get(key string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.m == nil {
		p.m = make(map[string]*sync.Mutex)
	}
	if l, ok := p.m[key]; ok {
		return l
	}
	l := &sync.Mutex{}
	p.m[key] = l
	return l
}

var bumpLocks lockPool
