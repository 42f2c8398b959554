// Package guard serializes operations that share a key. The exchange uses
// it to hold one lock per NFT so that two settlements on the same token
// never interleave, while settlements on different tokens run freely.
package guard

import "sync"

type Guard struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

func New() *Guard {
	return &Guard{locks: map[string]*entry{}}
}

// Lock blocks until the key's lock is held and returns the release func.
// Release must be called exactly once.
func (g *Guard) Lock(key string) func() {
	g.mu.Lock()
	e, ok := g.locks[key]
	if !ok {
		e = &entry{}
		g.locks[key] = e
	}
	e.refs++
	g.mu.Unlock()

	e.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Unlock()
			g.mu.Lock()
			e.refs--
			if e.refs == 0 {
				delete(g.locks, key)
			}
			g.mu.Unlock()
		})
	}
}

// Do runs fn while holding the key's lock.
func (g *Guard) Do(key string, fn func() error) error {
	release := g.Lock(key)
	defer release()
	return fn()
}
