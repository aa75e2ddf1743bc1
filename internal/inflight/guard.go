// Package inflight rejects a mutation while another one for the same key is
// still running.
package inflight

import (
	"errors"
	"sync"
)

// ErrInFlight is returned when an action for the key is already running.
var ErrInFlight = errors.New("action already in progress")

// Guard tracks running actions by key. The zero value is ready to use.
type Guard struct {
	mu      sync.Mutex
	running map[string]struct{}
}

// Do runs fn unless an action for key is running, in which case it returns
// ErrInFlight without calling fn.
func (g *Guard) Do(key string, fn func() error) error {
	if !g.acquire(key) {
		return ErrInFlight
	}
	defer g.release(key)
	return fn()
}

// Busy reports whether an action for key is running.
func (g *Guard) Busy(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.running[key]
	return ok
}

func (g *Guard) acquire(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running == nil {
		g.running = make(map[string]struct{})
	}
	if _, ok := g.running[key]; ok {
		return false
	}
	g.running[key] = struct{}{}
	return true
}

func (g *Guard) release(key string) {
	g.mu.Lock()
	delete(g.running, key)
	g.mu.Unlock()
}
