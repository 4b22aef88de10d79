// Package navigation carries "go to this screen" requests from low-level code
// (the gateway client's 401 handling) up to whatever renders screens.
package navigation

import "sync"

// LoginPath is the screen every authorization failure sends the user to.
const LoginPath = "/login"

// Listener receives redirect targets.
type Listener func(target string)

// Bus fans redirect requests out to listeners and remembers the last target.
type Bus struct {
	mu        sync.RWMutex
	listeners []Listener
	last      string
}

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a listener. Listeners run synchronously in registration order.
func (b *Bus) Subscribe(l Listener) {
	if l == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, l)
}

// Redirect records target and notifies every listener.
func (b *Bus) Redirect(target string) {
	b.mu.Lock()
	b.last = target
	listeners := append([]Listener(nil), b.listeners...)
	b.mu.Unlock()

	for _, l := range listeners {
		l(target)
	}
}

// Pending returns the last redirect target, if any, and resets it.
func (b *Bus) Pending() (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	target := b.last
	b.last = ""
	return target, target != ""
}
