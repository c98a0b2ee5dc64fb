// internal/game/router.go
package game

import (
	"sync"

	"github.com/jason-s-yu/dicebet/internal/channel"
)

// HandlerFunc handles one inbound message of a registered kind.
type HandlerFunc func(msg channel.Message)

// Router dispatches inbound messages by their kind ("type", else "action").
type Router struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	fallback HandlerFunc
}

// NewRouter returns an empty router.
func NewRouter() *Router {
	return &Router{handlers: make(map[string]HandlerFunc)}
}

// Handle registers h for kind, replacing any earlier registration.
func (r *Router) Handle(kind string, h HandlerFunc) {
	r.mu.Lock()
	r.handlers[kind] = h
	r.mu.Unlock()
}

// Fallback sets the handler for messages with no registered kind.
func (r *Router) Fallback(h HandlerFunc) {
	r.mu.Lock()
	r.fallback = h
	r.mu.Unlock()
}

// Route dispatches msg and reports whether a kind-specific handler took it.
func (r *Router) Route(msg channel.Message) bool {
	r.mu.RLock()
	h, ok := r.handlers[msg.Kind()]
	fb := r.fallback
	r.mu.RUnlock()

	if ok {
		h(msg)
		return true
	}
	if fb != nil {
		fb(msg)
	}
	return false
}
