package chat

import "sync"

// Presence is the live identity→connection binding, the sole source of
// truth for "is this user reachable right now". It is consulted before every
// direct-to-user push: off-room message notifications, read receipts, typing.
// Both the canonical ID and the display handle (when distinct) are bound, and
// the registry is injected at server construction so the in-process map can
// later be swapped for the Redis-backed one without touching handlers.
type Presence interface {
	Bind(key, connID string)
	Unbind(key, connID string)
	Lookup(key string) (connID string, ok bool)
}

// LocalPresence is the process-local implementation: a plain locked map,
// lifetime bounded by the process.
type LocalPresence struct {
	mu sync.RWMutex
	m  map[string]string
}

func NewLocalPresence() *LocalPresence {
	return &LocalPresence{m: make(map[string]string)}
}

func (p *LocalPresence) Bind(key, connID string) {
	if key == "" || connID == "" {
		return
	}
	p.mu.Lock()
	p.m[key] = connID
	p.mu.Unlock()
}

// Unbind only removes the entry while it still belongs to connID, so a stale
// disconnect cannot wipe a fresh reconnect's binding.
func (p *LocalPresence) Unbind(key, connID string) {
	if key == "" {
		return
	}
	p.mu.Lock()
	if cur, ok := p.m[key]; ok && (connID == "" || cur == connID) {
		delete(p.m, key)
	}
	p.mu.Unlock()
}

func (p *LocalPresence) Lookup(key string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	connID, ok := p.m[key]
	return connID, ok
}
