package chat

import (
	"sync"
)

// Registry tracks the live connections and per-room broadcast-group
// membership. Every mutation is a single map operation under the lock, which
// is the whole concurrency story: interleaved connect/disconnect cannot
// corrupt membership.
type Registry struct {
	mu      sync.RWMutex
	byConn  map[string]*Client            // conn_id -> client
	rooms   map[string]map[string]*Client // room_id -> conn_id -> client
	inRooms map[string]map[string]bool    // conn_id -> room_id set
}

func NewRegistry() *Registry {
	return &Registry{
		byConn:  make(map[string]*Client),
		rooms:   make(map[string]map[string]*Client),
		inRooms: make(map[string]map[string]bool),
	}
}

func (r *Registry) AddClient(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byConn[c.ConnID] = c
}

// RemoveClient drops the connection and its room memberships in one critical
// section, so a disconnect mid-fan-out either sees the client fully present
// or fully gone.
func (r *Registry) RemoveClient(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for roomID := range r.inRooms[c.ConnID] {
		if m := r.rooms[roomID]; m != nil {
			delete(m, c.ConnID)
			if len(m) == 0 {
				delete(r.rooms, roomID)
			}
		}
	}
	delete(r.inRooms, c.ConnID)
	delete(r.byConn, c.ConnID)
}

func (r *Registry) GetByConnID(connID string) *Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byConn[connID]
}

// Join adds the connection to a room's broadcast group.
func (r *Registry) Join(roomID string, c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.rooms[roomID]
	if m == nil {
		m = make(map[string]*Client)
		r.rooms[roomID] = m
	}
	m[c.ConnID] = c

	set := r.inRooms[c.ConnID]
	if set == nil {
		set = make(map[string]bool)
		r.inRooms[c.ConnID] = set
	}
	set[roomID] = true
}

func (r *Registry) InRoom(roomID, connID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m := r.rooms[roomID]
	return m != nil && m[connID] != nil
}

func (r *Registry) MembersOf(roomID string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m := r.rooms[roomID]
	if len(m) == 0 {
		return nil
	}
	out := make([]*Client, 0, len(m))
	for _, c := range m {
		out = append(out, c)
	}
	return out
}

// ListOthers returns every live connection except the given one, for
// presence broadcasts.
func (r *Registry) ListOthers(exceptConnID string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Client, 0, len(r.byConn))
	for id, c := range r.byConn {
		if id == exceptConnID {
			continue
		}
		out = append(out, c)
	}
	return out
}

// ListAll is for debugging/statistics; use sparingly.
func (r *Registry) ListAll() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Client, 0, len(r.byConn))
	for _, c := range r.byConn {
		out = append(out, c)
	}
	return out
}
