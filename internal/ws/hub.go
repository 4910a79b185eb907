package ws

import (
	"encoding/json"
	"sync"

	"snakeiaserver/internal/game"

	"go.uber.org/zap"
)

// Hub routes outbound events to connections, room groups and listing
// watchers. It is the game's Broadcaster.
type Hub struct {
	mu       sync.RWMutex
	conns    map[string]*clientConn
	groups   map[string]map[string]struct{}
	watchers map[string]struct{}
}

var _ game.Broadcaster = (*Hub)(nil)

func NewHub() *Hub {
	return &Hub{
		conns:    make(map[string]*clientConn),
		groups:   make(map[string]map[string]struct{}),
		watchers: make(map[string]struct{}),
	}
}

func (h *Hub) register(c *clientConn) {
	h.mu.Lock()
	h.conns[c.id] = c
	h.mu.Unlock()
}

func (h *Hub) unregister(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.conns, connID)
	delete(h.watchers, connID)
	for g, members := range h.groups {
		delete(members, connID)
		if len(members) == 0 {
			delete(h.groups, g)
		}
	}
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

func (h *Hub) Emit(connID, event string, payload any) {
	frame, ok := encode(event, payload)
	if !ok {
		return
	}
	h.mu.RLock()
	c := h.conns[connID]
	h.mu.RUnlock()
	if c != nil {
		c.enqueue(frame)
	}
}

func (h *Hub) EmitGroup(group, event string, payload any) {
	frame, ok := encode(event, payload)
	if !ok {
		return
	}
	for _, c := range h.snapshot(func() map[string]struct{} { return h.groups[group] }) {
		c.enqueue(frame)
	}
}

func (h *Hub) Join(connID, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[connID]; !ok {
		return
	}
	members := h.groups[group]
	if members == nil {
		members = make(map[string]struct{})
		h.groups[group] = members
	}
	members[connID] = struct{}{}
}

func (h *Hub) Leave(connID, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if members, ok := h.groups[group]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(h.groups, group)
		}
	}
}

// Watch subscribes the connection to room listing pushes.
func (h *Hub) Watch(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[connID]; ok {
		h.watchers[connID] = struct{}{}
	}
}

func (h *Hub) Watching() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.watchers) > 0
}

func (h *Hub) EmitWatchers(event string, payload any) {
	frame, ok := encode(event, payload)
	if !ok {
		return
	}
	for _, c := range h.snapshot(func() map[string]struct{} { return h.watchers }) {
		c.enqueue(frame)
	}
}

// snapshot copies the targets so the writes happen outside the lock.
func (h *Hub) snapshot(set func() map[string]struct{}) []*clientConn {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := set()
	out := make([]*clientConn, 0, len(ids))
	for id := range ids {
		if c := h.conns[id]; c != nil {
			out = append(out, c)
		}
	}
	return out
}

func encode(event string, payload any) ([]byte, bool) {
	frame, err := json.Marshal(outbound{Event: event, Body: payload})
	if err != nil {
		zap.L().Error("ws.encode", zap.String("event", event), zap.Error(err))
		return nil, false
	}
	return frame, true
}
