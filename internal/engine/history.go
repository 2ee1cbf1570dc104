package engine

import (
	"sync"

	"github.com/arbelos/keel/internal/model"
)

// HistoryStore keeps per-session response history for reporting
type HistoryStore interface {
	Append(sessionID string, resp *model.ReliableResponse)
	List(sessionID string) []*model.ReliableResponse
	Sessions() []string
}

// MemoryHistory is a bounded in-memory history store. Each session keeps its
// most recent limit responses.
type MemoryHistory struct {
	mu        sync.RWMutex
	limit     int
	bySession map[string][]*model.ReliableResponse
}

// NewMemoryHistory creates a history store keeping up to limit responses per
// session
func NewMemoryHistory(limit int) *MemoryHistory {
	if limit <= 0 {
		limit = 100
	}
	return &MemoryHistory{
		limit:     limit,
		bySession: make(map[string][]*model.ReliableResponse),
	}
}

// Append records a response, evicting the oldest past the limit
func (h *MemoryHistory) Append(sessionID string, resp *model.ReliableResponse) {
	h.mu.Lock()
	defer h.mu.Unlock()

	list := append(h.bySession[sessionID], resp)
	if len(list) > h.limit {
		list = list[len(list)-h.limit:]
	}
	h.bySession[sessionID] = list
}

// List returns a session's responses oldest-first
func (h *MemoryHistory) List(sessionID string) []*model.ReliableResponse {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*model.ReliableResponse, len(h.bySession[sessionID]))
	copy(out, h.bySession[sessionID])
	return out
}

// Sessions lists session ids with recorded history
func (h *MemoryHistory) Sessions() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.bySession))
	for id := range h.bySession {
		out = append(out, id)
	}
	return out
}
