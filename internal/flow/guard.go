package flow

import "sync"

// TurnGuard allows at most one in-flight turn per session.
type TurnGuard struct {
	mu     sync.Mutex
	active map[string]struct{}
}

// NewTurnGuard returns an empty guard.
func NewTurnGuard() *TurnGuard {
	return &TurnGuard{active: make(map[string]struct{})}
}

// TryAcquire marks sessionID busy. It returns false if a turn is already running for it.
func (g *TurnGuard) TryAcquire(sessionID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.active[sessionID]; busy {
		return false
	}
	g.active[sessionID] = struct{}{}
	return true
}

// Release frees sessionID.
func (g *TurnGuard) Release(sessionID string) {
	g.mu.Lock()
	delete(g.active, sessionID)
	g.mu.Unlock()
}
