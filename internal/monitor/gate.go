package monitor

import "sync"

// Gate is the dedup serialization point. Every capture path, text or
// image, must pass its content hash through here; redundant observations
// of the same clipboard state collapse into one accepted capture.
type Gate struct {
	mu   sync.Mutex
	last string
}

// Accept reports whether hash differs from the last accepted one and
// records it when it does.
func (g *Gate) Accept(hash string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if hash == g.last {
		return false
	}
	g.last = hash
	return true
}

// Observe records hash without storing anything, marking content the
// pipeline should treat as already seen. Used when pasting from history
// and while incognito, so recording resumes cleanly afterwards.
func (g *Gate) Observe(hash string) {
	g.mu.Lock()
	g.last = hash
	g.mu.Unlock()
}
