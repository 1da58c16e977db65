package store

import (
	"slices"
	"sync"

	"github.com/yago-123/meet-punch/pkg/peer"
)

const matchSize = 2

// MemoryPool keeps the waiting endpoints in memory. Only the meet server loop mutates it; the lock lets the status
// API take snapshots from other goroutines
type MemoryPool struct {
	mu      sync.RWMutex
	waiting []peer.Endpoint
}

func NewMemoryPool() *MemoryPool {
	return &MemoryPool{
		waiting: make([]peer.Endpoint, 0, matchSize),
	}
}

func (p *MemoryPool) Register(ep peer.Endpoint) (Match, Result) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if slices.Contains(p.waiting, ep) {
		return Match{}, Duplicate
	}

	p.waiting = append(p.waiting, ep)
	if len(p.waiting) < matchSize {
		return Match{}, Queued
	}

	match := Match{First: p.waiting[0], Second: p.waiting[1]}
	p.waiting = p.waiting[:0]

	return match, Matched
}

func (p *MemoryPool) Waiting() []peer.Endpoint {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return slices.Clone(p.waiting)
}

func (p *MemoryPool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return len(p.waiting)
}
