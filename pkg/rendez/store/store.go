package store

import "github.com/yago-123/meet-punch/pkg/peer"

// Result tells what a registration did to the waiting pool
type Result int

const (
	// Queued means the endpoint was added and waits for a partner
	Queued Result = iota
	// Duplicate means the endpoint was already waiting, nothing changed
	Duplicate
	// Matched means the endpoint completed a pair and the pool was drained
	Matched
)

func (r Result) String() string {
	switch r {
	case Queued:
		return "queued"
	case Duplicate:
		return "duplicate"
	case Matched:
		return "matched"
	default:
		return "unknown"
	}
}

// Match pairs the two endpoints that registered first, in arrival order
type Match struct {
	First  peer.Endpoint
	Second peer.Endpoint
}

// Pool holds endpoints that registered and are not yet matched
type Pool interface {
	// Register adds ep to the pool. When ep is the second distinct endpoint the pair is returned and removed from
	// the pool within the same call
	Register(ep peer.Endpoint) (Match, Result)
	// Waiting returns a snapshot of the waiting endpoints in arrival order
	Waiting() []peer.Endpoint
	Len() int
}
