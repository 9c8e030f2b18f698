// Package follow implements the follow-graph router: the peer directory and
// the address-prefix routing table derived from it.
package follow

import (
	"strings"
	"sync"

	"github.com/go-errors/errors"
)

// Peer is a unique remote node this agent can reach over a transport link.
type Peer struct {
	ID         string
	Address    string // dotted-prefix, e.g. "g.agent.alice"
	TransportURL string
	EVMAccount   string
	LedgerAccount string
	Live          bool
}

// Entry is a follow-list entry, applied through ApplyFollow.
type Entry struct {
	PubKey        string
	Address       string
	Petname       string
	BTPUrl        string
	EVMAddress    string
	LedgerAddress string
}

// Router owns the peer directory and the follow entries derived from
// follow-list events. It is exclusively owned by a single Node instance.
type Router struct {
	mu      sync.RWMutex
	peers   map[string]*Peer   // keyed by peer id
	follows map[string]*Entry  // keyed by pubkey
}

// New constructs an empty Router.
func New() *Router {
	return &Router{
		peers:   make(map[string]*Peer),
		follows: make(map[string]*Entry),
	}
}

// AddPeer inserts or replaces a peer record.
func (r *Router) AddPeer(p *Peer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.peers[p.ID] = p
}

// SetLive updates a peer's connectivity flag.
func (r *Router) SetLive(peerID string, live bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.peers[peerID]
	if !ok {
		return errors.Errorf("follow: unknown peer %q", peerID)
	}
	p.Live = live
	return nil
}

// Peer returns a copy of the peer record for peerID.
func (r *Router) Peer(peerID string) (Peer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.peers[peerID]
	if !ok {
		return Peer{}, false
	}
	return *p, true
}

// Peers returns a snapshot of the full peer directory.
func (r *Router) Peers() []Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Peer, 0, len(r.peers))
	for _, p := range r.peers {
		out = append(out, *p)
	}
	return out
}

// ApplyFollow upserts a follow entry, as driven by a follow-list event or
// the POST /follows control-surface endpoint.
func (r *Router) ApplyFollow(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := e
	r.follows[e.PubKey] = &cp
}

// Follows returns a snapshot of every follow entry.
func (r *Router) Follows() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, 0, len(r.follows))
	for _, e := range r.follows {
		out = append(out, *e)
	}
	return out
}

// NextHop derives the peer that is the longest dotted-address-prefix match
// for destination, i.e. the routing step ILP-style address-prefix routing
// performs at each hop. Returns (peer, false) if no peer's address is a
// prefix of destination.
func (r *Router) NextHop(destination string) (Peer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var best *Peer
	bestLen := -1
	for _, p := range r.peers {
		if !isPrefix(p.Address, destination) {
			continue
		}
		if len(p.Address) > bestLen {
			best = p
			bestLen = len(p.Address)
		}
	}
	if best == nil {
		return Peer{}, false
	}
	return *best, true
}

// isPrefix reports whether addr is a dotted-segment prefix of destination
// (e.g. "g.agent" is a prefix of "g.agent.alice" but not of "g.agentx").
func isPrefix(addr, destination string) bool {
	if addr == destination {
		return true
	}
	return strings.HasPrefix(destination, addr+".")
}
