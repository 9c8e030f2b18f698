// Package ledger implements the XRP-ledger-style unidirectional
// payment-channel engine: a source account escrows XRP into a channel and
// authorizes the destination to claim against it with off-chain signed
// claims, settling on-chain only when the destination redeems or the
// channel expires.
package ledger

import (
	"sync"
	"time"

	"github.com/Peersyst/xrpl-go/xrpl/transaction/types"
)

// State is a channel's on-ledger lifecycle state.
type State string

const (
	StateOpen    State = "open"
	StateClosing State = "closing"
	StateClosed  State = "closed"
)

// Channel is a single XRP-ledger payment channel's node-local record,
// mirroring the fields of the on-ledger PayChannel entry.
type Channel struct {
	ChannelID   types.Hash256
	Account     types.Address
	Destination types.Address
	PublicKey   string

	Amount  types.XRPCurrencyAmount
	Balance types.XRPCurrencyAmount

	SettleDelay uint32
	Expiration  uint32
	CancelAfter uint32

	State          State
	OpenedAt       time.Time
	LastActivityAt time.Time
	ClosedAt       time.Time
}

// Claim is an off-chain-signed authorization to redeem up to Amount drops
// from a channel; only the most recent (highest Amount) claim needs ever
// be submitted on-ledger.
type Claim struct {
	ChannelID types.Hash256
	Amount    types.XRPCurrencyAmount
	Signature string
}

// channelStore is the engine's per-node channel table, keyed by
// destination account (one outbound channel per counterparty).
type channelStore struct {
	mu       sync.RWMutex
	byPeer   map[types.Address]*Channel
	byHash   map[types.Hash256]*Channel
}

func newChannelStore() *channelStore {
	return &channelStore{
		byPeer: make(map[types.Address]*Channel),
		byHash: make(map[types.Hash256]*Channel),
	}
}

func (s *channelStore) insert(c *Channel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byPeer[c.Destination] = c
	s.byHash[c.ChannelID] = c
}

func (s *channelStore) byDestination(dest types.Address) (*Channel, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.byPeer[dest]
	return c, ok
}

func (s *channelStore) byChannelID(id types.Hash256) (*Channel, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.byHash[id]
	return c, ok
}

// snapshot returns a shallow copy of every tracked channel, for the HTTP
// control surface's read-only views.
func (s *channelStore) snapshot() []*Channel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Channel, 0, len(s.byHash))
	for _, c := range s.byHash {
		cp := *c
		out = append(out, &cp)
	}
	return out
}
