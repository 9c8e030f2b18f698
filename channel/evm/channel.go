// Package evm implements the EVM-style bilateral payment-channel engine:
// on-chain open/deposit/cooperative-settle over an ERC20-funded two-party
// channel contract, with off-chain balance-proof accounting between
// settlements.
package evm

import (
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// State is a channel's on-chain lifecycle state.
type State string

const (
	StateOpened  State = "opened"
	StateClosing State = "closing"
	StateSettled State = "settled"
)

// Channel is a single EVM-style payment channel's node-local record.
type Channel struct {
	ChannelID         [32]byte
	Participants      [2]common.Address
	TokenAddress      common.Address
	SettlementTimeout uint64

	Deposits    map[common.Address]*big.Int
	Nonces      map[common.Address]uint64
	Transferred map[common.Address]*big.Int

	State          State
	OpenedAt       time.Time
	LastActivityAt time.Time
	SettledAt      time.Time
}

// BalanceProof is the off-chain-signed attestation of a channel's
// cumulative transfer state.
type BalanceProof struct {
	ChannelID   [32]byte
	Nonce       uint64
	Transferred *big.Int
	Locked      *big.Int
	LocksRoot   [32]byte

	signature []byte
}

// Signature returns the proof's signer signature, if it has been signed.
func (p *BalanceProof) Signature() []byte { return p.signature }

// channelStore is the engine's per-node channel table, keyed by peer
// account (this core assumes one open channel per counterparty, mirroring
// the pending-packet record's one-in-flight-per-peer simplification).
type channelStore struct {
	mu       sync.RWMutex
	byPeer   map[common.Address]*Channel
	byHash   map[[32]byte]*Channel
}

func newChannelStore() *channelStore {
	return &channelStore{
		byPeer: make(map[common.Address]*Channel),
		byHash: make(map[[32]byte]*Channel),
	}
}

func (s *channelStore) insert(c *Channel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range c.Participants {
		if p != (common.Address{}) {
			s.byPeer[p] = c
		}
	}
	s.byHash[c.ChannelID] = c
}

func (s *channelStore) byPeerAccount(peer common.Address) (*Channel, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.byPeer[peer]
	return c, ok
}

func (s *channelStore) byChannelID(id [32]byte) (*Channel, bool) {
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
