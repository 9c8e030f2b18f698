package node

import (
	"math/big"
	"sync"
	"time"
)

// pendingRecord is a node's bookkeeping for one outbound prepare awaiting
// its fulfill/reject, keyed by peer id (a peer is RPC-serial in this
// core). CorrelationID is the embedded event's id, echoed by the
// responder so telemetry can stitch both sides of the exchange together.
type pendingRecord struct {
	Destination   string
	Amount        *big.Int
	SentAt        time.Time
	ExpiresAt     time.Time
	CorrelationID [32]byte
}

// pendingTable tracks in-flight outbound prepares. Created-before-send,
// deleted-after-response-or-timeout, the record is also the idempotency
// token that guards against double channel mutation on a duplicate
// fulfill/reject: deletion is the mutator's one-time permission to run.
type pendingTable struct {
	mu      sync.Mutex
	records map[string]*pendingRecord
}

func newPendingTable() *pendingTable {
	return &pendingTable{records: make(map[string]*pendingRecord)}
}

func (t *pendingTable) put(peerID string, r *pendingRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records[peerID] = r
}

// takeAndDelete atomically returns and removes the pending record for
// peerID, if any. Only the first caller for a given record observes a
// non-nil result; a duplicate response sees nothing to mutate against.
func (t *pendingTable) takeAndDelete(peerID string) (*pendingRecord, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.records[peerID]
	if ok {
		delete(t.records, peerID)
	}
	return r, ok
}

// sweepExpired removes and returns every pending record whose originating
// prepare's expiry has passed, for the timeout sweeper to reject.
func (t *pendingTable) sweepExpired(now time.Time) map[string]*pendingRecord {
	t.mu.Lock()
	defer t.mu.Unlock()

	expired := make(map[string]*pendingRecord)
	for peerID, r := range t.records {
		if !now.Before(r.ExpiresAt) {
			expired[peerID] = r
			delete(t.records, peerID)
		}
	}
	return expired
}
