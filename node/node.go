// Package node wires every owned subsystem — event database, telemetry,
// follow router, skill registry, dispatcher, peer transport, and both
// channel engines — into the single owning value described by the
// design's "no shared-mutable globals" rule, and implements the packet
// handler that ties them together.
package node

import (
	"math/big"
	"sync"
	"time"

	"github.com/Peersyst/xrpl-go/xrpl/transaction/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/go-errors/errors"

	"github.com/ALLiDoizCode/m2m-sub004/channel/evm"
	"github.com/ALLiDoizCode/m2m-sub004/channel/ledger"
	"github.com/ALLiDoizCode/m2m-sub004/codec"
	"github.com/ALLiDoizCode/m2m-sub004/dispatch"
	"github.com/ALLiDoizCode/m2m-sub004/dvm"
	"github.com/ALLiDoizCode/m2m-sub004/event"
	"github.com/ALLiDoizCode/m2m-sub004/eventdb"
	"github.com/ALLiDoizCode/m2m-sub004/follow"
	"github.com/ALLiDoizCode/m2m-sub004/packet"
	"github.com/ALLiDoizCode/m2m-sub004/skill"
	"github.com/ALLiDoizCode/m2m-sub004/telemetry"
	"github.com/ALLiDoizCode/m2m-sub004/transport"
)

// sweepInterval bounds how often the pending-packet table is checked for
// expired prepares this node sent and never got a response to.
const sweepInterval = time.Second

// Config bundles everything New needs to assemble a Node. Nil engines are
// valid: a node may run with EVM-only, ledger-only, both, or neither
// settlement substrate wired in.
type Config struct {
	ID       string
	Identity *event.Identity

	EventDB   *eventdb.DB
	Telemetry *telemetry.Store
	Router    *follow.Router
	Skills    *skill.Registry

	Dispatcher dispatch.Dispatcher

	EVM        *evm.Engine
	Ledger     *ledger.Engine
	DVMTracker *dvm.Tracker
}

// Node is the single owning value for one mesh agent: every subsystem
// below is reached through it, and nothing here is fetched from
// process-wide state.
type Node struct {
	ID       string
	Identity *event.Identity

	EventDB    *eventdb.DB
	Telemetry  *telemetry.Store
	Router     *follow.Router
	Skills     *skill.Registry
	Dispatcher dispatch.Dispatcher
	Transport  *transport.Manager

	EVM        *evm.Engine
	Ledger     *ledger.Engine
	DVMTracker *dvm.Tracker

	pending *pendingTable

	quit chan struct{}
	wg   sync.WaitGroup
}

// New constructs a Node from cfg, including its peer transport manager
// (but does not start its background sweeper — call Start for that).
func New(cfg Config) *Node {
	n := &Node{
		ID:         cfg.ID,
		Identity:   cfg.Identity,
		EventDB:    cfg.EventDB,
		Telemetry:  cfg.Telemetry,
		Router:     cfg.Router,
		Skills:     cfg.Skills,
		Dispatcher: cfg.Dispatcher,
		EVM:        cfg.EVM,
		Ledger:     cfg.Ledger,
		DVMTracker: cfg.DVMTracker,
		pending:    newPendingTable(),
		quit:       make(chan struct{}),
	}
	n.Transport = transport.NewManager(n.handleInboundPacket, n.handleStatusChange)
	return n
}

// Start launches the node's background control-plane task: the pending
// packet timeout sweeper.
func (n *Node) Start() {
	n.wg.Add(1)
	go n.sweepLoop()
}

// Shutdown stops the sweeper and every transport link.
func (n *Node) Shutdown() {
	close(n.quit)
	n.Transport.CloseAll()
	n.wg.Wait()
}

func (n *Node) sweepLoop() {
	defer n.wg.Done()
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-n.quit:
			return
		case now := <-ticker.C:
			n.sweepExpiredPending(now)
		}
	}
}

// sweepExpiredPending rejects every pending outbound prepare whose expiry
// has passed without a response, implementing the packet-liveness
// invariant's "or a reject at or after t" branch for the sending side.
func (n *Node) sweepExpiredPending(now time.Time) {
	for peerID, rec := range n.pending.sweepExpired(now) {
		n.emit(telemetry.TypePacketReceived, map[string]interface{}{
			"peerId":     peerID,
			"packetType": "reject",
			"error":      packet.CodeExpired,
			"direction":  "outbound-timeout",
		})
		log.Debugf("node: swept expired pending prepare to %s (correlation %x)", peerID, rec.CorrelationID)
	}
}

func (n *Node) handleStatusChange(peerID string, status transport.Status) {
	_ = n.Router.SetLive(peerID, status == transport.StatusConnected)
}

// handleInboundPacket is the transport.Manager's PacketHandler: it
// dispatches a prepare through ProcessIncomingPacket and replies, or
// reconciles a fulfill/reject against this node's own pending outbound
// prepare to peerID.
func (n *Node) handleInboundPacket(peerID string, p packet.Packet) {
	switch p.Type() {
	case packet.TypePrepare:
		resp := n.ProcessIncomingPacket(p, peerID)
		if link, ok := n.Transport.Link(peerID); ok {
			if err := link.Send(resp); err != nil {
				log.Errorf("node: failed to send response to %s: %v", peerID, err)
			}
		}
	case packet.TypeFulfill, packet.TypeReject:
		n.handleOutboundResponse(peerID, p)
	}
}

// handleOutboundResponse reconciles the response to a prepare this node
// previously sent to peerID. The pending-packet record is the idempotency
// token: a duplicate response finds nothing to mutate against.
func (n *Node) handleOutboundResponse(peerID string, p packet.Packet) {
	rec, ok := n.pending.takeAndDelete(peerID)
	if !ok {
		log.Debugf("node: response from %s with no matching pending prepare, dropping", peerID)
		return
	}

	switch resp := p.(type) {
	case *packet.Fulfill:
		n.mutateChannelForSend(peerID, rec.Amount)
		n.emit(telemetry.TypePacketReceived, map[string]interface{}{
			"peerId":     peerID,
			"packetType": "fulfill",
			"amount":     rec.Amount.String(),
		})
	case *packet.Reject:
		n.emit(telemetry.TypePacketReceived, map[string]interface{}{
			"peerId":     peerID,
			"packetType": "reject",
			"error":      resp.Code,
		})
	}
}

// ProcessIncomingPacket implements the packet handler: decode, check
// expiry, decode the embedded event, check required payment, dispatch,
// and build the fulfill/reject response.
func (n *Node) ProcessIncomingPacket(p packet.Packet, peerID string) packet.Packet {
	prep, ok := p.(*packet.Prepare)
	if !ok {
		return packet.NewReject(packet.CodeUnhandled, "expected a prepare packet")
	}

	if !prep.ExpiresAt.After(time.Now()) {
		n.emitReject(peerID, packet.CodeExpired, "prepare expired")
		return packet.NewReject(packet.CodeExpired, "prepare expired")
	}

	ev, err := codec.DecodeEnvelope(prep.Data)
	if err != nil {
		n.emitReject(peerID, packet.CodeMalformed, err.Error())
		return packet.NewReject(packet.CodeMalformed, "malformed event payload")
	}

	if req := n.requiredPaymentForKind(ev.Kind); req != nil && prep.Amount.Cmp(req) < 0 {
		n.emitReject(peerID, packet.CodeInsufficientPayment, "insufficient payment")
		return packet.NewReject(packet.CodeInsufficientPayment, "insufficient payment for this skill")
	}

	ctx := &skill.Context{
		Event:         ev,
		SourcePeerID:  peerID,
		InboundAmount: prep.Amount,
		PacketData:    prep.Data,
		EventDB:       n.EventDB,
		AgentIdentity: n.Identity,
	}

	result, err := n.Dispatcher.HandleEvent(ctx)
	if err != nil {
		n.emitReject(peerID, packet.CodeUnhandled, err.Error())
		return packet.NewReject(packet.CodeUnhandled, err.Error())
	}

	if !result.Success {
		code, msg := "F99", "refused"
		if result.Error != nil {
			code, msg = result.Error.Code, result.Error.Message
		}
		n.emitReject(peerID, code, msg)
		return packet.NewReject(code, msg)
	}

	var payload []byte
	if len(result.ResponseEvents) > 0 {
		payload, _ = codec.EncodeEnvelope(result.ResponseEvents[0])
	} else if result.ResponseEvent != nil {
		payload, _ = codec.EncodeEnvelope(result.ResponseEvent)
	}

	n.emit(telemetry.TypePacketReceived, map[string]interface{}{
		"peerId":     peerID,
		"packetType": "fulfill",
		"kind":       ev.Kind,
	})

	return &packet.Fulfill{Fulfillment: n.Identity.Fulfillment, Data: payload}
}

func (n *Node) emitReject(peerID, code, msg string) {
	n.emit(telemetry.TypePacketReceived, map[string]interface{}{
		"peerId":     peerID,
		"packetType": "reject",
		"error":      code,
		"message":    msg,
	})
}

// requiredPaymentForKind looks up the minimum payment a registered skill
// for this event kind requires, if any.
func (n *Node) requiredPaymentForKind(kind int) *big.Int {
	for _, d := range n.Skills.SkillsForKind(kind) {
		if d.RequiredPayment != nil {
			return d.RequiredPayment
		}
	}
	return nil
}

// SendPrepare sends ev to destination over peerID's link as a prepare,
// recording a pending-packet entry keyed by peer id.
func (n *Node) SendPrepare(peerID, destination string, amount *big.Int, expiresAt time.Time, ev *event.Event) error {
	payload, err := codec.EncodeEnvelope(ev)
	if err != nil {
		return err
	}

	link, ok := n.Transport.Link(peerID)
	if !ok {
		return errors.Errorf("node: no live link to peer %q", peerID)
	}

	prep := &packet.Prepare{
		Amount:             amount,
		Destination:        destination,
		ExecutionCondition: n.Identity.Condition,
		ExpiresAt:          expiresAt,
		Data:               payload,
	}
	if err := link.Send(prep); err != nil {
		return err
	}

	n.pending.put(peerID, &pendingRecord{
		Destination:   destination,
		Amount:        amount,
		SentAt:        time.Now(),
		ExpiresAt:     expiresAt,
		CorrelationID: ev.ID,
	})
	return nil
}

// Broadcast sends ev as a prepare to every peer in the router's peer
// directory that currently has a live link. Follow-list entries are not
// consulted: a followed account with no live peer entry is not sent to.
func (n *Node) Broadcast(amount *big.Int, expiresAt time.Time, ev *event.Event) (sent int, errs []error) {
	for _, p := range n.Router.Peers() {
		if !p.Live {
			continue
		}
		if err := n.SendPrepare(p.ID, p.Address, amount, expiresAt, ev); err != nil {
			errs = append(errs, err)
			continue
		}
		sent++
	}
	return sent, errs
}

// mutateChannelForSend applies the open question's "EVM first, ledger
// second, only one" rule: an outbound prepare's payment effect lands on
// whichever settlement substrate has an open channel with the peer,
// preferring EVM when both do.
func (n *Node) mutateChannelForSend(peerID string, amount *big.Int) {
	peer, ok := n.Router.Peer(peerID)
	if !ok || amount == nil || amount.Sign() == 0 {
		return
	}

	if n.EVM != nil && peer.EVMAccount != "" {
		if _, err := n.EVM.OffChainUpdate(common.HexToAddress(peer.EVMAccount), amount); err == nil {
			return
		}
	}
	if n.Ledger != nil && peer.LedgerAccount != "" {
		n.bumpLedgerBalance(types.Address(peer.LedgerAccount), amount)
	}
}

// bumpLedgerBalance finds the node's current cumulative authorized balance
// to dest and re-signs a claim for balance+amount, since the ledger
// engine's OffChainUpdate takes the new cumulative total rather than a
// delta (ledger channels carry a monotonically increasing claimed amount,
// not a running transferred counter).
func (n *Node) bumpLedgerBalance(dest types.Address, amount *big.Int) {
	for _, ch := range n.Ledger.Channels() {
		if ch.Destination != dest {
			continue
		}
		prev, ok := new(big.Int).SetString(string(ch.Balance), 10)
		if !ok {
			prev = big.NewInt(0)
		}
		next := new(big.Int).Add(prev, amount)
		_, _ = n.Ledger.OffChainUpdate(dest, types.XRPCurrencyAmount(next.String()))
		return
	}
}

func (n *Node) emit(t telemetry.Type, fields map[string]interface{}) {
	if n.Telemetry == nil {
		return
	}
	n.Telemetry.Emit(telemetry.Event{Type: t, Fields: fields})
}

