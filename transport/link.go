// Package transport implements the bidirectional peer link: a WebSocket
// connection carrying prepare/fulfill/reject frames between this node and
// a single counterparty, with pending-prepare correlation and
// exponential-backoff reconnection on the outbound (dialing) side.
package transport

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-errors/errors"
	"github.com/gorilla/websocket"

	"github.com/ALLiDoizCode/m2m-sub004/packet"
)

// Status is a link's connection lifecycle state.
type Status string

const (
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
	StatusError        Status = "error"
)

// sendBufferSize bounds the outbound frame queue.
const sendBufferSize = 64

// PacketHandler is invoked for every inbound packet a link receives.
type PacketHandler func(peerID string, p packet.Packet)

// StatusHandler is invoked whenever a link's Status changes.
type StatusHandler func(peerID string, status Status)

// Link owns one WebSocket connection to a single peer and pumps frames in
// both directions. A Link is single-use: once stopped it must be
// discarded, not restarted (the Manager replaces it with a fresh Link on
// reconnect).
type Link struct {
	PeerID string

	conn *websocket.Conn
	send chan packet.Packet

	onPacket PacketHandler
	onStatus StatusHandler

	mu      sync.Mutex
	pending *packet.Prepare // the single outstanding outbound prepare, if any

	quit       chan struct{}
	wg         sync.WaitGroup
	disconnect int32
}

// NewLink wraps an already-established WebSocket connection (either side
// of the handshake; the Manager decides which).
func NewLink(peerID string, conn *websocket.Conn, onPacket PacketHandler, onStatus StatusHandler) *Link {
	return &Link{
		PeerID:   peerID,
		conn:     conn,
		send:     make(chan packet.Packet, sendBufferSize),
		onPacket: onPacket,
		onStatus: onStatus,
		quit:     make(chan struct{}),
	}
}

// Start launches the link's read and write pumps.
func (l *Link) Start() {
	l.setStatus(StatusConnected)
	l.wg.Add(2)
	go l.readPump()
	go l.writePump()
}

// Stop closes the underlying connection and waits for both pumps to exit.
func (l *Link) Stop() {
	if !atomic.CompareAndSwapInt32(&l.disconnect, 0, 1) {
		return
	}
	l.conn.Close()
	close(l.quit)
	l.wg.Wait()
	l.setStatus(StatusDisconnected)
}

// Send enqueues p for delivery to the peer. If p is a Prepare, it becomes
// the link's single outstanding prepare, per the one-in-flight-per-peer
// correlation rule. Sending a Fulfill or Reject leaves it untouched; the
// read pump clears it when an inbound Fulfill or Reject arrives, whether
// or not it matches (a link carries exactly one conversation at a time).
func (l *Link) Send(p packet.Packet) error {
	if prep, ok := p.(*packet.Prepare); ok {
		l.mu.Lock()
		l.pending = prep
		l.mu.Unlock()
	}
	select {
	case l.send <- p:
		return nil
	case <-l.quit:
		return errors.New("transport: link is stopped")
	default:
		return errors.New("transport: send queue full")
	}
}

// Pending returns the link's outstanding outbound prepare, if any.
func (l *Link) Pending() (*packet.Prepare, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pending, l.pending != nil
}

func (l *Link) clearPending() {
	l.mu.Lock()
	l.pending = nil
	l.mu.Unlock()
}

func (l *Link) readPump() {
	defer l.Stop()
	defer l.wg.Done()

	for {
		_, raw, err := l.conn.ReadMessage()
		if err != nil {
			log.Debugf("transport: read error from %s: %v", l.PeerID, err)
			return
		}

		p, err := packet.DecodeFrame(raw)
		if err != nil {
			log.Warnf("transport: malformed frame from %s: %v", l.PeerID, err)
			continue
		}

		switch p.(type) {
		case *packet.Fulfill, *packet.Reject:
			l.clearPending()
		}

		if l.onPacket != nil {
			l.onPacket(l.PeerID, p)
		}
	}
}

func (l *Link) writePump() {
	defer l.wg.Done()

	for {
		select {
		case p := <-l.send:
			raw, err := packet.EncodeFrame(p)
			if err != nil {
				log.Errorf("transport: failed to encode frame for %s: %v", l.PeerID, err)
				continue
			}
			if err := l.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				log.Debugf("transport: write error to %s: %v", l.PeerID, err)
				return
			}
		case <-l.quit:
			return
		}
	}
}

func (l *Link) setStatus(s Status) {
	if l.onStatus != nil {
		l.onStatus(l.PeerID, s)
	}
}

// DialTimeout bounds the WebSocket handshake for outbound connections.
const DialTimeout = 10 * time.Second
