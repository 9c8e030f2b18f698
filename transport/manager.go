package transport

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/go-errors/errors"
	"github.com/gorilla/websocket"

	"github.com/ALLiDoizCode/m2m-sub004/retry"
)

// defaultBaseDelay and defaultCapDelay bound the reconnection backoff.
const (
	defaultBaseDelay    = time.Second
	defaultCapDelay     = 30 * time.Second
	defaultMaxReconnect = 10
)

// Manager owns every live Link, keyed by peer id, and drives outbound
// reconnection with exponential backoff when a dialed link drops.
type Manager struct {
	OnPacket PacketHandler
	OnStatus StatusHandler

	MaxReconnectAttempts int
	BaseDelay            time.Duration
	CapDelay             time.Duration

	mu    sync.RWMutex
	links map[string]*Link
}

// NewManager constructs an empty Manager.
func NewManager(onPacket PacketHandler, onStatus StatusHandler) *Manager {
	return &Manager{
		OnPacket:              onPacket,
		OnStatus:              onStatus,
		MaxReconnectAttempts:  defaultMaxReconnect,
		BaseDelay:             defaultBaseDelay,
		CapDelay:              defaultCapDelay,
		links:                 make(map[string]*Link),
	}
}

// AcceptInbound registers a Link constructed from an already-upgraded
// inbound server connection. Inbound links are not reconnected by the
// Manager; the remote side owns retrying the dial.
func (m *Manager) AcceptInbound(peerID string, conn *websocket.Conn) *Link {
	link := NewLink(peerID, conn, m.OnPacket, m.OnStatus)
	m.register(peerID, link)
	link.Start()
	return link
}

// DialOutbound establishes an outbound WebSocket connection to targetURL
// and keeps it alive for the lifetime of ctx, reconnecting with
// exponential backoff (capped at MaxReconnectAttempts) whenever the
// connection drops.
func (m *Manager) DialOutbound(ctx context.Context, peerID, targetURL string) {
	go m.reconnectLoop(ctx, peerID, targetURL)
}

func (m *Manager) reconnectLoop(ctx context.Context, peerID, targetURL string) {
	attempt := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		link, err := m.dial(ctx, peerID, targetURL)
		if err != nil {
			attempt++
			if m.MaxReconnectAttempts > 0 && attempt > m.MaxReconnectAttempts {
				log.Errorf("transport: giving up on %s after %d attempts: %v", peerID, attempt, err)
				if m.OnStatus != nil {
					m.OnStatus(peerID, StatusError)
				}
				return
			}
			delay := retry.Backoff(attempt, m.BaseDelay, m.CapDelay)
			log.Debugf("transport: dial %s failed (attempt %d): %v, retrying in %s", peerID, attempt, err, delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return
			}
			continue
		}

		attempt = 0
		link.wg.Wait() // blocks until the link's pumps exit (connection dropped)
		m.unregister(peerID)

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

func (m *Manager) dial(ctx context.Context, peerID, targetURL string) (*Link, error) {
	if m.OnStatus != nil {
		m.OnStatus(peerID, StatusConnecting)
	}

	if _, err := url.Parse(targetURL); err != nil {
		return nil, errors.WrapPrefix(err, "parse transport url", 0)
	}

	dialer := websocket.Dialer{HandshakeTimeout: DialTimeout}
	conn, _, err := dialer.DialContext(ctx, targetURL, http.Header{})
	if err != nil {
		return nil, errors.WrapPrefix(err, "dial websocket", 0)
	}

	link := NewLink(peerID, conn, m.OnPacket, m.OnStatus)
	m.register(peerID, link)
	link.Start()
	return link, nil
}

func (m *Manager) register(peerID string, link *Link) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.links[peerID] = link
}

func (m *Manager) unregister(peerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.links, peerID)
}

// Link returns the currently live link to peerID, if any.
func (m *Manager) Link(peerID string) (*Link, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.links[peerID]
	return l, ok
}

// CloseAll stops every tracked link.
func (m *Manager) CloseAll() {
	m.mu.RLock()
	links := make([]*Link, 0, len(m.links))
	for _, l := range m.links {
		links = append(links, l)
	}
	m.mu.RUnlock()

	for _, l := range links {
		l.Stop()
	}
}
