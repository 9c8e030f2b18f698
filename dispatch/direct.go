package dispatch

import (
	"sync"

	"github.com/ALLiDoizCode/m2m-sub004/packet"
	"github.com/ALLiDoizCode/m2m-sub004/skill"
)

// HandlerFunc handles one dispatch context and returns a handler result.
type HandlerFunc func(ctx *skill.Context) (*skill.Result, error)

// Dispatcher is the common interface both the direct and AI dispatchers
// satisfy, so the AI dispatcher can hold a fallback of either kind.
type Dispatcher interface {
	HandleEvent(ctx *skill.Context) (*skill.Result, error)
}

// Direct is the fallback dispatcher: a bounded map from event kind to
// handler, initialized once at boot and never mutated while the node is
// serving, in the style of htlcswitch's link/circuit lookup tables.
type Direct struct {
	mu       sync.RWMutex
	handlers map[int]HandlerFunc
}

// NewDirect constructs an empty Direct dispatcher.
func NewDirect() *Direct {
	return &Direct{handlers: make(map[int]HandlerFunc)}
}

// RegisterHandler binds a handler to an event kind. Intended for use only
// during boot wiring.
func (d *Direct) RegisterHandler(kind int, h HandlerFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[kind] = h
}

// HandleEvent looks up the handler registered for ctx.Event.Kind and
// invokes it. Returns an unhandled-kind failure if none matches.
func (d *Direct) HandleEvent(ctx *skill.Context) (*skill.Result, error) {
	d.mu.RLock()
	h, ok := d.handlers[ctx.Event.Kind]
	d.mu.RUnlock()

	if !ok {
		return &skill.Result{
			Success: false,
			Error:   &skill.HandlerError{Code: packet.CodeUnhandled, Message: "unhandled kind"},
		}, nil
	}
	return h(ctx)
}
