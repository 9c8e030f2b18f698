// Package skill implements the skill registry: named capabilities with a
// typed parameter schema that a dispatcher can invoke to handle an event.
package skill

import (
	"math/big"
	"sync"

	"github.com/go-errors/errors"

	"github.com/ALLiDoizCode/m2m-sub004/event"
	"github.com/ALLiDoizCode/m2m-sub004/eventdb"
)

// ParamType is the small set of parameter types a skill's schema can
// describe. Kept intentionally minimal rather than a full JSON-schema
// implementation: skills are tagged records, not a general-purpose
// validation engine.
type ParamType string

const (
	ParamString ParamType = "string"
	ParamNumber ParamType = "number"
	ParamBool   ParamType = "bool"
	ParamObject ParamType = "object"
)

// ParamSpec describes one parameter a skill's Execute function accepts.
type ParamSpec struct {
	Name        string
	Type        ParamType
	Required    bool
	Description string
}

// HandlerError is the {code, message} shape of a skill's reject path.
type HandlerError struct {
	Code    string
	Message string
}

func (e *HandlerError) Error() string { return e.Code + ": " + e.Message }

// Result is a skill's outcome: either success (optionally carrying one or
// more response events to embed in the fulfill packet's payload) or a
// coded failure.
type Result struct {
	Success        bool
	Error          *HandlerError
	ResponseEvent  *event.Event
	ResponseEvents []*event.Event
}

// Context is everything a skill's Execute function needs about the event
// being dispatched.
type Context struct {
	Event         *event.Event
	SourcePeerID  string
	InboundAmount *big.Int
	PacketData    []byte
	EventDB       *eventdb.DB
	AgentIdentity *event.Identity
}

// ExecuteFunc is a skill's handler: parsed parameters plus the dispatch
// context in, a Result out.
type ExecuteFunc func(params map[string]interface{}, ctx *Context) (*Result, error)

// Descriptor is a registered skill.
type Descriptor struct {
	Name            string
	Description     string
	Params          []ParamSpec
	Kinds           []int // event kinds this skill claims; nil means "any kind"
	RequiredPayment *big.Int
	Execute         ExecuteFunc
}

func (d *Descriptor) claimsKind(kind int) bool {
	if len(d.Kinds) == 0 {
		return true
	}
	for _, k := range d.Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Registry is a mapping from skill name to descriptor. It is mutated only
// at boot; once the node is serving it is read-only.
type Registry struct {
	mu     sync.RWMutex
	skills map[string]*Descriptor
}

// NewRegistry constructs an empty skill registry.
func NewRegistry() *Registry {
	return &Registry{skills: make(map[string]*Descriptor)}
}

// Register adds a new skill. Fails with an AlreadyExists-shaped error if
// the name is already taken.
func (r *Registry) Register(d *Descriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.skills[d.Name]; exists {
		return errors.Errorf("skill: %q already registered", d.Name)
	}
	r.skills[d.Name] = d
	log.Debugf("registered skill %q (kinds=%v)", d.Name, d.Kinds)
	return nil
}

// Unregister removes a skill by name; unregistering an unknown name is a
// no-op.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.skills, name)
}

// Get returns the descriptor for name, if registered.
func (r *Registry) Get(name string) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.skills[name]
	return d, ok
}

// Has reports whether a skill is registered under name.
func (r *Registry) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Size returns the number of registered skills.
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.skills)
}

// SkillsForKind returns every skill whose declared kinds include k, plus
// every skill that declared no kinds at all (an implicit match-all).
func (r *Registry) SkillsForKind(k int) []*Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Descriptor
	for _, d := range r.skills {
		if d.claimsKind(k) {
			out = append(out, d)
		}
	}
	return out
}

// Summary is the name/description/kinds view used by the system-prompt
// builder and the /status control-surface endpoint.
type Summary struct {
	Name        string
	Description string
	Kinds       []int
	Params      []ParamSpec
}

// Summary returns a stable-ish snapshot of every registered skill.
func (r *Registry) Summary() []Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Summary, 0, len(r.skills))
	for _, d := range r.skills {
		out = append(out, Summary{
			Name:        d.Name,
			Description: d.Description,
			Kinds:       d.Kinds,
			Params:      d.Params,
		})
	}
	return out
}

// Tool is a callable bound to a dispatch context: the bridge the AI
// dispatcher hands to the model as an invocable function.
type Tool struct {
	Name        string
	Description string
	Params      []ParamSpec
	Invoke      func(rawParams map[string]interface{}) (*Result, error)
}

// ToTools binds every registered skill's Execute to ctx, producing the set
// of callables an AI dispatcher's model call can be given.
func (r *Registry) ToTools(ctx *Context) []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]Tool, 0, len(r.skills))
	for _, d := range r.skills {
		d := d
		tools = append(tools, Tool{
			Name:        d.Name,
			Description: d.Description,
			Params:      d.Params,
			Invoke: func(rawParams map[string]interface{}) (*Result, error) {
				if err := validateParams(d.Params, rawParams); err != nil {
					return &Result{Success: false, Error: &HandlerError{
						Code:    "F01",
						Message: err.Error(),
					}}, nil
				}
				return d.Execute(rawParams, ctx)
			},
		})
	}
	return tools
}

func validateParams(spec []ParamSpec, params map[string]interface{}) error {
	for _, p := range spec {
		v, ok := params[p.Name]
		if !ok {
			if p.Required {
				return errors.Errorf("missing required parameter %q", p.Name)
			}
			continue
		}
		if !typeMatches(p.Type, v) {
			return errors.Errorf("parameter %q has wrong type", p.Name)
		}
	}
	return nil
}

func typeMatches(t ParamType, v interface{}) bool {
	switch t {
	case ParamString:
		_, ok := v.(string)
		return ok
	case ParamNumber:
		switch v.(type) {
		case float64, int, int64:
			return true
		default:
			return false
		}
	case ParamBool:
		_, ok := v.(bool)
		return ok
	case ParamObject:
		_, ok := v.(map[string]interface{})
		return ok
	default:
		return true
	}
}
