package skill

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func echoSkill() *Descriptor {
	return &Descriptor{
		Name:        "echo",
		Description: "echoes the message parameter back",
		Params: []ParamSpec{
			{Name: "message", Type: ParamString, Required: true},
		},
		Kinds: []int{1},
		Execute: func(params map[string]interface{}, ctx *Context) (*Result, error) {
			return &Result{Success: true}, nil
		},
	}
}

func TestRegisterDuplicateRejected(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(echoSkill()))
	require.Error(t, r.Register(echoSkill()))
	require.Equal(t, 1, r.Size())
}

func TestGetAndHas(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(echoSkill()))

	require.True(t, r.Has("echo"))
	d, ok := r.Get("echo")
	require.True(t, ok)
	require.Equal(t, "echo", d.Name)

	require.False(t, r.Has("missing"))
}

func TestUnregister(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(echoSkill()))
	r.Unregister("echo")
	require.False(t, r.Has("echo"))
	require.Equal(t, 0, r.Size())

	// unregistering an unknown skill is a no-op, not an error.
	r.Unregister("never-registered")
}

func TestSkillsForKindMatchesDeclaredAndUndeclared(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(echoSkill())) // declares kind 1

	wildcard := &Descriptor{
		Name:        "wildcard",
		Description: "matches any kind",
		Execute: func(params map[string]interface{}, ctx *Context) (*Result, error) {
			return &Result{Success: true}, nil
		},
	}
	require.NoError(t, r.Register(wildcard))

	forKind1 := r.SkillsForKind(1)
	require.Len(t, forKind1, 2)

	forKind99 := r.SkillsForKind(99)
	require.Len(t, forKind99, 1)
	require.Equal(t, "wildcard", forKind99[0].Name)
}

func TestSummaryReflectsRegisteredSkills(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(echoSkill()))

	summaries := r.Summary()
	require.Len(t, summaries, 1)
	require.Equal(t, "echo", summaries[0].Name)
	require.Equal(t, []int{1}, summaries[0].Kinds)
}

func TestToToolsInvokesBoundExecute(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(echoSkill()))

	ctx := &Context{SourcePeerID: "peer1"}
	tools := r.ToTools(ctx)
	require.Len(t, tools, 1)
	require.Equal(t, "echo", tools[0].Name)

	res, err := tools[0].Invoke(map[string]interface{}{"message": "hi"})
	require.NoError(t, err)
	require.True(t, res.Success)
}

func TestToToolsRejectsMissingRequiredParam(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(echoSkill()))

	tools := r.ToTools(&Context{})
	res, err := tools[0].Invoke(map[string]interface{}{})
	require.NoError(t, err)
	require.False(t, res.Success)
	require.Equal(t, "F01", res.Error.Code)
}
