package prompt

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ALLiDoizCode/m2m-sub004/event"
	"github.com/ALLiDoizCode/m2m-sub004/skill"
)

func registryWithOneSkill() *skill.Registry {
	r := skill.NewRegistry()
	_ = r.Register(&skill.Descriptor{
		Name:        "greet",
		Description: "says hello",
		Params: []skill.ParamSpec{
			{Name: "name", Type: skill.ParamString, Required: true, Description: "who to greet"},
		},
	})
	return r
}

func TestStaticNamesIdentityAndSkills(t *testing.T) {
	b := New("alice-agent", [32]byte{0xAB}, "g.agent.alice", "friendly and terse", registryWithOneSkill())

	out := b.Static()
	require.Contains(t, out, "alice-agent")
	require.Contains(t, out, "g.agent.alice")
	require.Contains(t, out, "greet")
	require.Contains(t, out, "says hello")
	require.Contains(t, out, "choose exactly one skill")
	require.Contains(t, out, "friendly and terse")
	require.NotContains(t, out, "websocket")
	require.NotContains(t, out, "TCP")
}

func TestForEventIncludesBoundedEventView(t *testing.T) {
	b := New("alice-agent", [32]byte{0xAB}, "g.agent.alice", "", registryWithOneSkill())

	ev := &event.Event{
		Kind:    1,
		Content: "hello there",
		Tags:    event.Tags{{"p", "abc"}, {"p", "def"}, {"e", "xyz"}},
	}

	out := b.ForEvent(EventView{
		Kind:         1,
		SourcePeerID: "peer1",
		Amount:       big.NewInt(42),
		Destination:  "g.agent.bob",
		Event:        ev,
	})

	require.Contains(t, out, "peer1")
	require.Contains(t, out, "42")
	require.Contains(t, out, "g.agent.bob")
	require.Contains(t, out, "hello there")
	require.Contains(t, out, "p=2")
	require.Contains(t, out, "e=1")
}

func TestForEventTruncatesLongContent(t *testing.T) {
	b := New("alice-agent", [32]byte{0xAB}, "g.agent.alice", "", registryWithOneSkill())

	longContent := ""
	for i := 0; i < 1000; i++ {
		longContent += "x"
	}
	ev := &event.Event{Kind: 1, Content: longContent}

	out := b.ForEvent(EventView{Kind: 1, Event: ev})
	require.Less(t, len(out), len(longContent)+500)
}
