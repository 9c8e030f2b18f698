package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignAndVerifyRoundTrip(t *testing.T) {
	id, err := NewIdentity()
	require.NoError(t, err)

	ev := &Event{
		PubKey:    id.Pub,
		CreatedAt: time.Now().Unix(),
		Kind:      1,
		Tags:      Tags{{"e", "deadbeef"}},
		Content:   "hello mesh",
	}
	require.NoError(t, ev.Sign(id.Priv))
	require.NoError(t, ev.Verify())
}

func TestVerifyRejectsTamperedContent(t *testing.T) {
	id, err := NewIdentity()
	require.NoError(t, err)

	ev := &Event{PubKey: id.Pub, CreatedAt: 1000, Kind: 1, Content: "original"}
	require.NoError(t, ev.Sign(id.Priv))

	ev.Content = "tampered"
	require.Error(t, ev.Verify())
}

func TestTagCounts(t *testing.T) {
	ev := &Event{Tags: Tags{{"e", "a"}, {"e", "b"}, {"p", "c"}}}
	counts := ev.TagCounts()
	require.Equal(t, 2, counts["e"])
	require.Equal(t, 1, counts["p"])
}

func TestTagsFindAll(t *testing.T) {
	tags := Tags{{"i", "x", "text"}, {"i", "y", "url"}, {"output", "text/plain"}}
	inputs := tags.FindAll("i")
	require.Len(t, inputs, 2)
}
