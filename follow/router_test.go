package follow

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNextHopLongestPrefixWins(t *testing.T) {
	r := New()
	r.AddPeer(&Peer{ID: "p1", Address: "g.agent"})
	r.AddPeer(&Peer{ID: "p2", Address: "g.agent.alice"})

	hop, ok := r.NextHop("g.agent.alice.inbox")
	require.True(t, ok)
	require.Equal(t, "p2", hop.ID)
}

func TestNextHopNoMatch(t *testing.T) {
	r := New()
	r.AddPeer(&Peer{ID: "p1", Address: "g.agent.bob"})

	_, ok := r.NextHop("g.other.carol")
	require.False(t, ok)
}

func TestApplyFollowUpserts(t *testing.T) {
	r := New()
	r.ApplyFollow(Entry{PubKey: "pk1", Address: "g.agent.alice", Petname: "alice"})
	r.ApplyFollow(Entry{PubKey: "pk1", Address: "g.agent.alice2", Petname: "alice"})

	follows := r.Follows()
	require.Len(t, follows, 1)
	require.Equal(t, "g.agent.alice2", follows[0].Address)
}

func TestSetLiveUnknownPeer(t *testing.T) {
	r := New()
	require.Error(t, r.SetLive("missing", true))
}
