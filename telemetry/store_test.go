package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEmitAndQuery(t *testing.T) {
	store, err := NewStore(":memory:", "node-1")
	require.NoError(t, err)
	defer store.Close()

	store.Emit(Event{Type: TypePacketReceived, Fields: map[string]interface{}{
		"packetType": "fulfill",
		"peerId":     "peer-a",
	}})

	got, err := store.Query(context.Background(), QueryFilter{Types: []Type{TypePacketReceived}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "node-1", got[0].NodeID)
	require.Equal(t, "fulfill", got[0].Fields["packetType"])
}

func TestSubscribeReceivesLiveEvents(t *testing.T) {
	store, err := NewStore(":memory:", "node-1")
	require.NoError(t, err)
	defer store.Close()

	ch, cancel := store.Subscribe()
	defer cancel()

	store.Emit(Event{Type: TypeAgentChannelOpened})

	select {
	case ev := <-ch:
		require.Equal(t, TypeAgentChannelOpened, ev.Type)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for subscriber delivery")
	}
}

func TestTerminalEventClassification(t *testing.T) {
	require.True(t, TypeAgentChannelClosed.terminal())
	require.False(t, TypePacketReceived.terminal())
}
