package codec

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ALLiDoizCode/m2m-sub004/event"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	id, err := event.NewIdentity()
	require.NoError(t, err)

	ev := &event.Event{
		PubKey:    id.Pub,
		CreatedAt: 1700000000,
		Kind:      1,
		Tags:      event.Tags{{"e", "deadbeef"}},
		Content:   "hello mesh",
	}
	require.NoError(t, ev.Sign(id.Priv))

	raw, err := EncodeEnvelope(ev)
	require.NoError(t, err)

	got, err := DecodeEnvelope(raw)
	require.NoError(t, err)
	require.Equal(t, ev.ID, got.ID)
	require.Equal(t, ev.Content, got.Content)
	require.NoError(t, got.Verify())
}

func TestDecodeEnvelopeMalformed(t *testing.T) {
	_, err := DecodeEnvelope([]byte("not json"))
	require.Error(t, err)
}
