package packet

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPrepareRoundTrip(t *testing.T) {
	p := &Prepare{
		Amount:             big.NewInt(100),
		Destination:        "g.agent.alice",
		ExecutionCondition: [32]byte{1, 2, 3},
		ExpiresAt:          time.Now().Add(time.Minute).Truncate(time.Second).UTC(),
		Data:               []byte("payload"),
	}
	raw, err := EncodeFrame(p)
	require.NoError(t, err)

	decoded, err := DecodeFrame(raw)
	require.NoError(t, err)

	got, ok := decoded.(*Prepare)
	require.True(t, ok)
	require.Equal(t, p.Amount.String(), got.Amount.String())
	require.Equal(t, p.Destination, got.Destination)
	require.Equal(t, p.ExecutionCondition, got.ExecutionCondition)
	require.True(t, p.ExpiresAt.Equal(got.ExpiresAt))
	require.Equal(t, p.Data, got.Data)
}

func TestFulfillRoundTrip(t *testing.T) {
	f := &Fulfill{Fulfillment: [32]byte{9, 9, 9}, Data: []byte("ok")}
	raw, err := EncodeFrame(f)
	require.NoError(t, err)

	decoded, err := DecodeFrame(raw)
	require.NoError(t, err)
	got, ok := decoded.(*Fulfill)
	require.True(t, ok)
	require.Equal(t, f.Fulfillment, got.Fulfillment)
	require.Equal(t, f.Data, got.Data)
}

func TestRejectRoundTrip(t *testing.T) {
	r := NewReject(CodeUnhandled, "unhandled kind")
	raw, err := EncodeFrame(r)
	require.NoError(t, err)

	decoded, err := DecodeFrame(raw)
	require.NoError(t, err)
	got, ok := decoded.(*Reject)
	require.True(t, ok)
	require.Equal(t, r.Code, got.Code)
	require.Equal(t, r.Message, got.Message)
}

func TestDecodeFrameRejectsMalformed(t *testing.T) {
	_, err := DecodeFrame([]byte(`{"type":"PREPARE","amount":"notanumber"}`))
	require.Error(t, err)
}
