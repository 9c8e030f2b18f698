package node

import (
	"context"
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ALLiDoizCode/m2m-sub004/codec"
	"github.com/ALLiDoizCode/m2m-sub004/dispatch"
	"github.com/ALLiDoizCode/m2m-sub004/event"
	"github.com/ALLiDoizCode/m2m-sub004/eventdb"
	"github.com/ALLiDoizCode/m2m-sub004/follow"
	"github.com/ALLiDoizCode/m2m-sub004/packet"
	"github.com/ALLiDoizCode/m2m-sub004/skill"
	"github.com/ALLiDoizCode/m2m-sub004/telemetry"
)

func newTestNode(t *testing.T) *Node {
	t.Helper()

	dir := t.TempDir()
	db, err := eventdb.Open(filepath.Join(dir, "events.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := telemetry.NewStore(filepath.Join(dir, "telemetry.db"), "test-node")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	id, err := event.NewIdentity()
	require.NoError(t, err)

	registry := skill.NewRegistry()
	direct := dispatch.NewDirect()

	require.NoError(t, registry.Register(&skill.Descriptor{
		Name:        "store_note",
		Description: "stores the incoming event",
		Kinds:       []int{1},
		Execute: func(params map[string]interface{}, ctx *skill.Context) (*skill.Result, error) {
			if err := ctx.EventDB.Insert(context.Background(), ctx.Event); err != nil {
				return &skill.Result{Success: false, Error: &skill.HandlerError{Code: "F01", Message: err.Error()}}, nil
			}
			return &skill.Result{Success: true}, nil
		},
	}))
	direct.RegisterHandler(1, func(ctx *skill.Context) (*skill.Result, error) {
		d, _ := registry.Get("store_note")
		return d.Execute(nil, ctx)
	})

	return New(Config{
		ID:         "test-node",
		Identity:   id,
		EventDB:    db,
		Telemetry:  store,
		Router:     follow.New(),
		Skills:     registry,
		Dispatcher: direct,
	})
}

func signedKindEvent(t *testing.T, id *event.Identity, kind int) *event.Event {
	t.Helper()
	ev := &event.Event{
		PubKey:    id.Pub,
		CreatedAt: time.Now().Unix(),
		Kind:      kind,
		Content:   "hello",
	}
	require.NoError(t, ev.Sign(id.Priv))
	return ev
}

func TestProcessIncomingPacketFulfillPath(t *testing.T) {
	n := newTestNode(t)

	ev := signedKindEvent(t, n.Identity, 1)
	payload, err := codec.EncodeEnvelope(ev)
	require.NoError(t, err)

	prep := &packet.Prepare{
		Amount:             big.NewInt(100),
		Destination:        "g.agent.test",
		ExecutionCondition: n.Identity.Condition,
		ExpiresAt:          time.Now().Add(time.Minute),
		Data:               payload,
	}

	resp := n.ProcessIncomingPacket(prep, "peer-1")
	fulfill, ok := resp.(*packet.Fulfill)
	require.True(t, ok, "expected a fulfill response, got %T", resp)
	require.Equal(t, n.Identity.Fulfillment, fulfill.Fulfillment)

	stored, err := n.EventDB.GetByID(context.Background(), ev.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
}

func TestProcessIncomingPacketRejectsUnknownKind(t *testing.T) {
	n := newTestNode(t)

	ev := signedKindEvent(t, n.Identity, 42)
	payload, err := codec.EncodeEnvelope(ev)
	require.NoError(t, err)

	prep := &packet.Prepare{
		Amount:             big.NewInt(10),
		Destination:        "g.agent.test",
		ExecutionCondition: n.Identity.Condition,
		ExpiresAt:          time.Now().Add(time.Minute),
		Data:               payload,
	}

	resp := n.ProcessIncomingPacket(prep, "peer-1")
	reject, ok := resp.(*packet.Reject)
	require.True(t, ok, "expected a reject response, got %T", resp)
	require.Equal(t, packet.CodeUnhandled, reject.Code)

	stored, err := n.EventDB.GetByID(context.Background(), ev.ID)
	require.NoError(t, err)
	require.Nil(t, stored)
}

func TestProcessIncomingPacketRejectsExpired(t *testing.T) {
	n := newTestNode(t)

	ev := signedKindEvent(t, n.Identity, 1)
	payload, err := codec.EncodeEnvelope(ev)
	require.NoError(t, err)

	prep := &packet.Prepare{
		Amount:             big.NewInt(10),
		Destination:        "g.agent.test",
		ExecutionCondition: n.Identity.Condition,
		ExpiresAt:          time.Now().Add(-time.Second),
		Data:               payload,
	}

	resp := n.ProcessIncomingPacket(prep, "peer-1")
	reject, ok := resp.(*packet.Reject)
	require.True(t, ok)
	require.Equal(t, packet.CodeExpired, reject.Code)
}

func TestProcessIncomingPacketRejectsMalformedPayload(t *testing.T) {
	n := newTestNode(t)

	prep := &packet.Prepare{
		Amount:             big.NewInt(10),
		Destination:        "g.agent.test",
		ExecutionCondition: n.Identity.Condition,
		ExpiresAt:          time.Now().Add(time.Minute),
		Data:               []byte("not json"),
	}

	resp := n.ProcessIncomingPacket(prep, "peer-1")
	reject, ok := resp.(*packet.Reject)
	require.True(t, ok)
	require.Equal(t, packet.CodeMalformed, reject.Code)
}

func TestPendingSweepRejectsExpiredOutbound(t *testing.T) {
	n := newTestNode(t)
	n.pending.put("peer-1", &pendingRecord{
		Destination: "g.agent.alice",
		Amount:      big.NewInt(5),
		SentAt:      time.Now().Add(-time.Minute),
		ExpiresAt:   time.Now().Add(-time.Second),
	})

	n.sweepExpiredPending(time.Now())

	_, ok := n.pending.takeAndDelete("peer-1")
	require.False(t, ok, "expired record should have been swept")
}
