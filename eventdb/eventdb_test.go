package eventdb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ALLiDoizCode/m2m-sub004/event"
)

func mustIdentity(t *testing.T) *event.Identity {
	id, err := event.NewIdentity()
	require.NoError(t, err)
	return id
}

func TestInsertAndQueryByID(t *testing.T) {
	db, err := Open(":memory:")
	require.NoError(t, err)
	defer db.Close()

	id := mustIdentity(t)
	ev := &event.Event{
		PubKey:    id.Pub,
		CreatedAt: 1000,
		Kind:      1,
		Tags:      event.Tags{{"e", "abc"}},
		Content:   "hello",
	}
	require.NoError(t, ev.Sign(id.Priv))

	ctx := context.Background()
	require.NoError(t, db.Insert(ctx, ev))

	got, err := db.GetByID(ctx, ev.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, ev.Content, got.Content)
	require.Equal(t, ev.Kind, got.Kind)
}

func TestQueryByKindAndTag(t *testing.T) {
	db, err := Open(":memory:")
	require.NoError(t, err)
	defer db.Close()

	id := mustIdentity(t)
	ctx := context.Background()

	for i, kind := range []int{1, 2, 1} {
		ev := &event.Event{
			PubKey:    id.Pub,
			CreatedAt: int64(1000 + i),
			Kind:      kind,
			Tags:      event.Tags{{"e", "dep"}},
			Content:   "c",
		}
		require.NoError(t, ev.Sign(id.Priv))
		require.NoError(t, db.Insert(ctx, ev))
	}

	kindOne, err := db.Query(ctx, Query{Kinds: []int{1}})
	require.NoError(t, err)
	require.Len(t, kindOne, 2)

	byTag, err := db.Query(ctx, Query{TagName: "e", TagValue: "dep"})
	require.NoError(t, err)
	require.Len(t, byTag, 3)
}

func TestDeleteRemovesEvent(t *testing.T) {
	db, err := Open(":memory:")
	require.NoError(t, err)
	defer db.Close()

	id := mustIdentity(t)
	ev := &event.Event{PubKey: id.Pub, CreatedAt: 1, Kind: 1, Content: "x"}
	require.NoError(t, ev.Sign(id.Priv))

	ctx := context.Background()
	require.NoError(t, db.Insert(ctx, ev))
	require.NoError(t, db.Delete(ctx, ev.ID))

	got, err := db.GetByID(ctx, ev.ID)
	require.NoError(t, err)
	require.Nil(t, got)
}
