package dvm

import (
	"context"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ALLiDoizCode/m2m-sub004/event"
	"github.com/ALLiDoizCode/m2m-sub004/eventdb"
)

func openTestDB(t *testing.T) *eventdb.DB {
	t.Helper()
	db, err := eventdb.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func idFromByte(b byte) [32]byte {
	var id [32]byte
	id[0] = b
	return id
}

func TestResolveReturnsEmptyWithoutDependencies(t *testing.T) {
	db := openTestDB(t)
	req := &JobRequest{Event: &event.Event{ID: idFromByte(1), CreatedAt: 100}}

	out, err := Resolve(context.Background(), req, db, 0, nil)
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestResolveHappyPath(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	depID := idFromByte(2)
	depEvent := &event.Event{
		ID:        depID,
		Kind:      6001,
		CreatedAt: 100,
		Content:   "dep content",
		Tags:      event.Tags{{"status", "success"}},
	}
	require.NoError(t, db.Insert(ctx, depEvent))

	reqEvent := &event.Event{ID: idFromByte(3), Kind: 5001, CreatedAt: 200}
	req := &JobRequest{Event: reqEvent, Dependencies: []string{hex.EncodeToString(depID[:])}}

	out, err := Resolve(ctx, req, db, 0, nil)
	require.NoError(t, err)
	require.Len(t, out, 1)
	rec := out[hex.EncodeToString(depID[:])]
	require.Equal(t, 6001, rec.Kind)
	require.Equal(t, "dep content", rec.Content)
	require.Equal(t, "success", rec.Status)
}

func TestResolveMissingDependency(t *testing.T) {
	db := openTestDB(t)
	reqEvent := &event.Event{ID: idFromByte(4), Kind: 5001, CreatedAt: 200}
	missing := idFromByte(9)
	req := &JobRequest{Event: reqEvent, Dependencies: []string{hex.EncodeToString(missing[:])}}

	_, err := Resolve(context.Background(), req, db, 0, nil)
	require.Error(t, err)
	require.Equal(t, ErrMissingDependency, err.(*ResolveError).Code)
}

func TestResolveInvalidTimestamp(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	depID := idFromByte(5)
	depEvent := &event.Event{ID: depID, Kind: 6001, CreatedAt: 300} // newer than requester
	require.NoError(t, db.Insert(ctx, depEvent))

	reqEvent := &event.Event{ID: idFromByte(6), Kind: 5001, CreatedAt: 200}
	req := &JobRequest{Event: reqEvent, Dependencies: []string{hex.EncodeToString(depID[:])}}

	_, err := Resolve(ctx, req, db, 0, nil)
	require.Error(t, err)
	require.Equal(t, ErrInvalidDependencyTimestamp, err.(*ResolveError).Code)
}

func TestResolveCircularDependency(t *testing.T) {
	db := openTestDB(t)
	reqEvent := &event.Event{ID: idFromByte(7), Kind: 5001, CreatedAt: 200}
	depID := idFromByte(8)
	req := &JobRequest{Event: reqEvent, Dependencies: []string{hex.EncodeToString(depID[:])}}

	visited := map[string]bool{hex.EncodeToString(reqEvent.ID[:]): true}
	_, err := Resolve(context.Background(), req, db, 0, visited)
	require.Error(t, err)
	require.Equal(t, ErrCircularDependency, err.(*ResolveError).Code)
}

func TestResolveMaxDepthExceeded(t *testing.T) {
	db := openTestDB(t)
	reqEvent := &event.Event{ID: idFromByte(1), CreatedAt: 100}
	req := &JobRequest{Event: reqEvent, Dependencies: []string{"ab"}}

	_, err := Resolve(context.Background(), req, db, 11, nil)
	require.Error(t, err)
	require.Equal(t, ErrMaxDepthExceeded, err.(*ResolveError).Code)
}
