package dispatch

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ALLiDoizCode/m2m-sub004/event"
	"github.com/ALLiDoizCode/m2m-sub004/packet"
	"github.com/ALLiDoizCode/m2m-sub004/skill"
)

func TestDirectDispatchesRegisteredHandler(t *testing.T) {
	d := NewDirect()
	d.RegisterHandler(1, func(ctx *skill.Context) (*skill.Result, error) {
		return &skill.Result{Success: true}, nil
	})

	res, err := d.HandleEvent(&skill.Context{Event: &event.Event{Kind: 1}})
	require.NoError(t, err)
	require.True(t, res.Success)
}

func TestDirectUnhandledKindReturnsF99(t *testing.T) {
	d := NewDirect()
	res, err := d.HandleEvent(&skill.Context{Event: &event.Event{Kind: 999}})
	require.NoError(t, err)
	require.False(t, res.Success)
	require.Equal(t, packet.CodeUnhandled, res.Error.Code)
}
