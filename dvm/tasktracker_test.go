package dvm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ALLiDoizCode/m2m-sub004/event"
)

func TestTrackTaskNoopWhenDisabled(t *testing.T) {
	tr := NewTracker(TrackerConfig{Enabled: false}, nil)
	tr.TrackTask(idFromByte(1), TaskMeta{State: TaskQueued})
	_, ok := tr.Get(idFromByte(1))
	require.False(t, ok)
}

func TestUpdateProgressUnknownTaskFails(t *testing.T) {
	tr := NewTracker(TrackerConfig{Enabled: true}, nil)
	err := tr.UpdateProgress(idFromByte(1), 50, nil)
	require.Error(t, err)
}

func TestUpdateProgressOutOfRangeFails(t *testing.T) {
	tr := NewTracker(TrackerConfig{Enabled: true}, nil)
	tr.TrackTask(idFromByte(1), TaskMeta{State: TaskProcessing})
	require.Error(t, tr.UpdateProgress(idFromByte(1), 150, nil))
}

func TestUpdateProgressThrottlesEmission(t *testing.T) {
	var emitted []*event.Event
	tr := NewTracker(TrackerConfig{
		Enabled:             true,
		EmitProgressUpdates: true,
		MinUpdateInterval:   time.Hour,
	}, func(ev *event.Event) { emitted = append(emitted, ev) })

	tr.TrackTask(idFromByte(1), TaskMeta{State: TaskProcessing})

	require.NoError(t, tr.UpdateProgress(idFromByte(1), 10, nil))
	require.Len(t, emitted, 1, "first update since task creation should emit")

	require.NoError(t, tr.UpdateProgress(idFromByte(1), 20, nil))
	require.Len(t, emitted, 1, "second update within the throttle window should be buffered silently")

	meta, ok := tr.Get(idFromByte(1))
	require.True(t, ok)
	require.Equal(t, float64(20), *meta.Progress)
}

func TestTransitionStateAlwaysEmitsAndDeletesOnTerminal(t *testing.T) {
	var emitted []*event.Event
	tr := NewTracker(TrackerConfig{Enabled: true}, func(ev *event.Event) { emitted = append(emitted, ev) })
	tr.TrackTask(idFromByte(1), TaskMeta{State: TaskQueued})

	require.NoError(t, tr.TransitionState(idFromByte(1), TaskProcessing))
	require.Len(t, emitted, 1)
	status, _ := emitted[0].Tags.Find("status")
	require.Equal(t, "processing", status.Value(1))

	_, ok := tr.Get(idFromByte(1))
	require.True(t, ok, "non-terminal transition keeps metadata")

	require.NoError(t, tr.TransitionState(idFromByte(1), TaskCompleted))
	require.Len(t, emitted, 2)
	status, _ = emitted[1].Tags.Find("status")
	require.Equal(t, "success", status.Value(1))

	_, ok = tr.Get(idFromByte(1))
	require.False(t, ok, "terminal transition deletes metadata")
}
