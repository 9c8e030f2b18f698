package dvm

import (
	"sync"
	"time"

	"github.com/go-errors/errors"

	"github.com/ALLiDoizCode/m2m-sub004/event"
)

// TaskState is a tracked task's lifecycle state.
type TaskState string

const (
	TaskQueued     TaskState = "queued"
	TaskProcessing TaskState = "processing"
	TaskWaiting    TaskState = "waiting"
	TaskCompleted  TaskState = "completed"
	TaskFailed     TaskState = "failed"
	TaskCancelled  TaskState = "cancelled"
)

func (s TaskState) terminal() bool {
	switch s {
	case TaskCompleted, TaskFailed, TaskCancelled:
		return true
	default:
		return false
	}
}

// feedbackStatusForState maps a transition's new state to the feedback
// status it emits.
func feedbackStatusForState(s TaskState) FeedbackStatus {
	switch s {
	case TaskCompleted:
		return FeedbackSuccess
	case TaskFailed, TaskCancelled:
		return FeedbackError
	default:
		return FeedbackProcessing
	}
}

// TaskMeta is a tracked task's metadata.
type TaskMeta struct {
	TaskID         [32]byte
	RequesterPubKey [32]byte
	StartTime      time.Time
	State          TaskState
	Progress       *float64
	ETASeconds     *float64
	LastUpdateTime time.Time
}

// TrackerConfig configures a Tracker.
type TrackerConfig struct {
	Enabled              bool
	MinUpdateInterval    time.Duration
	EmitProgressUpdates  bool
}

// EmitFunc delivers a formatted feedback event to the transport/DB layer.
type EmitFunc func(ev *event.Event)

// Tracker is the task status tracker: a map of taskId to metadata, a
// feedback emitter, and a throttling config.
type Tracker struct {
	mu     sync.Mutex
	cfg    TrackerConfig
	emit   EmitFunc
	tasks  map[[32]byte]*TaskMeta
	nowFn  func() time.Time
}

// NewTracker constructs a Tracker.
func NewTracker(cfg TrackerConfig, emit EmitFunc) *Tracker {
	return &Tracker{
		cfg:   cfg,
		emit:  emit,
		tasks: make(map[[32]byte]*TaskMeta),
		nowFn: time.Now,
	}
}

// TrackTask registers a new task. No-op if the tracker is disabled.
func (t *Tracker) TrackTask(id [32]byte, meta TaskMeta) {
	if !t.cfg.Enabled {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	cp := meta
	cp.TaskID = id
	t.tasks[id] = &cp
}

// UpdateProgress updates a tracked task's progress/eta. Fails if id is
// unknown or progress is out of [0,100]. The in-memory metadata is always
// updated; a processing-status feedback event is emitted only when the
// tracker is enabled, EmitProgressUpdates is set, and the minimum update
// interval has elapsed since the task's last update — otherwise the update
// is buffered silently.
func (t *Tracker) UpdateProgress(id [32]byte, progress float64, eta *float64) error {
	if progress < 0 || progress > 100 {
		return errors.Errorf("InvalidArgument: progress %v out of range [0,100]", progress)
	}

	t.mu.Lock()
	meta, ok := t.tasks[id]
	if !ok {
		t.mu.Unlock()
		return errors.Errorf("unknown task %x", id)
	}

	now := t.nowFn()
	meta.Progress = &progress
	meta.ETASeconds = eta

	shouldEmit := t.cfg.Enabled && t.cfg.EmitProgressUpdates &&
		now.Sub(meta.LastUpdateTime) >= t.cfg.MinUpdateInterval
	if shouldEmit {
		meta.LastUpdateTime = now
	}
	metaCopy := *meta
	t.mu.Unlock()

	if !shouldEmit || t.emit == nil {
		return nil
	}

	ev, err := FormatTaskFeedback(TaskFeedback{
		Feedback: Feedback{
			JobEventID:      id,
			RequesterPubKey: metaCopy.RequesterPubKey,
			Status:          FeedbackProcessing,
		},
		Progress:   metaCopy.Progress,
		ETASeconds: metaCopy.ETASeconds,
	}, now.Unix())
	if err != nil {
		return err
	}
	t.emit(ev)
	return nil
}

// TransitionState updates a task's state and lastUpdateTime, always
// emitting a mapped feedback event regardless of the progress-update
// throttle, and deletes the task's metadata once it reaches a terminal
// state.
func (t *Tracker) TransitionState(id [32]byte, newState TaskState) error {
	t.mu.Lock()
	meta, ok := t.tasks[id]
	if !ok {
		t.mu.Unlock()
		return errors.Errorf("unknown task %x", id)
	}

	now := t.nowFn()
	meta.State = newState
	meta.LastUpdateTime = now
	metaCopy := *meta

	if newState.terminal() {
		delete(t.tasks, id)
	}
	t.mu.Unlock()

	if t.emit == nil {
		return nil
	}

	ev, err := FormatTaskFeedback(TaskFeedback{
		Feedback: Feedback{
			JobEventID:      id,
			RequesterPubKey: metaCopy.RequesterPubKey,
			Status:          feedbackStatusForState(newState),
		},
		Progress:   metaCopy.Progress,
		ETASeconds: metaCopy.ETASeconds,
	}, now.Unix())
	if err != nil {
		return err
	}
	t.emit(ev)
	return nil
}

// Get returns a copy of a task's metadata, if tracked.
func (t *Tracker) Get(id [32]byte) (TaskMeta, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	meta, ok := t.tasks[id]
	if !ok {
		return TaskMeta{}, false
	}
	return *meta, true
}
