// Package budget implements the AI dispatcher's rolling token-usage budget:
// a window of usage records, a cap, and threshold warning latches.
package budget

import (
	"container/list"
	"sync"
	"time"

	"github.com/ALLiDoizCode/m2m-sub004/telemetry"
)

// Record is one usage observation: a millisecond timestamp plus the
// prompt/completion/total token counts of a single model call.
type Record struct {
	TimestampMs int64
	Prompt      int64
	Completion  int64
	Total       int64
}

// EmitFunc delivers a telemetry record for the budget's state transitions.
// Any error it returns is swallowed by the caller: a broken telemetry sink
// must never perturb budget accounting.
type EmitFunc func(t telemetry.Type, fields map[string]interface{}) error

// Config configures a Budget.
type Config struct {
	// Window is the rolling duration usage records are retained for.
	// Defaults to one hour.
	Window time.Duration
	// Cap is the maximum cumulative token count permitted within Window.
	Cap int64
	Emit EmitFunc
}

const defaultWindow = time.Hour

// Budget is the node's single AI-token-spend accounting resource. It is
// mutated only by the AI dispatcher and exposes atomic canSpend/recordUsage
// operations.
type Budget struct {
	mu     sync.Mutex
	window time.Duration
	cap    int64
	emit   EmitFunc
	// records holds Record values ordered oldest-first; a list gives O(1)
	// eviction from the front during pruning.
	records *list.List
	used    int64
	warn80  bool
	warn95  bool

	now func() time.Time
}

// New constructs a Budget from cfg, applying the default one-hour window
// when cfg.Window is zero.
func New(cfg Config) *Budget {
	w := cfg.Window
	if w <= 0 {
		w = defaultWindow
	}
	return &Budget{
		window:  w,
		cap:     cfg.Cap,
		emit:    cfg.Emit,
		records: list.New(),
		now:     time.Now,
	}
}

// prune drops records older than now-window and recomputes used. Caller
// must hold mu.
func (b *Budget) prune(nowMs int64) {
	cutoff := nowMs - b.window.Milliseconds()
	for e := b.records.Front(); e != nil; {
		next := e.Next()
		r := e.Value.(Record)
		if r.TimestampMs < cutoff {
			b.used -= r.Total
			b.records.Remove(e)
			e = next
			continue
		}
		break
	}
	if b.records.Len() == 0 {
		b.used = 0
	}

	usage := b.usageRatio()
	if usage < 0.80 {
		b.warn80 = false
	}
	if usage < 0.95 {
		b.warn95 = false
	}
}

func (b *Budget) usageRatio() float64 {
	if b.cap <= 0 {
		return 0
	}
	return float64(b.used) / float64(b.cap)
}

func (b *Budget) nowMs() int64 {
	return b.now().UnixNano() / int64(time.Millisecond)
}

// CanSpend reports whether at least est additional tokens (default 0) fit
// within the remaining budget after pruning stale records. The comparison
// is strict: a zero remainder cannot spend even zero tokens.
func (b *Budget) CanSpend(est int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.prune(b.nowMs())
	remaining := b.cap - b.used
	return remaining > est
}

// RecordUsage appends a usage record at the current time, prunes stale
// records, recomputes warning-latch state, and emits telemetry. It always
// emits TokenUsage; it emits BudgetWarning the first time usage crosses
// the 80% or 95% thresholds since the latch last cleared, and
// BudgetExhausted when the remaining budget reaches zero.
func (b *Budget) RecordUsage(prompt, completion, total int64) {
	b.mu.Lock()

	now := b.nowMs()
	b.records.PushBack(Record{TimestampMs: now, Prompt: prompt, Completion: completion, Total: total})
	b.used += total
	b.prune(now)

	usage := b.usageRatio()
	remaining := b.cap - b.used

	type pendingEmit struct {
		t      telemetry.Type
		fields map[string]interface{}
	}
	var pending []pendingEmit

	pending = append(pending, pendingEmit{telemetry.TypeAITokenUsage, map[string]interface{}{
		"prompt":     prompt,
		"completion": completion,
		"total":      total,
		"used":       b.used,
		"cap":        b.cap,
	}})

	if usage >= 0.80 && !b.warn80 {
		b.warn80 = true
		pending = append(pending, pendingEmit{telemetry.TypeAIBudgetWarning, map[string]interface{}{
			"threshold": 0.80,
			"used":      b.used,
			"cap":       b.cap,
		}})
	}
	if usage >= 0.95 && !b.warn95 {
		b.warn95 = true
		pending = append(pending, pendingEmit{telemetry.TypeAIBudgetWarning, map[string]interface{}{
			"threshold": 0.95,
			"used":      b.used,
			"cap":       b.cap,
		}})
	}

	if remaining <= 0 {
		pending = append(pending, pendingEmit{telemetry.TypeAIBudgetExhausted, map[string]interface{}{
			"used": b.used,
			"cap":  b.cap,
		}})
	}

	emit := b.emit
	b.mu.Unlock()

	if emit == nil {
		return
	}
	for _, p := range pending {
		safeEmit(emit, p.t, p.fields)
	}
}

// safeEmit invokes emit synchronously, swallowing both returned errors and
// panics: telemetry failures must never perturb budget state.
func safeEmit(emit EmitFunc, t telemetry.Type, fields map[string]interface{}) {
	defer func() {
		if r := recover(); r != nil {
			log.Warnf("budget: telemetry emit panicked: %v", r)
		}
	}()
	if err := emit(t, fields); err != nil {
		log.Warnf("budget: telemetry emit failed: %v", err)
	}
}

// Reset clears every usage record and both warning latches.
func (b *Budget) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.records.Init()
	b.used = 0
	b.warn80 = false
	b.warn95 = false
}

// Used returns the current in-window usage total after pruning.
func (b *Budget) Used() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.prune(b.nowMs())
	return b.used
}

// Cap returns the configured token cap.
func (b *Budget) Cap() int64 {
	return b.cap
}
