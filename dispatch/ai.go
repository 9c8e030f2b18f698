package dispatch

import (
	"context"
	"time"

	"github.com/ALLiDoizCode/m2m-sub004/budget"
	"github.com/ALLiDoizCode/m2m-sub004/llm"
	"github.com/ALLiDoizCode/m2m-sub004/packet"
	"github.com/ALLiDoizCode/m2m-sub004/prompt"
	"github.com/ALLiDoizCode/m2m-sub004/retry"
	"github.com/ALLiDoizCode/m2m-sub004/skill"
)

const (
	// DefaultTimeout is the AI dispatcher's default model-call bound.
	DefaultTimeout = 10000 * time.Millisecond
	// DefaultMaxSteps is the default per-request step cap.
	DefaultMaxSteps = 5
)

// AI is the AI-mediated dispatcher: it builds a per-event prompt, offers
// the live skill registry as tools, calls the configured model client
// within a budget and timeout, and extracts a handler result from whatever
// the model did.
type AI struct {
	Enabled              bool
	FallbackOnExhaustion bool

	Skills   *skill.Registry
	Prompt   *prompt.Builder
	Budget   *budget.Budget
	Model    llm.Client
	Fallback Dispatcher

	Timeout  time.Duration
	MaxSteps int
}

// eventView lets callers supply the destination/amount context the prompt
// builder needs without the dispatcher reaching back into packet internals.
type eventView = prompt.EventView

// HandleEventWithView runs the AI dispatch pipeline for ctx, using view to
// render the per-event prompt form.
func (d *AI) HandleEventWithView(parent context.Context, ctx *skill.Context, view eventView) (*skill.Result, error) {
	if !d.Enabled {
		return d.Fallback.HandleEvent(ctx)
	}

	if !d.Budget.CanSpend(0) {
		if d.FallbackOnExhaustion {
			return d.Fallback.HandleEvent(ctx)
		}
		return &skill.Result{
			Success: false,
			Error:   &skill.HandlerError{Code: packet.CodeBudgetExhausted, Message: "AI agent budget exhausted"},
		}, nil
	}

	system := d.Prompt.Static()
	user := d.Prompt.ForEvent(view)
	tools := d.Skills.ToTools(ctx)

	timeout := d.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	maxSteps := d.MaxSteps
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}

	raw, err := retry.WithTimeout(parent, timeout, func(cctx context.Context) (interface{}, error) {
		return d.Model.Complete(cctx, llm.Request{
			System:   system,
			User:     user,
			Tools:    tools,
			MaxSteps: maxSteps,
		})
	})
	if err != nil {
		log.Debugf("AI dispatcher: model call failed, falling back: %v", err)
		return d.Fallback.HandleEvent(ctx)
	}

	resp := raw.(*llm.Response)
	d.Budget.RecordUsage(resp.Usage.Prompt, resp.Usage.Completion, resp.Usage.Total)

	return extractResult(resp), nil
}

// HandleEvent implements Dispatcher with an empty event view, for callers
// that don't need the prompt's bounded event description (e.g. tests that
// exercise only the extraction/fallback paths).
func (d *AI) HandleEvent(ctx *skill.Context) (*skill.Result, error) {
	return d.HandleEventWithView(context.Background(), ctx, eventView{})
}

// extractResult implements the dispatcher's ordered result-extraction rule.
func extractResult(resp *llm.Response) *skill.Result {
	if len(resp.ToolResults) > 0 {
		last := resp.ToolResults[len(resp.ToolResults)-1]
		if last.Result != nil {
			return last.Result
		}
	}

	for i := len(resp.Steps) - 1; i >= 0; i-- {
		step := resp.Steps[i]
		for j := len(step.ToolResults) - 1; j >= 0; j-- {
			if step.ToolResults[j].Result != nil {
				return step.ToolResults[j].Result
			}
		}
	}

	msg := resp.Text
	if msg == "" {
		msg = "No matching skill for this event kind"
	}
	return &skill.Result{
		Success: false,
		Error:   &skill.HandlerError{Code: packet.CodeUnhandled, Message: msg},
	}
}
