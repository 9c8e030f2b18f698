package dispatch

import (
	"context"
	"testing"

	"github.com/go-errors/errors"
	"github.com/stretchr/testify/require"

	"github.com/ALLiDoizCode/m2m-sub004/budget"
	"github.com/ALLiDoizCode/m2m-sub004/event"
	"github.com/ALLiDoizCode/m2m-sub004/llm"
	"github.com/ALLiDoizCode/m2m-sub004/packet"
	"github.com/ALLiDoizCode/m2m-sub004/prompt"
	"github.com/ALLiDoizCode/m2m-sub004/skill"
)

type fakeModel struct {
	resp      *llm.Response
	err       error
	callCount int
}

func (f *fakeModel) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	f.callCount++
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func newTestAI(model llm.Client, b *budget.Budget) (*AI, *fakeDirectFallback) {
	reg := skill.NewRegistry()
	pb := prompt.New("agent", [32]byte{}, "g.agent", "", reg)
	fb := &fakeDirectFallback{}
	return &AI{
		Enabled:  true,
		Skills:   reg,
		Prompt:   pb,
		Budget:   b,
		Model:    model,
		Fallback: fb,
		Timeout:  0,
		MaxSteps: 0,
	}, fb
}

type fakeDirectFallback struct {
	called bool
}

func (f *fakeDirectFallback) HandleEvent(ctx *skill.Context) (*skill.Result, error) {
	f.called = true
	return &skill.Result{Success: true}, nil
}

func testCtx() *skill.Context {
	return &skill.Context{Event: &event.Event{Kind: 1}}
}

func TestAIDispatcherDisabledUsesFallbackWithoutModelCall(t *testing.T) {
	model := &fakeModel{}
	b := budget.New(budget.Config{Cap: 1000})
	ai, fb := newTestAI(model, b)
	ai.Enabled = false

	res, err := ai.HandleEvent(testCtx())
	require.NoError(t, err)
	require.True(t, res.Success)
	require.True(t, fb.called)
	require.Equal(t, 0, model.callCount)
}

func TestAIDispatcherBudgetExhaustedNoFallbackReturnsT03(t *testing.T) {
	model := &fakeModel{}
	b := budget.New(budget.Config{Cap: 10})
	b.RecordUsage(0, 0, 10)
	ai, fb := newTestAI(model, b)
	ai.FallbackOnExhaustion = false

	res, err := ai.HandleEvent(testCtx())
	require.NoError(t, err)
	require.False(t, res.Success)
	require.Equal(t, packet.CodeBudgetExhausted, res.Error.Code)
	require.False(t, fb.called)
	require.Equal(t, 0, model.callCount)
}

func TestAIDispatcherBudgetExhaustedWithFallback(t *testing.T) {
	model := &fakeModel{}
	b := budget.New(budget.Config{Cap: 10})
	b.RecordUsage(0, 0, 10)
	ai, fb := newTestAI(model, b)
	ai.FallbackOnExhaustion = true

	res, err := ai.HandleEvent(testCtx())
	require.NoError(t, err)
	require.True(t, res.Success)
	require.True(t, fb.called)
	require.Equal(t, 0, model.callCount)
}

func TestAIDispatcherModelErrorFallsBack(t *testing.T) {
	model := &fakeModel{err: errors.New("model unreachable")}
	b := budget.New(budget.Config{Cap: 1000})
	ai, fb := newTestAI(model, b)

	res, err := ai.HandleEvent(testCtx())
	require.NoError(t, err)
	require.True(t, res.Success)
	require.True(t, fb.called)
}

func TestAIDispatcherExtractsTopLevelToolResult(t *testing.T) {
	model := &fakeModel{resp: &llm.Response{
		ToolResults: []llm.ToolResult{
			{Name: "skillA", Result: &skill.Result{Success: true}},
		},
		Usage: llm.Usage{Prompt: 5, Completion: 5, Total: 10},
	}}
	b := budget.New(budget.Config{Cap: 1000})
	ai, fb := newTestAI(model, b)

	res, err := ai.HandleEvent(testCtx())
	require.NoError(t, err)
	require.True(t, res.Success)
	require.False(t, fb.called)
	require.Equal(t, int64(10), b.Used())
}

func TestAIDispatcherNoToolCallReturnsF99(t *testing.T) {
	model := &fakeModel{resp: &llm.Response{Text: "", Usage: llm.Usage{Total: 3}}}
	b := budget.New(budget.Config{Cap: 1000})
	ai, _ := newTestAI(model, b)

	res, err := ai.HandleEvent(testCtx())
	require.NoError(t, err)
	require.False(t, res.Success)
	require.Equal(t, packet.CodeUnhandled, res.Error.Code)
}
