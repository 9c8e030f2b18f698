package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ALLiDoizCode/m2m-sub004/skill"
)

func TestStubClientInvokesFirstTool(t *testing.T) {
	var invoked bool
	tool := skill.Tool{
		Name: "echo",
		Invoke: func(raw map[string]interface{}) (*skill.Result, error) {
			invoked = true
			return &skill.Result{Success: true}, nil
		},
	}

	c := &StubClient{}
	resp, err := c.Complete(context.Background(), Request{Tools: []skill.Tool{tool}})
	require.NoError(t, err)
	require.True(t, invoked)
	require.Equal(t, FinishToolCalls, resp.FinishReason)
	require.Len(t, resp.ToolResults, 1)
	require.True(t, resp.ToolResults[0].Result.Success)
	require.Equal(t, int64(60), resp.Usage.Total)
}

func TestStubClientNoToolsReturnsStop(t *testing.T) {
	c := &StubClient{}
	resp, err := c.Complete(context.Background(), Request{})
	require.NoError(t, err)
	require.Equal(t, FinishStop, resp.FinishReason)
	require.NotEmpty(t, resp.Text)
}
