// Package llm defines the opaque language-model client contract the AI
// dispatcher depends on: "given a system string, a user
// string, a bag of tools, a max-steps bound, and a per-request max-token
// bound, return steps, tool-calls, tool-results, a usage triple, and a
// finish reason."
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-errors/errors"

	"github.com/ALLiDoizCode/m2m-sub004/skill"
)

// FinishReason classifies why a model call stopped producing steps.
type FinishReason string

const (
	FinishStop      FinishReason = "stop"
	FinishToolCalls FinishReason = "tool_calls"
	FinishLength    FinishReason = "length"
	FinishError     FinishReason = "error"
)

// Usage is the prompt/completion/total token triple a model call reports.
type Usage struct {
	Prompt     int64
	Completion int64
	Total      int64
}

// ToolCall is one invocation the model asked for.
type ToolCall struct {
	Name      string
	Arguments map[string]interface{}
}

// ToolResult pairs a tool invocation's name with the handler result it
// produced.
type ToolResult struct {
	Name   string
	Result *skill.Result
}

// Step is one round of the model's tool-use loop.
type Step struct {
	ToolCalls   []ToolCall
	ToolResults []ToolResult
}

// Response is a completed model call.
type Response struct {
	Steps        []Step
	ToolResults  []ToolResult // top-level results, if the backend surfaces them directly
	Usage        Usage
	FinishReason FinishReason
	Text         string
}

// Request is everything a model call needs: the two prompt halves, the
// tools available to it, and the step/token bounds.
type Request struct {
	System    string
	User      string
	Tools     []skill.Tool
	MaxSteps  int
	MaxTokens int
}

// Client is the AI dispatcher's model dependency.
type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// httpToolSpec is the wire shape of one tool offered to the backend.
type httpToolSpec struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Params      []skill.ParamSpec `json:"params"`
}

type httpRequest struct {
	System    string         `json:"system"`
	User      string         `json:"user"`
	Tools     []httpToolSpec `json:"tools"`
	MaxSteps  int            `json:"max_steps"`
	MaxTokens int            `json:"max_tokens"`
}

type httpToolCall struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

type httpStep struct {
	ToolCalls []httpToolCall `json:"tool_calls"`
}

type httpUsage struct {
	Prompt     int64 `json:"prompt_tokens"`
	Completion int64 `json:"completion_tokens"`
	Total      int64 `json:"total_tokens"`
}

type httpResponse struct {
	Steps        []httpStep `json:"steps"`
	Usage        httpUsage  `json:"usage"`
	FinishReason string     `json:"finish_reason"`
	Text         string     `json:"text"`
}

// HTTPClient is a minimal client over a generic JSON tool-calling endpoint.
// No model SDK appears anywhere in the retrieval pack, so this talks a
// plain REST contract with the standard library's net/http rather than
// pulling in an unretrieved dependency.
type HTTPClient struct {
	Endpoint   string
	APIKey     string
	HTTPClient *http.Client
}

// NewHTTPClient constructs an HTTPClient with a sane default transport
// timeout; the dispatcher's own timeout wraps every call regardless.
func NewHTTPClient(endpoint, apiKey string) *HTTPClient {
	return &HTTPClient{
		Endpoint:   endpoint,
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// Complete posts req to the configured endpoint and decodes the response.
// Tool calls are returned as the backend reported them: this client does
// not invoke them, and it does not decode any tool results from the
// backend, so the Response's ToolResults and each step's ToolResults are
// always empty.
func (c *HTTPClient) Complete(ctx context.Context, req Request) (*Response, error) {
	wireTools := make([]httpToolSpec, 0, len(req.Tools))
	for _, t := range req.Tools {
		wireTools = append(wireTools, httpToolSpec{Name: t.Name, Description: t.Description, Params: t.Params})
	}

	body, err := json.Marshal(httpRequest{
		System:    req.System,
		User:      req.User,
		Tools:     wireTools,
		MaxSteps:  req.MaxSteps,
		MaxTokens: req.MaxTokens,
	})
	if err != nil {
		return nil, errors.WrapPrefix(err, "marshal llm request", 0)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.WrapPrefix(err, "build llm request", 0)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, errors.WrapPrefix(err, "llm call", 0)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.WrapPrefix(err, "read llm response", 0)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("llm call: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var wire httpResponse
	if err := json.Unmarshal(respBody, &wire); err != nil {
		return nil, errors.WrapPrefix(err, "decode llm response", 0)
	}

	steps := make([]Step, 0, len(wire.Steps))
	for _, s := range wire.Steps {
		calls := make([]ToolCall, 0, len(s.ToolCalls))
		for _, tc := range s.ToolCalls {
			calls = append(calls, ToolCall{Name: tc.Name, Arguments: tc.Arguments})
		}
		steps = append(steps, Step{ToolCalls: calls})
	}

	return &Response{
		Steps: steps,
		Usage: Usage{
			Prompt:     wire.Usage.Prompt,
			Completion: wire.Usage.Completion,
			Total:      wire.Usage.Total,
		},
		FinishReason: FinishReason(wire.FinishReason),
		Text:         wire.Text,
	}, nil
}

// StubClient is a deterministic, network-free Client used in tests and in
// dry-run deployments with no configured model endpoint. It always invokes
// the first tool offered (simulating a model that is confident exactly one
// skill applies) and reports a fixed usage triple.
type StubClient struct {
	// FixedUsage is returned verbatim on every call; defaults to a small
	// nonzero triple if left zero.
	FixedUsage Usage
}

// Complete invokes req.Tools[0] with empty arguments, if any tool was
// offered, and reports the result as a single tool-calls step.
func (c *StubClient) Complete(ctx context.Context, req Request) (*Response, error) {
	usage := c.FixedUsage
	if usage.Total == 0 {
		usage = Usage{Prompt: 50, Completion: 10, Total: 60}
	}

	if len(req.Tools) == 0 {
		return &Response{
			Usage:        usage,
			FinishReason: FinishStop,
			Text:         "no tools available for this event",
		}, nil
	}

	tool := req.Tools[0]
	result, err := tool.Invoke(map[string]interface{}{})
	if err != nil {
		return nil, fmt.Errorf("stub client: invoke %s: %w", tool.Name, err)
	}

	step := Step{
		ToolCalls:   []ToolCall{{Name: tool.Name, Arguments: map[string]interface{}{}}},
		ToolResults: []ToolResult{{Name: tool.Name, Result: result}},
	}
	return &Response{
		Steps:        []Step{step},
		ToolResults:  step.ToolResults,
		Usage:        usage,
		FinishReason: FinishToolCalls,
	}, nil
}
