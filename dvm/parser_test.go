package dvm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ALLiDoizCode/m2m-sub004/event"
)

func TestParseDVMJobRequestRejectsOutOfRangeKind(t *testing.T) {
	ev := &event.Event{Kind: 1}
	_, err := ParseDVMJobRequest(ev)
	require.Error(t, err)
	pe, ok := err.(*ParseError)
	require.True(t, ok)
	require.Equal(t, ErrInvalidKind, pe.Code)
}

func TestParseDVMJobRequestExtractsFields(t *testing.T) {
	ev := &event.Event{
		Kind: 5001,
		Tags: event.Tags{
			{"i", "hello world", "text"},
			{"i", "https://example.com", "url", "wss://relay.example"},
			{"output", "text/plain"},
			{"param", "model", "gpt"},
			{"param", "model", "better-model"}, // duplicate key, last wins
			{"bid", "1000"},
			{"relays", "wss://a", "wss://b"},
			{"e", "aaaa", "", "dependency"},
		},
	}

	req, err := ParseDVMJobRequest(ev)
	require.NoError(t, err)
	require.Len(t, req.Inputs, 2)
	require.Equal(t, InputText, req.Inputs[0].Type)
	require.Equal(t, InputURL, req.Inputs[1].Type)
	require.Equal(t, "wss://relay.example", req.Inputs[1].Relay)
	require.Equal(t, "text/plain", req.OutputType)
	require.Equal(t, "better-model", req.Params["model"])
	require.Equal(t, int64(1000), req.Bid.Int64())
	require.Equal(t, []string{"wss://a", "wss://b"}, req.Relays)
	require.Equal(t, []string{"aaaa"}, req.Dependencies)
}

func TestParseDVMJobRequestRejectsUnknownInputType(t *testing.T) {
	ev := &event.Event{Kind: 5001, Tags: event.Tags{{"i", "x", "weird"}}}
	_, err := ParseDVMJobRequest(ev)
	require.Error(t, err)
	require.Equal(t, ErrInvalidInputType, err.(*ParseError).Code)
}

func TestParseDVMJobRequestRejectsBadBid(t *testing.T) {
	ev := &event.Event{Kind: 5001, Tags: event.Tags{{"bid", "not-a-number"}}}
	_, err := ParseDVMJobRequest(ev)
	require.Error(t, err)
	require.Equal(t, ErrInvalidBid, err.(*ParseError).Code)
}

func TestParseTaskDelegationRequestRequiresKind5900(t *testing.T) {
	ev := &event.Event{Kind: 5001}
	_, err := ParseTaskDelegationRequest(ev)
	require.Error(t, err)
}

func TestParseTaskDelegationRequestExtractsExtendedFields(t *testing.T) {
	ev := &event.Event{
		Kind: 5900,
		Tags: event.Tags{
			{"timeout", "30"},
			{"p", "agent1"},
			{"p", "agent2"},
			{"priority", "high"},
			{"schema", "https://schema.example/task.json"},
		},
	}

	req, err := ParseTaskDelegationRequest(ev)
	require.NoError(t, err)
	require.Equal(t, 30, req.Timeout)
	require.Equal(t, []string{"agent1", "agent2"}, req.PreferredAgents)
	require.Equal(t, PriorityHigh, req.Priority)
	require.Equal(t, "https://schema.example/task.json", req.Schema)
}

func TestParseTaskDelegationRequestDefaultsPriorityNormal(t *testing.T) {
	ev := &event.Event{Kind: 5900}
	req, err := ParseTaskDelegationRequest(ev)
	require.NoError(t, err)
	require.Equal(t, PriorityNormal, req.Priority)
}

func TestParseTaskDelegationRequestIgnoresInvalidTimeout(t *testing.T) {
	ev := &event.Event{Kind: 5900, Tags: event.Tags{{"timeout", "not-a-number"}}}
	req, err := ParseTaskDelegationRequest(ev)
	require.NoError(t, err)
	require.Equal(t, 0, req.Timeout)
}
