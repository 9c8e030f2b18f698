// Package dvm implements the NIP-90-style data-vending-machine job
// pipeline: parsing job/delegation requests, resolving their dependency
// chains, and formatting results, feedback, and task status.
package dvm

import (
	"math/big"
	"strconv"

	"github.com/ALLiDoizCode/m2m-sub004/event"
)

// InputType enumerates the kinds a DVM job input's data can take.
type InputType string

const (
	InputText  InputType = "text"
	InputURL   InputType = "url"
	InputEvent InputType = "event"
	InputJob   InputType = "job"
)

func validInputType(t InputType) bool {
	switch t {
	case InputText, InputURL, InputEvent, InputJob:
		return true
	default:
		return false
	}
}

// Input is one entry of a job request's ordered input list.
type Input struct {
	Data   string
	Type   InputType
	Relay  string
	Marker string
}

// Priority is a task-delegation request's scheduling priority.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

// JobRequest is a parsed DVM job request.
type JobRequest struct {
	Event        *event.Event
	Kind         int
	Inputs       []Input
	OutputType   string
	Params       map[string]string
	Bid          *big.Int
	Relays       []string
	Dependencies []string
}

// TaskDelegationRequest extends JobRequest with the task-delegation-only
// fields carried by kind-5900 events.
type TaskDelegationRequest struct {
	JobRequest
	Timeout         int
	PreferredAgents []string
	Priority        Priority
	Schema          string
}

// ErrorCode classifies a parse failure.
type ErrorCode string

const (
	ErrInvalidKind      ErrorCode = "InvalidKind"
	ErrInvalidInputType ErrorCode = "InvalidInputType"
	ErrInvalidBid       ErrorCode = "InvalidBid"
)

// ParseError is returned by the DVM parsers.
type ParseError struct {
	Code    ErrorCode
	Message string
}

func (e *ParseError) Error() string { return string(e.Code) + ": " + e.Message }

func parseErr(code ErrorCode, msg string) *ParseError {
	return &ParseError{Code: code, Message: msg}
}

// ParseDVMJobRequest parses ev as a DVM job request. Fails with
// InvalidKind unless ev.Kind is within [5000, 5999].
func ParseDVMJobRequest(ev *event.Event) (*JobRequest, error) {
	if ev.Kind < 5000 || ev.Kind > 5999 {
		return nil, parseErr(ErrInvalidKind, "kind must be within [5000, 5999]")
	}
	return parseCommonFields(ev)
}

// ParseTaskDelegationRequest parses ev as a task-delegation request. Fails
// with InvalidKind unless ev.Kind is exactly 5900.
func ParseTaskDelegationRequest(ev *event.Event) (*TaskDelegationRequest, error) {
	if ev.Kind != 5900 {
		return nil, parseErr(ErrInvalidKind, "task delegation requests must have kind 5900")
	}

	common, err := parseCommonFields(ev)
	if err != nil {
		return nil, err
	}

	req := &TaskDelegationRequest{JobRequest: *common, Priority: PriorityNormal}

	if tag, ok := ev.Tags.Find("timeout"); ok {
		if secs, perr := parsePositiveInt(tag.Value(1)); perr == nil {
			req.Timeout = secs
		}
		// An invalid timeout value is ignored, not a parse failure.
	}

	for _, tag := range ev.Tags.FindAll("p") {
		req.PreferredAgents = append(req.PreferredAgents, tag.Value(1))
	}

	if tag, ok := ev.Tags.Find("priority"); ok {
		switch Priority(tag.Value(1)) {
		case PriorityHigh:
			req.Priority = PriorityHigh
		case PriorityLow:
			req.Priority = PriorityLow
		case PriorityNormal:
			req.Priority = PriorityNormal
		}
	}

	if tag, ok := ev.Tags.Find("schema"); ok {
		req.Schema = tag.Value(1)
	}

	return req, nil
}

func parseCommonFields(ev *event.Event) (*JobRequest, error) {
	req := &JobRequest{
		Event:  ev,
		Kind:   ev.Kind,
		Params: make(map[string]string),
	}

	for _, tag := range ev.Tags {
		if tag.Name() != "i" || len(tag) < 3 {
			continue
		}
		typ := InputType(tag.Value(2))
		if !validInputType(typ) {
			return nil, parseErr(ErrInvalidInputType, "unknown input type: "+tag.Value(2))
		}
		input := Input{Data: tag.Value(1), Type: typ}
		if len(tag) >= 4 {
			input.Relay = tag.Value(3)
		}
		if len(tag) >= 5 {
			input.Marker = tag.Value(4)
		}
		req.Inputs = append(req.Inputs, input)
	}

	if tag, ok := ev.Tags.Find("output"); ok {
		req.OutputType = tag.Value(1)
	}

	for _, tag := range ev.Tags.FindAll("param") {
		if len(tag) < 3 {
			continue
		}
		req.Params[tag.Value(1)] = tag.Value(2)
	}

	if tag, ok := ev.Tags.Find("bid"); ok {
		bid, ok := new(big.Int).SetString(tag.Value(1), 10)
		if !ok {
			return nil, parseErr(ErrInvalidBid, "bid tag is not a valid integer")
		}
		req.Bid = bid
	}

	if tag, ok := ev.Tags.Find("relays"); ok {
		if len(tag) > 1 {
			req.Relays = append(req.Relays, tag[1:]...)
		}
	}

	for _, tag := range ev.Tags.FindAll("e") {
		if len(tag) >= 4 && tag.Value(3) == "dependency" {
			req.Dependencies = append(req.Dependencies, tag.Value(1))
		}
	}

	return req, nil
}

func parsePositiveInt(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, parseErr(ErrInvalidBid, "not a positive integer")
	}
	return n, nil
}
