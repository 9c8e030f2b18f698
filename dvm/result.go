package dvm

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"math/big"

	"github.com/ALLiDoizCode/m2m-sub004/event"
)

// ResultStatus is a DVM result event's declared outcome.
type ResultStatus string

const (
	StatusSuccess ResultStatus = "success"
	StatusError   ResultStatus = "error"
	StatusPartial ResultStatus = "partial"
)

// ResultInput is the input to FormatDVMJobResult.
type ResultInput struct {
	RequestEvent *event.Event
	Content      interface{}
	Amount       *big.Int
	Status       ResultStatus
}

// FormatDVMJobResult builds the unsigned DVM result event for a completed
// job. The caller is responsible for finalizing and
// signing the returned event before transmission.
func FormatDVMJobResult(in ResultInput, nowSeconds int64) (*event.Event, error) {
	content, err := formatContent(in.Content, in.Status)
	if err != nil {
		return nil, err
	}

	requestJSON, err := json.Marshal(in.RequestEvent)
	if err != nil {
		return nil, err
	}

	amountStr := "0"
	if in.Amount != nil {
		amountStr = in.Amount.String()
	}

	ev := &event.Event{
		Kind:      in.RequestEvent.Kind + 1000,
		CreatedAt: nowSeconds,
		Content:   content,
		Tags: event.Tags{
			{"request", string(requestJSON)},
			{"e", hexEventID(in.RequestEvent)},
			{"p", hexPubKey(in.RequestEvent)},
			{"amount", amountStr},
			{"status", string(in.Status)},
		},
	}
	return ev, nil
}

// FormatDVMErrorResult builds a status=error result event wrapping code and
// message.
func FormatDVMErrorResult(requestEvent *event.Event, code, message string, amount *big.Int, nowSeconds int64) (*event.Event, error) {
	return FormatDVMJobResult(ResultInput{
		RequestEvent: requestEvent,
		Content: map[string]interface{}{
			"error":   true,
			"code":    code,
			"message": message,
		},
		Amount: amount,
		Status: StatusError,
	}, nowSeconds)
}

// formatContent applies the content-shaping rule: strings
// pass through, byte slices become base64, everything else becomes JSON;
// status=error plain strings are wrapped in {error:true, message} unless
// already error-shaped.
func formatContent(content interface{}, status ResultStatus) (string, error) {
	if status == StatusError {
		if s, ok := content.(string); ok {
			wrapped := map[string]interface{}{"error": true, "message": s}
			b, err := json.Marshal(wrapped)
			return string(b), err
		}
		if m, ok := content.(map[string]interface{}); ok {
			if _, hasErrorFlag := m["error"]; hasErrorFlag {
				b, err := json.Marshal(m)
				return string(b), err
			}
			wrapped := map[string]interface{}{"error": true, "message": m}
			b, err := json.Marshal(wrapped)
			return string(b), err
		}
	}

	switch v := content.(type) {
	case string:
		return v, nil
	case []byte:
		return base64.StdEncoding.EncodeToString(v), nil
	default:
		b, err := json.Marshal(v)
		return string(b), err
	}
}

func hexEventID(ev *event.Event) string {
	return hex.EncodeToString(ev.ID[:])
}

func hexPubKey(ev *event.Event) string {
	return hex.EncodeToString(ev.PubKey[:])
}
