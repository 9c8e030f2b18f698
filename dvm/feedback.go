package dvm

import (
	"encoding/hex"
	"math"
	"strconv"

	"github.com/go-errors/errors"

	"github.com/ALLiDoizCode/m2m-sub004/event"
)

// FeedbackStatus is a DVM feedback event's declared status.
type FeedbackStatus string

const (
	FeedbackPaymentRequired FeedbackStatus = "payment-required"
	FeedbackProcessing      FeedbackStatus = "processing"
	FeedbackError           FeedbackStatus = "error"
	FeedbackSuccess         FeedbackStatus = "success"
	FeedbackPartial         FeedbackStatus = "partial"
)

var defaultFeedbackContent = map[FeedbackStatus]string{
	FeedbackPaymentRequired: "Payment required…",
	FeedbackProcessing:      "Processing your request…",
	FeedbackError:           "An error occurred…",
	FeedbackSuccess:         "Request completed successfully",
	FeedbackPartial:         "Partial results available",
}

// Feedback is the input to FormatDVMFeedback.
type Feedback struct {
	JobEventID     [32]byte
	RequesterPubKey [32]byte
	Status         FeedbackStatus
	Amount         string
}

// FormatDVMFeedback builds a kind-7000 feedback event.
func FormatDVMFeedback(fb Feedback, nowSeconds int64) *event.Event {
	tags := event.Tags{
		{"e", hexID(fb.JobEventID)},
		{"p", hexID(fb.RequesterPubKey)},
		{"status", string(fb.Status)},
	}
	if fb.Amount != "" {
		tags = append(tags, event.Tag{"amount", fb.Amount})
	}

	return &event.Event{
		Kind:      7000,
		CreatedAt: nowSeconds,
		Content:   defaultFeedbackContent[fb.Status],
		Tags:      tags,
	}
}

// TaskFeedback extends Feedback with task-tracking progress/ETA fields.
type TaskFeedback struct {
	Feedback
	Progress    *float64 // percent, 0-100
	ETASeconds  *float64 // seconds, >= 0
}

// FormatTaskFeedback builds a feedback event with progress/eta tags added
// on top of FormatDVMFeedback's base shape. Fails with
// InvalidArgument if Progress is outside [0,100] or ETASeconds is negative.
func FormatTaskFeedback(fb TaskFeedback, nowSeconds int64) (*event.Event, error) {
	ev := FormatDVMFeedback(fb.Feedback, nowSeconds)

	if fb.Progress != nil {
		if *fb.Progress < 0 || *fb.Progress > 100 {
			return nil, errors.Errorf("InvalidArgument: progress %v out of range [0,100]", *fb.Progress)
		}
		ev.Tags = append(ev.Tags, event.Tag{"progress", strconv.Itoa(int(math.Floor(*fb.Progress)))})
	}
	if fb.ETASeconds != nil {
		if *fb.ETASeconds < 0 {
			return nil, errors.Errorf("InvalidArgument: eta %v must be >= 0", *fb.ETASeconds)
		}
		ev.Tags = append(ev.Tags, event.Tag{"eta", strconv.Itoa(int(math.Floor(*fb.ETASeconds)))})
	}

	return ev, nil
}

func hexID(id [32]byte) string {
	return hex.EncodeToString(id[:])
}
