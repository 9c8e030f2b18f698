package dvm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatDVMFeedbackDefaultContent(t *testing.T) {
	ev := FormatDVMFeedback(Feedback{
		JobEventID:      idFromByte(1),
		RequesterPubKey: idFromByte(2),
		Status:          FeedbackProcessing,
	}, 1000)
	require.Equal(t, 7000, ev.Kind)
	require.Equal(t, "Processing your request…", ev.Content)

	status, ok := ev.Tags.Find("status")
	require.True(t, ok)
	require.Equal(t, "processing", status.Value(1))
}

func TestFormatDVMFeedbackIncludesAmountWhenSet(t *testing.T) {
	ev := FormatDVMFeedback(Feedback{Status: FeedbackPaymentRequired, Amount: "500"}, 1000)
	amount, ok := ev.Tags.Find("amount")
	require.True(t, ok)
	require.Equal(t, "500", amount.Value(1))
}

func TestFormatTaskFeedbackAddsProgressAndETA(t *testing.T) {
	progress := 42.7
	eta := 12.0
	ev, err := FormatTaskFeedback(TaskFeedback{
		Feedback:   Feedback{Status: FeedbackProcessing},
		Progress:   &progress,
		ETASeconds: &eta,
	}, 1000)
	require.NoError(t, err)

	p, ok := ev.Tags.Find("progress")
	require.True(t, ok)
	require.Equal(t, "42", p.Value(1))

	e, ok := ev.Tags.Find("eta")
	require.True(t, ok)
	require.Equal(t, "12", e.Value(1))
}

func TestFormatTaskFeedbackRejectsOutOfRangeProgress(t *testing.T) {
	progress := 150.0
	_, err := FormatTaskFeedback(TaskFeedback{
		Feedback: Feedback{Status: FeedbackProcessing},
		Progress: &progress,
	}, 1000)
	require.Error(t, err)
}

func TestFormatTaskFeedbackRejectsNegativeETA(t *testing.T) {
	eta := -1.0
	_, err := FormatTaskFeedback(TaskFeedback{
		Feedback:   Feedback{Status: FeedbackProcessing},
		ETASeconds: &eta,
	}, 1000)
	require.Error(t, err)
}
