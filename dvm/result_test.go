package dvm

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ALLiDoizCode/m2m-sub004/event"
)

func TestFormatDVMJobResultKindAndTags(t *testing.T) {
	reqEvent := &event.Event{Kind: 5001, ID: idFromByte(1), PubKey: idFromByte(2)}

	ev, err := FormatDVMJobResult(ResultInput{
		RequestEvent: reqEvent,
		Content:      "all done",
		Status:       StatusSuccess,
	}, 1000)
	require.NoError(t, err)
	require.Equal(t, 6001, ev.Kind)
	require.Equal(t, int64(1000), ev.CreatedAt)
	require.Equal(t, "all done", ev.Content)

	tagNames := make([]string, len(ev.Tags))
	for i, tag := range ev.Tags {
		tagNames[i] = tag.Name()
	}
	require.Equal(t, []string{"request", "e", "p", "amount", "status"}, tagNames)
}

func TestFormatDVMJobResultBytesContentBecomesBase64(t *testing.T) {
	reqEvent := &event.Event{Kind: 5001}
	raw := []byte{0x01, 0x02, 0x03}

	ev, err := FormatDVMJobResult(ResultInput{
		RequestEvent: reqEvent,
		Content:      raw,
		Status:       StatusSuccess,
	}, 1000)
	require.NoError(t, err)
	require.Equal(t, base64.StdEncoding.EncodeToString(raw), ev.Content)
}

func TestFormatDVMJobResultErrorWrapsPlainString(t *testing.T) {
	reqEvent := &event.Event{Kind: 5001}
	ev, err := FormatDVMJobResult(ResultInput{
		RequestEvent: reqEvent,
		Content:      "boom",
		Status:       StatusError,
	}, 1000)
	require.NoError(t, err)
	require.Contains(t, ev.Content, `"error":true`)
	require.Contains(t, ev.Content, "boom")
}

func TestFormatDVMErrorResult(t *testing.T) {
	reqEvent := &event.Event{Kind: 5001}
	ev, err := FormatDVMErrorResult(reqEvent, "F01", "malformed", nil, 1000)
	require.NoError(t, err)
	require.Contains(t, ev.Content, "F01")
	require.Contains(t, ev.Content, "malformed")
	status, ok := ev.Tags.Find("status")
	require.True(t, ok)
	require.Equal(t, "error", status.Value(1))
}
