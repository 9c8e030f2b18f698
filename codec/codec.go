// Package codec implements the event envelope codec: encoding and
// decoding a social-graph Event to and from the byte payload carried
// inside a packet's Data field. This is kept distinct from package
// packet's frame codec, which only knows about the three wire-frame
// shapes and never looks inside their opaque Data bytes.
package codec

import (
	"encoding/json"

	"github.com/go-errors/errors"

	"github.com/ALLiDoizCode/m2m-sub004/event"
)

// EncodeEnvelope serializes ev into the bytes a packet's Data field
// carries.
func EncodeEnvelope(ev *event.Event) ([]byte, error) {
	b, err := json.Marshal(ev)
	if err != nil {
		return nil, errors.WrapPrefix(err, "encode event envelope", 0)
	}
	return b, nil
}

// DecodeEnvelope parses a packet's Data bytes back into an Event. It does
// not verify the event's signature; callers that need authenticity must
// call Event.Verify separately.
func DecodeEnvelope(data []byte) (*event.Event, error) {
	var ev event.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, errors.WrapPrefix(err, "decode event envelope", 0)
	}
	return &ev, nil
}
