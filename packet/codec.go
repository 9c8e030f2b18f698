package packet

import (
	"encoding/base64"
	"encoding/json"
	"math/big"
	"time"

	"github.com/go-errors/errors"
)

// wireFrame is the on-the-wire JSON shape of a peer frame. All three
// variants share one struct; unused fields are omitted by `omitempty` or
// simply left zero.
type wireFrame struct {
	Type               Type   `json:"type"`
	Amount             string `json:"amount,omitempty"`
	Destination        string `json:"destination,omitempty"`
	ExecutionCondition string `json:"executionCondition,omitempty"`
	ExpiresAt          string `json:"expiresAt,omitempty"`
	Data               string `json:"data,omitempty"`
	Fulfillment        string `json:"fulfillment,omitempty"`
	Code               string `json:"code,omitempty"`
	Message            string `json:"message,omitempty"`
}

func encodeBytes(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return base64.StdEncoding.EncodeToString(b)
}

func decodeBytes(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	return base64.StdEncoding.DecodeString(s)
}

// EncodeFrame marshals a Packet into its wire frame.
func EncodeFrame(p Packet) ([]byte, error) {
	var f wireFrame
	f.Type = p.Type()

	switch v := p.(type) {
	case *Prepare:
		amt := v.Amount
		if amt == nil {
			amt = big.NewInt(0)
		}
		f.Amount = amt.String()
		f.Destination = v.Destination
		f.ExecutionCondition = encodeBytes(v.ExecutionCondition[:])
		f.ExpiresAt = v.ExpiresAt.UTC().Format(time.RFC3339)
		f.Data = encodeBytes(v.Data)
	case *Fulfill:
		f.Fulfillment = encodeBytes(v.Fulfillment[:])
		f.Data = encodeBytes(v.Data)
	case *Reject:
		f.Code = v.Code
		f.Message = v.Message
		f.Data = encodeBytes(v.Data)
	default:
		return nil, errors.New("packet: unknown packet variant")
	}

	return json.Marshal(f)
}

// DecodeFrame unmarshals a wire frame into the corresponding Packet variant.
func DecodeFrame(raw []byte) (Packet, error) {
	var f wireFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, errors.WrapPrefix(err, "decode frame", 0)
	}

	data, err := decodeBytes(f.Data)
	if err != nil {
		return nil, errors.WrapPrefix(err, "decode data payload", 0)
	}

	switch f.Type {
	case TypePrepare:
		amt, ok := new(big.Int).SetString(f.Amount, 10)
		if !ok {
			return nil, errors.New("decode frame: invalid amount")
		}
		cond, err := decodeBytes(f.ExecutionCondition)
		if err != nil || len(cond) != 32 {
			return nil, errors.New("decode frame: invalid executionCondition")
		}
		expiresAt, err := time.Parse(time.RFC3339, f.ExpiresAt)
		if err != nil {
			return nil, errors.WrapPrefix(err, "decode frame: invalid expiresAt", 0)
		}
		var condArr [32]byte
		copy(condArr[:], cond)
		return &Prepare{
			Amount:             amt,
			Destination:        f.Destination,
			ExecutionCondition: condArr,
			ExpiresAt:          expiresAt,
			Data:               data,
		}, nil

	case TypeFulfill:
		fulfillment, err := decodeBytes(f.Fulfillment)
		if err != nil || len(fulfillment) != 32 {
			return nil, errors.New("decode frame: invalid fulfillment")
		}
		var fArr [32]byte
		copy(fArr[:], fulfillment)
		return &Fulfill{Fulfillment: fArr, Data: data}, nil

	case TypeReject:
		return &Reject{Code: f.Code, Message: f.Message, Data: data}, nil

	default:
		return nil, errors.Errorf("decode frame: unknown type %q", f.Type)
	}
}
