package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-errors/errors"

	"github.com/Peersyst/xrpl-go/xrpl/transaction/types"
)

// RPCBackend is a Backend implementation that speaks the XRPL JSON-RPC
// protocol directly over HTTP, rather than through a client library: the
// protocol is a small, stable, publicly documented surface (account_info
// and submit), so a hand-rolled client carries less risk than guessing at
// an unfamiliar library's API.
type RPCBackend struct {
	URL        string
	HTTPClient *http.Client
}

// NewRPCBackend constructs an RPCBackend pointed at a rippled JSON-RPC
// endpoint (e.g. a local node's HTTP port, or a public JSON-RPC gateway).
func NewRPCBackend(url string) *RPCBackend {
	return &RPCBackend{URL: url, HTTPClient: &http.Client{Timeout: 15 * time.Second}}
}

type rpcRequest struct {
	Method string        `json:"method"`
	Params []interface{} `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
}

func (b *RPCBackend) call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	body, err := json.Marshal(rpcRequest{Method: method, Params: []interface{}{params}})
	if err != nil {
		return nil, errors.WrapPrefix(err, "ledger: encode rpc request", 0)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.URL, bytes.NewReader(body))
	if err != nil {
		return nil, errors.WrapPrefix(err, "ledger: build rpc request", 0)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.HTTPClient.Do(req)
	if err != nil {
		return nil, errors.WrapPrefix(err, "ledger: rpc request", 0)
	}
	defer resp.Body.Close()

	var out rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, errors.WrapPrefix(err, "ledger: decode rpc response", 0)
	}
	return out.Result, nil
}

// AccountSequence fetches account's current sequence number via
// account_info.
func (b *RPCBackend) AccountSequence(ctx context.Context, account types.Address) (uint32, error) {
	result, err := b.call(ctx, "account_info", map[string]interface{}{
		"account":      string(account),
		"ledger_index": "current",
	})
	if err != nil {
		return 0, err
	}

	var parsed struct {
		AccountData struct {
			Sequence uint32 `json:"Sequence"`
		} `json:"account_data"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(result, &parsed); err != nil {
		return 0, errors.WrapPrefix(err, "ledger: parse account_info result", 0)
	}
	if parsed.Error != "" {
		return 0, fmt.Errorf("ledger: account_info: %s", parsed.Error)
	}
	return parsed.AccountData.Sequence, nil
}

// SubmitAndWait sends the transaction's field map as the submit params and reports
// whether it was immediately applied. Callers needing validated-ledger
// confirmation should poll tx using the returned hash.
func (b *RPCBackend) SubmitAndWait(ctx context.Context, txJSON map[string]interface{}) (*SubmitResult, error) {
	result, err := b.call(ctx, "submit", txJSON)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		EngineResult string `json:"engine_result"`
		TxJSON       struct {
			Hash string `json:"hash"`
		} `json:"tx_json"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(result, &parsed); err != nil {
		return nil, errors.WrapPrefix(err, "ledger: parse submit result", 0)
	}
	if parsed.Error != "" {
		return &SubmitResult{EngineErr: parsed.Error}, nil
	}

	return &SubmitResult{
		Hash:      parsed.TxJSON.Hash,
		Validated: parsed.EngineResult == "tesSUCCESS",
		EngineErr: parsed.EngineResult,
	}, nil
}
