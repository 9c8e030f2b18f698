package evm

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// channelABIJSON is the minimal interface of the bilateral payment-channel
// contract this engine drives. No abigen artifacts were retrieved for this
// contract, so the ABI is declared inline and bound generically via
// bind.NewBoundContract, the same approach livepeer's protocol client
// falls back to for contracts it hasn't code-generated.
const channelABIJSON = `[
	{"type":"function","name":"openChannel","stateMutability":"nonpayable",
	 "inputs":[{"name":"partner","type":"address"},{"name":"settlementTimeout","type":"uint256"}],
	 "outputs":[]},
	{"type":"function","name":"setTotalDeposit","stateMutability":"nonpayable",
	 "inputs":[{"name":"channelId","type":"bytes32"},{"name":"participant","type":"address"},{"name":"totalDeposit","type":"uint256"}],
	 "outputs":[]},
	{"type":"function","name":"cooperativeSettle","stateMutability":"nonpayable",
	 "inputs":[
		{"name":"channelId","type":"bytes32"},
		{"name":"participant1","type":"address"},{"name":"transferred1","type":"uint256"},{"name":"nonce1","type":"uint256"},{"name":"signature1","type":"bytes"},
		{"name":"participant2","type":"address"},{"name":"transferred2","type":"uint256"},{"name":"nonce2","type":"uint256"},{"name":"signature2","type":"bytes"}
	 ],
	 "outputs":[]},
	{"type":"event","name":"ChannelOpened","anonymous":false,
	 "inputs":[
		{"name":"channelId","type":"bytes32","indexed":true},
		{"name":"participant1","type":"address","indexed":true},
		{"name":"participant2","type":"address","indexed":true},
		{"name":"settlementTimeout","type":"uint256","indexed":false}
	 ]}
]`

// tokenABIJSON is the standard ERC20 approve method.
const tokenABIJSON = `[
	{"type":"function","name":"approve","stateMutability":"nonpayable",
	 "inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],
	 "outputs":[{"name":"","type":"bool"}]}
]`

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		// Only reachable if the inline ABI literal above is malformed,
		// which would be a programmer error caught immediately in any
		// test that constructs an Engine.
		panic("evm: invalid inline ABI: " + err.Error())
	}
	return parsed
}

var (
	channelABI = mustParseABI(channelABIJSON)
	tokenABI   = mustParseABI(tokenABIJSON)
)
