package evm

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/go-errors/errors"

	"github.com/ALLiDoizCode/m2m-sub004/retry"
	"github.com/ALLiDoizCode/m2m-sub004/telemetry"
)

// defaultSettlementTimeout is the settlement window (seconds) passed to
// openChannel.
const defaultSettlementTimeout = 3600

// defaultTxWaitTimeout is the bound on waiting for a submitted
// transaction's receipt.
const defaultTxWaitTimeout = 30 * time.Second

// EmitFunc delivers an engine telemetry record.
type EmitFunc func(t telemetry.Type, fields map[string]interface{})

// Engine is the node's EVM-style channel engine: one per node, driving a
// single deployed channel contract and a single ERC20 token contract on
// behalf of the node's own account.
type Engine struct {
	Backend *ethclient.Client
	ChainID *big.Int

	PrivateKey *ecdsa.PrivateKey
	Account    common.Address

	ContractAddress common.Address
	TokenAddress    common.Address

	channelContract *bind.BoundContract
	tokenContract   *bind.BoundContract

	channels *channelStore
	Emit     EmitFunc

	DomainSeparator [32]byte
	TxWaitTimeout   time.Duration
}

// NewEngine constructs an Engine bound to contractAddr/tokenAddr over
// backend, signing with priv.
func NewEngine(backend *ethclient.Client, chainID *big.Int, priv *ecdsa.PrivateKey, contractAddr, tokenAddr common.Address, domainSeparator [32]byte, emit EmitFunc) *Engine {
	account := crypto.PubkeyToAddress(priv.PublicKey)
	return &Engine{
		Backend:         backend,
		ChainID:         chainID,
		PrivateKey:      priv,
		Account:         account,
		ContractAddress: contractAddr,
		TokenAddress:    tokenAddr,
		channelContract: bind.NewBoundContract(contractAddr, channelABI, backend, backend, backend),
		tokenContract:   bind.NewBoundContract(tokenAddr, tokenABI, backend, backend, backend),
		channels:        newChannelStore(),
		Emit:            emit,
		DomainSeparator: domainSeparator,
		TxWaitTimeout:   defaultTxWaitTimeout,
	}
}

func (e *Engine) transactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(e.PrivateKey, e.ChainID)
	if err != nil {
		return nil, errors.WrapPrefix(err, "build transactor", 0)
	}
	opts.Context = ctx
	return opts, nil
}

// OpenChannel opens a new channel with peerAccount, approves and deposits
// deposit, and records the resulting channel.
func (e *Engine) OpenChannel(ctx context.Context, peerAccount common.Address, deposit *big.Int) (*Channel, error) {
	opts, err := e.transactOpts(ctx)
	if err != nil {
		return nil, err
	}

	approveTx, err := e.tokenContract.Transact(opts, "approve", e.ContractAddress, deposit)
	if err != nil {
		return nil, errors.WrapPrefix(err, "approve token allowance", 0)
	}
	if _, err := e.waitMined(ctx, approveTx); err != nil {
		return nil, err
	}

	openOpts, err := e.transactOpts(ctx)
	if err != nil {
		return nil, err
	}
	openTx, err := e.channelContract.Transact(openOpts, "openChannel", peerAccount, big.NewInt(defaultSettlementTimeout))
	if err != nil {
		return nil, errors.WrapPrefix(err, "submit openChannel", 0)
	}
	receipt, err := e.waitMined(ctx, openTx)
	if err != nil {
		return nil, err
	}

	channelID, err := e.extractChannelID(receipt)
	if err != nil {
		return nil, err
	}

	depositOpts, err := e.transactOpts(ctx)
	if err != nil {
		return nil, err
	}
	depositTx, err := e.channelContract.Transact(depositOpts, "setTotalDeposit", channelID, e.Account, deposit)
	if err != nil {
		return nil, errors.WrapPrefix(err, "setTotalDeposit", 0)
	}
	if _, err := e.waitMined(ctx, depositTx); err != nil {
		return nil, err
	}

	now := time.Now()
	ch := &Channel{
		ChannelID:         channelID,
		Participants:      [2]common.Address{e.Account, peerAccount},
		TokenAddress:      e.TokenAddress,
		SettlementTimeout: defaultSettlementTimeout,
		Deposits:          map[common.Address]*big.Int{e.Account: new(big.Int).Set(deposit)},
		Nonces:            map[common.Address]uint64{e.Account: 0, peerAccount: 0},
		Transferred:       map[common.Address]*big.Int{e.Account: big.NewInt(0), peerAccount: big.NewInt(0)},
		State:             StateOpened,
		OpenedAt:          now,
		LastActivityAt:    now,
	}
	e.channels.insert(ch)

	e.emit(telemetry.TypeAgentChannelOpened, map[string]interface{}{
		"chain":     "evm",
		"channelId": channelID,
		"peer":      peerAccount.Hex(),
		"deposit":   deposit.String(),
	})

	return ch, nil
}

// extractChannelID scans receipt's logs for the ChannelOpened event and
// returns its indexed channelId topic.
func (e *Engine) extractChannelID(receipt *types.Receipt) ([32]byte, error) {
	eventID := channelABI.Events["ChannelOpened"].ID
	for _, l := range receipt.Logs {
		if len(l.Topics) == 0 || l.Topics[0] != eventID {
			continue
		}
		var channelID [32]byte
		copy(channelID[:], l.Topics[1].Bytes())
		return channelID, nil
	}
	return [32]byte{}, errors.New("ChannelOpened event not found in receipt logs")
}

func (e *Engine) waitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	cctx, cancel := context.WithTimeout(ctx, e.TxWaitTimeout)
	defer cancel()
	receipt, err := bind.WaitMined(cctx, e.Backend, tx)
	if err != nil {
		return nil, errors.WrapPrefix(err, "wait for transaction receipt", 0)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, errors.Errorf("transaction %s reverted", tx.Hash().Hex())
	}
	return receipt, nil
}

// OffChainUpdate increments the channel's nonce for the sender and adds
// amount to its cumulative transferred total.
func (e *Engine) OffChainUpdate(peerAccount common.Address, amount *big.Int) (*BalanceProof, error) {
	ch, ok := e.channels.byPeerAccount(peerAccount)
	if !ok {
		return nil, errors.Errorf("no open channel with peer %s", peerAccount.Hex())
	}

	ch.Nonces[e.Account]++
	prev := new(big.Int).Set(ch.Transferred[e.Account])
	ch.Transferred[e.Account] = new(big.Int).Add(ch.Transferred[e.Account], amount)
	ch.LastActivityAt = time.Now()

	e.emit(telemetry.TypeAgentChannelBalanceUpdate, map[string]interface{}{
		"chain":          "evm",
		"channelId":      ch.ChannelID,
		"previousAmount": prev.String(),
		"newAmount":      ch.Transferred[e.Account].String(),
	})

	return e.SignBalanceProof(ch.ChannelID, ch.Nonces[e.Account], ch.Transferred[e.Account])
}

// SignBalanceProof signs the canonical balance-proof message for channelId
// at nonce/transferred, over the configured domain separator.
func (e *Engine) SignBalanceProof(channelID [32]byte, nonce uint64, transferred *big.Int) (*BalanceProof, error) {
	proof := &BalanceProof{
		ChannelID:   channelID,
		Nonce:       nonce,
		Transferred: transferred,
		Locked:      big.NewInt(0),
	}
	msg := e.canonicalProofMessage(proof)
	sig, err := crypto.Sign(msg, e.PrivateKey)
	if err != nil {
		return nil, errors.WrapPrefix(err, "sign balance proof", 0)
	}
	proof.signature = sig
	return proof, nil
}

func (e *Engine) canonicalProofMessage(p *BalanceProof) []byte {
	var buf []byte
	buf = append(buf, e.DomainSeparator[:]...)
	buf = append(buf, p.ChannelID[:]...)
	buf = append(buf, leftPad32(new(big.Int).SetUint64(p.Nonce))...)
	buf = append(buf, leftPad32(p.Transferred)...)
	buf = append(buf, leftPad32(p.Locked)...)
	buf = append(buf, p.LocksRoot[:]...)
	return crypto.Keccak256(buf)
}

func leftPad32(v *big.Int) []byte {
	b := v.Bytes()
	out := make([]byte, 32)
	copy(out[32-len(b):], b)
	return out
}

// CooperativeSettleRequest bundles both sides of a netting settlement.
type CooperativeSettleRequest struct {
	ChannelID [32]byte
	Proof1    *BalanceProof
	Sig1      []byte
	Signer1   common.Address
	Proof2    *BalanceProof
	Sig2      []byte
	Signer2   common.Address
}

// maxSettleRetries bounds the nonce-escalation retry loop.
const maxSettleRetries = 3

// CooperativeSettle verifies both balance proofs are correctly signed by
// the channel's two participants and reference the same channel, then
// submits the settle transaction, retrying with an escalated nonce if the
// chain rejects it for a stale nonce.
func (e *Engine) CooperativeSettle(ctx context.Context, req CooperativeSettleRequest) (common.Hash, error) {
	ch, ok := e.channels.byChannelID(req.ChannelID)
	if !ok {
		return common.Hash{}, errors.Errorf("unknown channel %x", req.ChannelID)
	}

	if err := e.verifyProofSignature(req.Proof1, req.Sig1, req.Signer1); err != nil {
		return common.Hash{}, errors.WrapPrefix(err, "verify signer1 proof", 0)
	}
	if err := e.verifyProofSignature(req.Proof2, req.Sig2, req.Signer2); err != nil {
		return common.Hash{}, errors.WrapPrefix(err, "verify signer2 proof", 0)
	}
	if req.Proof1.ChannelID != req.ChannelID || req.Proof2.ChannelID != req.ChannelID {
		return common.Hash{}, errors.New("balance proofs reference a different channel")
	}

	var txHash common.Hash
	attempt := 0
	_, err := retry.ExecuteWithRetry(ctx, retry.Config{
		MaxRetries: maxSettleRetries,
		ShouldRetry: func(err error) bool {
			return errors.Is(err, errNonceTooLow) || (err != nil && isNonceError(err))
		},
		OnRetry: func(n int, err error) {
			attempt = n + 1
		},
	}, func(cctx context.Context) (interface{}, error) {
		opts, err := e.transactOpts(cctx)
		if err != nil {
			return nil, err
		}
		// opts.Nonce is left nil on the first attempt so bind fetches the
		// account's pending nonce itself; only a nonce-rejected retry
		// escalates past it explicitly.
		if attempt > 0 {
			pending, nerr := e.Backend.PendingNonceAt(cctx, e.Account)
			if nerr != nil {
				return nil, errors.WrapPrefix(nerr, "fetch pending nonce", 0)
			}
			opts.Nonce = new(big.Int).Add(new(big.Int).SetUint64(pending), big.NewInt(int64(attempt)))
		}

		tx, err := e.channelContract.Transact(opts, "cooperativeSettle",
			req.ChannelID,
			req.Signer1, req.Proof1.Transferred, new(big.Int).SetUint64(req.Proof1.Nonce), req.Sig1,
			req.Signer2, req.Proof2.Transferred, new(big.Int).SetUint64(req.Proof2.Nonce), req.Sig2,
		)
		if err != nil {
			return nil, err
		}
		receipt, err := e.waitMined(cctx, tx)
		if err != nil {
			return nil, err
		}
		txHash = receipt.TxHash
		return nil, nil
	})
	if err != nil {
		return common.Hash{}, errors.WrapPrefix(err, "cooperative settle", 0)
	}

	ch.State = StateSettled
	ch.SettledAt = time.Now()
	e.emit(telemetry.TypePaymentChannelSettled, map[string]interface{}{
		"chain":     "evm",
		"channelId": ch.ChannelID,
		"txHash":    txHash.Hex(),
	})

	return txHash, nil
}

var errNonceTooLow = errors.New("nonce too low")

// isNonceError is a best-effort classifier for the chain-side "nonce too
// low"/"replacement transaction underpriced" family of errors that the
// settle retry loop escalates past.
func isNonceError(err error) bool {
	msg := err.Error()
	return containsAny(msg, "nonce too low", "replacement transaction underpriced", "nonce")
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if len(s) >= len(sub) && indexOf(s, sub) >= 0 {
			return true
		}
	}
	return false
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

// verifyProofSignature recovers the signer's address from sig over proof's
// canonical message and checks it matches expected.
func (e *Engine) verifyProofSignature(proof *BalanceProof, sig []byte, expected common.Address) error {
	msg := e.canonicalProofMessage(proof)
	pub, err := crypto.SigToPub(msg, sig)
	if err != nil {
		return errors.WrapPrefix(err, "recover signer", 0)
	}
	recovered := crypto.PubkeyToAddress(*pub)
	if recovered != expected {
		return errors.Errorf("signature does not match expected signer %s (recovered %s)", expected.Hex(), recovered.Hex())
	}
	return nil
}

func (e *Engine) emit(t telemetry.Type, fields map[string]interface{}) {
	if e.Emit == nil {
		return
	}
	e.Emit(t, fields)
}

// Channels returns a snapshot of every tracked channel.
func (e *Engine) Channels() []*Channel {
	return e.channels.snapshot()
}
