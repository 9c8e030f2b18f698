// Package httpapi implements the node's HTTP control surface: a
// gorilla/mux router exposing the peer directory, the follow graph, the
// telemetry stream, both settlement substrates, and event send/broadcast
// over plain REST/JSON.
package httpapi

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-errors/errors"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Peersyst/xrpl-go/xrpl/transaction/types"

	"github.com/ALLiDoizCode/m2m-sub004/channel/evm"
	"github.com/ALLiDoizCode/m2m-sub004/channel/ledger"
	"github.com/ALLiDoizCode/m2m-sub004/event"
	"github.com/ALLiDoizCode/m2m-sub004/eventdb"
	"github.com/ALLiDoizCode/m2m-sub004/follow"
	"github.com/ALLiDoizCode/m2m-sub004/node"
	"github.com/ALLiDoizCode/m2m-sub004/telemetry"
)

// requestsTotal counts every control-surface request, labeled by route and
// outcome, scraped at GET /metrics.
var requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "agent_http_requests_total",
	Help: "Total HTTP control-surface requests handled by this node.",
}, []string{"route", "status"})

// Server wraps a *node.Node with the mux.Router that answers the control
// surface described by the node's configuration.
type Server struct {
	node   *node.Node
	router *mux.Router
}

// New builds a Server with every route registered.
func New(n *node.Node) *Server {
	s := &Server{node: n, router: mux.NewRouter()}
	s.routes()
	return s
}

// ServeHTTP lets Server itself be passed to http.ListenAndServe.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(jsonHeaders)
	s.router.Use(metricsMiddleware)

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	s.router.HandleFunc("/balances", s.handleBalances).Methods(http.MethodGet)

	s.router.HandleFunc("/peers", s.handlePeers).Methods(http.MethodGet)
	s.router.HandleFunc("/follows", s.handleFollowsList).Methods(http.MethodGet)
	s.router.HandleFunc("/follows", s.handleFollowsCreate).Methods(http.MethodPost)

	s.router.HandleFunc("/events", s.handleEvents).Methods(http.MethodGet)
	s.router.HandleFunc("/telemetry", s.handleTelemetry).Methods(http.MethodGet)
	s.router.HandleFunc("/send-event", s.handleSendEvent).Methods(http.MethodPost)
	s.router.HandleFunc("/broadcast", s.handleBroadcast).Methods(http.MethodPost)
	s.router.HandleFunc("/connect", s.handleConnect).Methods(http.MethodPost)

	s.router.HandleFunc("/channels", s.handleChannelsList).Methods(http.MethodGet)
	s.router.HandleFunc("/channels/open", s.handleChannelsOpen).Methods(http.MethodPost)
	s.router.HandleFunc("/channels/sign-proof", s.handleChannelsSignProof).Methods(http.MethodPost)
	s.router.HandleFunc("/channels/cooperative-settle", s.handleChannelsSettle).Methods(http.MethodPost)

	s.router.HandleFunc("/xrp-channels", s.handleXRPChannelsList).Methods(http.MethodGet)
	s.router.HandleFunc("/xrp-channels/open", s.handleXRPChannelsOpen).Methods(http.MethodPost)
	s.router.HandleFunc("/xrp-channels/claim", s.handleXRPChannelsClaim).Methods(http.MethodPost)

	s.router.HandleFunc("/configure-evm", s.handleConfigureEVM).Methods(http.MethodPost)
	s.router.HandleFunc("/configure-xrp", s.handleConfigureXRP).Methods(http.MethodPost)

	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
}

func jsonHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rec, r)
		requestsTotal.WithLabelValues(r.URL.Path, strconv.Itoa(rec.code)).Inc()
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	n := s.node
	initialized := n.Identity != nil && n.EventDB != nil
	pubkey := ""
	if n.Identity != nil {
		pubkey = hex.EncodeToString(n.Identity.Pub[:])
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"initialized": initialized,
		"agentId":     n.ID,
		"pubkey":      pubkey,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	n := s.node
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"nodeId":  n.ID,
		"pubkey":  hex.EncodeToString(n.Identity.Pub[:]),
		"skills":  n.Skills.Summary(),
		"peers":   len(n.Router.Peers()),
		"follows": len(n.Router.Follows()),
		"evm":     n.EVM != nil,
		"ledger":  n.Ledger != nil,
	})
}

func (s *Server) handleBalances(w http.ResponseWriter, _ *http.Request) {
	n := s.node
	out := map[string]interface{}{}
	if n.EVM != nil {
		out["evm"] = evmChannelViews(n.EVM.Channels())
	}
	if n.Ledger != nil {
		out["ledger"] = ledgerChannelViews(n.Ledger.Channels())
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePeers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.node.Router.Peers())
}

func (s *Server) handleFollowsList(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.node.Router.Follows())
}

type followRequest struct {
	PubKey     string `json:"pubkey"`
	ILPAddress string `json:"ilpAddress"`
	Petname    string `json:"petname"`
	BTPUrl     string `json:"btpUrl"`
	EVMAddress string `json:"evmAddress"`
	XRPAddress string `json:"xrpAddress"`
}

func (s *Server) handleFollowsCreate(w http.ResponseWriter, r *http.Request) {
	var req followRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.PubKey == "" || req.ILPAddress == "" {
		writeError(w, http.StatusBadRequest, errors.New("httpapi: pubkey and ilpAddress are required"))
		return
	}

	s.node.Router.ApplyFollow(follow.Entry{
		PubKey:        req.PubKey,
		Address:       req.ILPAddress,
		Petname:       req.Petname,
		BTPUrl:        req.BTPUrl,
		EVMAddress:    req.EVMAddress,
		LedgerAddress: req.XRPAddress,
	})
	writeJSON(w, http.StatusCreated, map[string]string{"status": "ok"})
}

// handleEvents answers the event-database query: GET /events?kinds=&limit=.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := eventdb.Query{
		ID:       q.Get("id"),
		Author:   q.Get("author"),
		TagName:  q.Get("tagName"),
		TagValue: q.Get("tagValue"),
		Since:    parseInt64(q.Get("since")),
		Until:    parseInt64(q.Get("until")),
		Limit:    int(parseInt64(q.Get("limit"))),
	}
	if raw := q.Get("kinds"); raw != "" {
		for _, k := range strings.Split(raw, ",") {
			if n, err := strconv.Atoi(strings.TrimSpace(k)); err == nil {
				query.Kinds = append(query.Kinds, n)
			}
		}
	}

	events, err := s.node.EventDB.Query(r.Context(), query)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// handleTelemetry answers the telemetry-store query: GET
// /telemetry?types=&since=&until=&peerId=&packetId=&direction=&limit=&offset=.
func (s *Server) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := telemetry.QueryFilter{
		PeerID:    q.Get("peerId"),
		PacketID:  q.Get("packetId"),
		Direction: q.Get("direction"),
	}
	if raw := q.Get("types"); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			f.Types = append(f.Types, telemetry.Type(strings.TrimSpace(t)))
		}
	}
	f.Since = parseInt64(q.Get("since"))
	f.Until = parseInt64(q.Get("until"))
	f.Limit = int(parseInt64(q.Get("limit")))
	f.Offset = int(parseInt64(q.Get("offset")))

	events, err := s.node.Telemetry.Query(r.Context(), f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func parseInt64(s string) int64 {
	v, _ := strconv.ParseInt(s, 10, 64)
	return v
}

type sendEventRequest struct {
	PeerID      string            `json:"peerId"`
	Destination string            `json:"destination"`
	Amount      string            `json:"amount"`
	ExpiresInMs int64             `json:"expiresInMs"`
	Kind        int               `json:"kind"`
	Content     string            `json:"content"`
	Tags        []event.Tag       `json:"tags"`
	ExtraFields map[string]string `json:"-"`
}

func (s *Server) buildSignedEvent(req sendEventRequest) (*event.Event, error) {
	ev := &event.Event{
		PubKey:    s.node.Identity.Pub,
		CreatedAt: time.Now().Unix(),
		Kind:      req.Kind,
		Tags:      req.Tags,
		Content:   req.Content,
	}
	if err := ev.Sign(s.node.Identity.Priv); err != nil {
		return nil, err
	}
	return ev, nil
}

func (s *Server) handleSendEvent(w http.ResponseWriter, r *http.Request) {
	var req sendEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.PeerID == "" || req.Destination == "" {
		writeError(w, http.StatusBadRequest, errors.New("httpapi: peerId and destination are required"))
		return
	}

	amount, ok := new(big.Int).SetString(req.Amount, 10)
	if !ok {
		amount = big.NewInt(0)
	}
	expiresIn := time.Duration(req.ExpiresInMs) * time.Millisecond
	if expiresIn <= 0 {
		expiresIn = 30 * time.Second
	}

	ev, err := s.buildSignedEvent(req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	if err := s.node.SendPrepare(req.PeerID, req.Destination, amount, time.Now().Add(expiresIn), ev); err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"eventId": hex.EncodeToString(ev.ID[:])})
}

type broadcastRequest struct {
	Amount      string      `json:"amount"`
	ExpiresInMs int64       `json:"expiresInMs"`
	Kind        int         `json:"kind"`
	Content     string      `json:"content"`
	Tags        []event.Tag `json:"tags"`
}

func (s *Server) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	var req broadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	amount, ok := new(big.Int).SetString(req.Amount, 10)
	if !ok {
		amount = big.NewInt(0)
	}
	expiresIn := time.Duration(req.ExpiresInMs) * time.Millisecond
	if expiresIn <= 0 {
		expiresIn = 30 * time.Second
	}

	ev, err := s.buildSignedEvent(sendEventRequest{Kind: req.Kind, Content: req.Content, Tags: req.Tags})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	sent, errs := s.node.Broadcast(amount, time.Now().Add(expiresIn), ev)
	resp := map[string]interface{}{"eventId": hex.EncodeToString(ev.ID[:]), "sent": sent}
	if len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		resp["errors"] = msgs
	}
	writeJSON(w, http.StatusAccepted, resp)
}

type connectRequest struct {
	PeerID    string `json:"peerId"`
	TargetURL string `json:"targetUrl"`
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.PeerID == "" || req.TargetURL == "" {
		writeError(w, http.StatusBadRequest, errors.New("httpapi: peerId and targetUrl are required"))
		return
	}

	s.node.Transport.DialOutbound(context.Background(), req.PeerID, req.TargetURL)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "connecting"})
}

func evmChannelView(c *evm.Channel) map[string]interface{} {
	deposits := map[string]string{}
	for addr, v := range c.Deposits {
		deposits[addr.Hex()] = v.String()
	}
	transferred := map[string]string{}
	for addr, v := range c.Transferred {
		transferred[addr.Hex()] = v.String()
	}
	return map[string]interface{}{
		"channelId":    hex.EncodeToString(c.ChannelID[:]),
		"participants": []string{c.Participants[0].Hex(), c.Participants[1].Hex()},
		"tokenAddress": c.TokenAddress.Hex(),
		"deposits":     deposits,
		"transferred":  transferred,
		"state":        string(c.State),
		"openedAt":     c.OpenedAt,
	}
}

func evmChannelViews(cs []*evm.Channel) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(cs))
	for _, c := range cs {
		out = append(out, evmChannelView(c))
	}
	return out
}

func ledgerChannelView(c *ledger.Channel) map[string]interface{} {
	return map[string]interface{}{
		"channelId":   c.ChannelID.String(),
		"account":     string(c.Account),
		"destination": string(c.Destination),
		"amount":      string(c.Amount),
		"balance":     string(c.Balance),
		"state":       string(c.State),
		"openedAt":    c.OpenedAt,
	}
}

func ledgerChannelViews(cs []*ledger.Channel) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(cs))
	for _, c := range cs {
		out = append(out, ledgerChannelView(c))
	}
	return out
}

func (s *Server) handleChannelsList(w http.ResponseWriter, _ *http.Request) {
	if s.node.EVM == nil {
		writeJSON(w, http.StatusOK, []interface{}{})
		return
	}
	writeJSON(w, http.StatusOK, evmChannelViews(s.node.EVM.Channels()))
}

type channelOpenRequest struct {
	PeerAccount string `json:"peerAccount"`
	Deposit     string `json:"deposit"`
}

func (s *Server) handleChannelsOpen(w http.ResponseWriter, r *http.Request) {
	if s.node.EVM == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("httpapi: evm channel engine not configured"))
		return
	}
	var req channelOpenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	deposit, ok := new(big.Int).SetString(req.Deposit, 10)
	if !ok {
		writeError(w, http.StatusBadRequest, errors.New("httpapi: invalid deposit amount"))
		return
	}

	ch, err := s.node.EVM.OpenChannel(r.Context(), common.HexToAddress(req.PeerAccount), deposit)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusCreated, evmChannelView(ch))
}

type signProofRequest struct {
	ChannelID   string `json:"channelId"`
	Nonce       uint64 `json:"nonce"`
	Transferred string `json:"transferred"`
}

func (s *Server) handleChannelsSignProof(w http.ResponseWriter, r *http.Request) {
	if s.node.EVM == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("httpapi: evm channel engine not configured"))
		return
	}
	var req signProofRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	idBytes, err := hex.DecodeString(req.ChannelID)
	if err != nil || len(idBytes) != 32 {
		writeError(w, http.StatusBadRequest, errors.New("httpapi: invalid channelId"))
		return
	}
	var channelID [32]byte
	copy(channelID[:], idBytes)

	transferred, ok := new(big.Int).SetString(req.Transferred, 10)
	if !ok {
		writeError(w, http.StatusBadRequest, errors.New("httpapi: invalid transferred amount"))
		return
	}

	proof, err := s.node.EVM.SignBalanceProof(channelID, req.Nonce, transferred)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"channelId":   hex.EncodeToString(proof.ChannelID[:]),
		"nonce":       proof.Nonce,
		"transferred": proof.Transferred.String(),
		"signature":   hex.EncodeToString(proof.Signature()),
	})
}

type settleParty struct {
	ChannelID   string `json:"channelId"`
	Nonce       uint64 `json:"nonce"`
	Transferred string `json:"transferred"`
	Signature   string `json:"signature"`
	Signer      string `json:"signer"`
}

type cooperativeSettleRequest struct {
	Party1 settleParty `json:"party1"`
	Party2 settleParty `json:"party2"`
}

func partyToProof(p settleParty) (*evm.BalanceProof, []byte, common.Address, error) {
	idBytes, err := hex.DecodeString(p.ChannelID)
	if err != nil || len(idBytes) != 32 {
		return nil, nil, common.Address{}, errors.New("httpapi: invalid channelId")
	}
	var channelID [32]byte
	copy(channelID[:], idBytes)

	transferred, ok := new(big.Int).SetString(p.Transferred, 10)
	if !ok {
		return nil, nil, common.Address{}, errors.New("httpapi: invalid transferred amount")
	}
	sig, err := hex.DecodeString(p.Signature)
	if err != nil {
		return nil, nil, common.Address{}, errors.New("httpapi: invalid signature")
	}
	return &evm.BalanceProof{ChannelID: channelID, Nonce: p.Nonce, Transferred: transferred}, sig, common.HexToAddress(p.Signer), nil
}

func (s *Server) handleChannelsSettle(w http.ResponseWriter, r *http.Request) {
	if s.node.EVM == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("httpapi: evm channel engine not configured"))
		return
	}
	var req cooperativeSettleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	proof1, sig1, signer1, err := partyToProof(req.Party1)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	proof2, sig2, signer2, err := partyToProof(req.Party2)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	txHash, err := s.node.EVM.CooperativeSettle(r.Context(), evm.CooperativeSettleRequest{
		ChannelID: proof1.ChannelID,
		Proof1:    proof1, Sig1: sig1, Signer1: signer1,
		Proof2: proof2, Sig2: sig2, Signer2: signer2,
	})
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"txHash": txHash.Hex()})
}

func (s *Server) handleXRPChannelsList(w http.ResponseWriter, _ *http.Request) {
	if s.node.Ledger == nil {
		writeJSON(w, http.StatusOK, []interface{}{})
		return
	}
	writeJSON(w, http.StatusOK, ledgerChannelViews(s.node.Ledger.Channels()))
}

type xrpOpenRequest struct {
	Destination string `json:"destination"`
	PublicKey   string `json:"publicKey"`
	AmountDrops string `json:"amountDrops"`
	SettleDelay uint32 `json:"settleDelay"`
}

func (s *Server) handleXRPChannelsOpen(w http.ResponseWriter, r *http.Request) {
	if s.node.Ledger == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("httpapi: ledger channel engine not configured"))
		return
	}
	var req xrpOpenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	ch, err := s.node.Ledger.OpenChannel(r.Context(), types.Address(req.Destination), req.PublicKey, types.XRPCurrencyAmount(req.AmountDrops), req.SettleDelay)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusCreated, ledgerChannelView(ch))
}

type xrpClaimRequest struct {
	ChannelID       string `json:"channelId"`
	Amount          string `json:"amount"`
	SignerPublicKey string `json:"signerPublicKey"`
}

func (s *Server) handleXRPChannelsClaim(w http.ResponseWriter, r *http.Request) {
	if s.node.Ledger == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("httpapi: ledger channel engine not configured"))
		return
	}
	var req xrpClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var destination types.Address
	for _, ch := range s.node.Ledger.Channels() {
		if ch.ChannelID.String() == req.ChannelID {
			destination = ch.Destination
			break
		}
	}
	if destination == "" {
		writeError(w, http.StatusBadRequest, errors.New("httpapi: unknown channelId"))
		return
	}

	claim, err := s.node.Ledger.OffChainUpdate(destination, types.XRPCurrencyAmount(req.Amount))
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}

	result, err := s.node.Ledger.Claim(r.Context(), claim, req.SignerPublicKey)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"hash":      result.Hash,
		"validated": result.Validated,
		"engineErr": result.EngineErr,
	})
}

type configureEVMRequest struct {
	ContractAddress string `json:"contractAddress"`
	TokenAddress    string `json:"tokenAddress"`
}

func (s *Server) handleConfigureEVM(w http.ResponseWriter, r *http.Request) {
	if s.node.EVM == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("httpapi: evm channel engine not configured"))
		return
	}
	var req configureEVMRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.ContractAddress != "" {
		s.node.EVM.ContractAddress = common.HexToAddress(req.ContractAddress)
	}
	if req.TokenAddress != "" {
		s.node.EVM.TokenAddress = common.HexToAddress(req.TokenAddress)
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type configureXRPRequest struct {
	Account string `json:"account"`
}

func (s *Server) handleConfigureXRP(w http.ResponseWriter, r *http.Request) {
	if s.node.Ledger == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("httpapi: ledger channel engine not configured"))
		return
	}
	var req configureXRPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Account != "" {
		s.node.Ledger.Account = types.Address(req.Account)
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
