// Command agentd boots one mesh-agent node: its identity, event database,
// telemetry store, follow graph, skill registry, dispatcher, peer
// transport, and whichever settlement substrates are configured, then
// serves the HTTP control surface until interrupted.
package main

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btclog"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/urfave/cli"

	"github.com/Peersyst/xrpl-go/xrpl/transaction/types"

	"github.com/ALLiDoizCode/m2m-sub004/budget"
	"github.com/ALLiDoizCode/m2m-sub004/channel/evm"
	"github.com/ALLiDoizCode/m2m-sub004/channel/ledger"
	"github.com/ALLiDoizCode/m2m-sub004/dispatch"
	"github.com/ALLiDoizCode/m2m-sub004/dvm"
	"github.com/ALLiDoizCode/m2m-sub004/event"
	"github.com/ALLiDoizCode/m2m-sub004/eventdb"
	"github.com/ALLiDoizCode/m2m-sub004/follow"
	"github.com/ALLiDoizCode/m2m-sub004/httpapi"
	"github.com/ALLiDoizCode/m2m-sub004/llm"
	"github.com/ALLiDoizCode/m2m-sub004/node"
	"github.com/ALLiDoizCode/m2m-sub004/packet"
	"github.com/ALLiDoizCode/m2m-sub004/prompt"
	"github.com/ALLiDoizCode/m2m-sub004/retry"
	"github.com/ALLiDoizCode/m2m-sub004/skill"
	"github.com/ALLiDoizCode/m2m-sub004/telemetry"
	"github.com/ALLiDoizCode/m2m-sub004/transport"
)

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "[agentd] %v\n", err)
	os.Exit(1)
}

func main() {
	app := cli.NewApp()
	app.Name = "agentd"
	app.Usage = "run one mesh-agent node"
	app.Flags = []cli.Flag{
		cli.IntFlag{Name: "http-port", Value: 8080, EnvVar: "AGENT_HTTP_PORT"},
		cli.IntFlag{Name: "btp-port", Value: 8081, EnvVar: "AGENT_BTP_PORT"},
		cli.IntFlag{Name: "explorer-port", Value: 8082, EnvVar: "AGENT_EXPLORER_PORT"},
		cli.StringFlag{Name: "id", EnvVar: "AGENT_ID"},
		cli.StringFlag{Name: "pubkey", EnvVar: "AGENT_PUBKEY"},
		cli.StringFlag{Name: "privkey", EnvVar: "AGENT_PRIVKEY"},
		cli.StringFlag{Name: "database-path", Value: "agent-events.db", EnvVar: "AGENT_DATABASE_PATH"},
		cli.StringFlag{Name: "explorer-db-path", Value: "agent-telemetry.db", EnvVar: "AGENT_EXPLORER_DB_PATH"},

		cli.BoolFlag{Name: "ai-enabled", EnvVar: "AI_AGENT_ENABLED"},
		cli.StringFlag{Name: "ai-model", EnvVar: "AI_AGENT_MODEL"},
		cli.Int64Flag{Name: "ai-max-tokens-per-request", Value: 4000, EnvVar: "AI_MAX_TOKENS_PER_REQUEST"},
		cli.Int64Flag{Name: "ai-max-tokens-per-hour", Value: 200000, EnvVar: "AI_MAX_TOKENS_PER_HOUR"},
		cli.StringFlag{Name: "ai-api-key", EnvVar: "AI_API_KEY"},

		cli.StringFlag{Name: "anvil-rpc-url", EnvVar: "ANVIL_RPC_URL"},
		cli.StringFlag{Name: "token-network-address", EnvVar: "TOKEN_NETWORK_ADDRESS"},
		cli.StringFlag{Name: "agent-token-address", EnvVar: "AGENT_TOKEN_ADDRESS"},

		cli.BoolFlag{Name: "xrp-enabled", EnvVar: "XRP_ENABLED"},
		cli.StringFlag{Name: "xrpl-wss-url", EnvVar: "XRPL_WSS_URL"},
		cli.StringFlag{Name: "xrpl-network", EnvVar: "XRPL_NETWORK"},
		cli.StringFlag{Name: "xrpl-account-secret", EnvVar: "XRPL_ACCOUNT_SECRET"},
		cli.StringFlag{Name: "xrpl-account-address", EnvVar: "XRPL_ACCOUNT_ADDRESS"},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fatal(err)
	}
}

func run(c *cli.Context) error {
	logBackend := btclog.NewBackend(os.Stdout)
	useLoggers(logBackend)

	id, err := loadIdentity(c.String("privkey"))
	if err != nil {
		return err
	}

	eventDB, err := eventdb.Open(c.String("database-path"))
	if err != nil {
		return err
	}
	defer eventDB.Close()

	telStore, err := telemetry.NewStore(c.String("explorer-db-path"), c.String("id"))
	if err != nil {
		return err
	}
	defer telStore.Close()

	router := follow.New()
	registry := skill.NewRegistry()
	registerBuiltinSkills(registry)

	direct := dispatch.NewDirect()
	for _, kind := range []int{0, 1, 3} {
		direct.RegisterHandler(kind, directSkillHandler(registry))
	}

	dispatcher := dispatch.Dispatcher(direct)
	if c.Bool("ai-enabled") {
		b := budget.New(budget.Config{
			Cap: c.Int64("ai-max-tokens-per-hour"),
			Emit: func(t telemetry.Type, fields map[string]interface{}) error {
				telStore.Emit(telemetry.Event{Type: t, Fields: fields})
				return nil
			},
		})
		var model llm.Client
		if c.String("ai-api-key") != "" {
			model = llm.NewHTTPClient(c.String("ai-model"), c.String("ai-api-key"))
		} else {
			model = &llm.StubClient{}
		}
		builder := prompt.New(c.String("id"), id.Pub, c.String("id"), "", registry)
		dispatcher = &dispatch.AI{
			Enabled:              true,
			FallbackOnExhaustion: true,
			Skills:               registry,
			Prompt:               builder,
			Budget:               b,
			Model:                model,
			Fallback:             direct,
			Timeout:              dispatch.DefaultTimeout,
			MaxSteps:             dispatch.DefaultMaxSteps,
		}
	}

	cfg := node.Config{
		ID:         c.String("id"),
		Identity:   id,
		EventDB:    eventDB,
		Telemetry:  telStore,
		Router:     router,
		Skills:     registry,
		Dispatcher: dispatcher,
		DVMTracker: dvm.NewTracker(dvm.TrackerConfig{Enabled: true, EmitProgressUpdates: true}, func(ev *event.Event) {}),
	}

	if c.String("anvil-rpc-url") != "" {
		evmEngine, err := buildEVMEngine(c, telStore)
		if err != nil {
			return err
		}
		cfg.EVM = evmEngine
	}
	if c.Bool("xrp-enabled") {
		ledgerEngine, err := buildLedgerEngine(c, telStore)
		if err != nil {
			return err
		}
		cfg.Ledger = ledgerEngine
	}

	n := node.New(cfg)
	n.Start()
	defer n.Shutdown()

	srv := httpapi.New(n)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", c.Int("http-port")),
		Handler: srv,
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fatal(err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(ctx)
}

func useLoggers(backend *btclog.Backend) {
	node.UseLogger(backend.Logger("NODE"))
	httpapi.UseLogger(backend.Logger("HTTP"))
	eventdb.UseLogger(backend.Logger("EDB"))
	telemetry.UseLogger(backend.Logger("TEL"))
	follow.UseLogger(backend.Logger("FLOW"))
	skill.UseLogger(backend.Logger("SKIL"))
	dispatch.UseLogger(backend.Logger("DISP"))
	packet.UseLogger(backend.Logger("PKT"))
	transport.UseLogger(backend.Logger("XPRT"))
	evm.UseLogger(backend.Logger("EEVM"))
	ledger.UseLogger(backend.Logger("LEDG"))
	dvm.UseLogger(backend.Logger("DVM"))
	retry.UseLogger(backend.Logger("RTRY"))
	budget.UseLogger(backend.Logger("BDGT"))
	prompt.UseLogger(backend.Logger("PRMT"))
	event.UseLogger(backend.Logger("EVNT"))
	llm.UseLogger(backend.Logger("LLM "))
}

func loadIdentity(privHex string) (*event.Identity, error) {
	if privHex == "" {
		return event.NewIdentity()
	}
	raw, err := hex.DecodeString(privHex)
	if err != nil {
		return nil, err
	}
	priv, _ := btcec.PrivKeyFromBytes(raw)
	id := event.IdentityFromPrivateKey(priv)
	if err := id.EnsureFulfillment(); err != nil {
		return nil, err
	}
	return id, nil
}

func buildEVMEngine(c *cli.Context, telStore *telemetry.Store) (*evm.Engine, error) {
	backend, err := ethclient.Dial(c.String("anvil-rpc-url"))
	if err != nil {
		return nil, err
	}
	chainID, err := backend.ChainID(context.Background())
	if err != nil {
		return nil, err
	}

	privHex := c.String("privkey")
	var priv *ecdsa.PrivateKey
	if privHex != "" {
		priv, err = crypto.HexToECDSA(privHex)
		if err != nil {
			return nil, err
		}
	} else {
		priv, err = crypto.GenerateKey()
		if err != nil {
			return nil, err
		}
	}

	contractAddr := common.HexToAddress(c.String("token-network-address"))
	tokenAddr := common.HexToAddress(c.String("agent-token-address"))
	domainSeparator := crypto.Keccak256Hash(contractAddr.Bytes(), chainID.Bytes())

	return evm.NewEngine(backend, chainID, priv, contractAddr, tokenAddr, domainSeparator, func(t telemetry.Type, fields map[string]interface{}) {
		telStore.Emit(telemetry.Event{Type: t, Fields: fields})
	}), nil
}

func buildLedgerEngine(c *cli.Context, telStore *telemetry.Store) (*ledger.Engine, error) {
	raw, err := hex.DecodeString(c.String("xrpl-account-secret"))
	if err != nil {
		return nil, err
	}
	priv, _ := btcec.PrivKeyFromBytes(raw)
	account := types.Address(c.String("xrpl-account-address"))
	backend := ledger.NewRPCBackend(c.String("xrpl-wss-url"))

	return ledger.NewEngine(backend, priv, account, func(t telemetry.Type, fields map[string]interface{}) {
		telStore.Emit(telemetry.Event{Type: t, Fields: fields})
	}), nil
}

func directSkillHandler(registry *skill.Registry) dispatch.HandlerFunc {
	return func(ctx *skill.Context) (*skill.Result, error) {
		for _, d := range registry.SkillsForKind(ctx.Event.Kind) {
			return d.Execute(nil, ctx)
		}
		return &skill.Result{Success: false, Error: &skill.HandlerError{Code: "F99", Message: "no skill registered for this kind"}}, nil
	}
}

func registerBuiltinSkills(registry *skill.Registry) {
	_ = registry.Register(&skill.Descriptor{
		Name:        "store_event",
		Description: "persists the incoming social-graph event",
		Kinds:       []int{0, 1},
		Execute: func(params map[string]interface{}, ctx *skill.Context) (*skill.Result, error) {
			if err := ctx.EventDB.Insert(context.Background(), ctx.Event); err != nil {
				return &skill.Result{Success: false, Error: &skill.HandlerError{Code: "F01", Message: err.Error()}}, nil
			}
			return &skill.Result{Success: true}, nil
		},
	})
	_ = registry.Register(&skill.Descriptor{
		Name:        "update_follow",
		Description: "applies a follow-list event to the follow graph",
		Kinds:       []int{3},
		Execute: func(params map[string]interface{}, ctx *skill.Context) (*skill.Result, error) {
			if err := ctx.EventDB.Insert(context.Background(), ctx.Event); err != nil {
				return &skill.Result{Success: false, Error: &skill.HandlerError{Code: "F01", Message: err.Error()}}, nil
			}
			return &skill.Result{Success: true}, nil
		},
	})
}
