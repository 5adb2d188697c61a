// Server = chain gateway + key service + group builder + sponsor pipeline +
// reconciler + http reporter. All components are configured via environment
// variables (strings!).

package cmd

import (
	"context"
	"crypto/ed25519"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/algorand/go-algorand-sdk/v2/types"
	logger "github.com/sirupsen/logrus"

	"github.com/caesar4321/confio-go/algoman"
	"github.com/caesar4321/confio-go/common"
	"github.com/caesar4321/confio-go/groupbuilder"
	"github.com/caesar4321/confio-go/keyservice"
	"github.com/caesar4321/confio-go/reconciler"
	"github.com/caesar4321/confio-go/reporter"
	"github.com/caesar4321/confio-go/router"
	"github.com/caesar4321/confio-go/sponsor"
	"github.com/caesar4321/confio-go/state"
)

// Default params for server.
// More often we don't recommend users to tweak those.
// So we list them here.
const (
	// how long a prepared group stays valid for client signing
	defaultPrepareTTL = 5 * time.Minute

	// reconciler sweep frequencies
	frequencyToConfirmOutbound = 10 * time.Second
	frequencyToScanInbound     = 30 * time.Second

	// rounds behind the tip the inbound scanner trails
	defaultFinalityDepth = 2

	// sponsor balance re-read frequency
	frequencyToRefreshSponsorBalance = 30 * time.Second

	// rounds WaitForConfirmation spans before giving up on a group
	defaultWaitRounds = 10

	// how long a rotated-out pepper ciphertext keeps resolving
	defaultPepperGraceWindow = 24 * time.Hour

	// microalgos added on top of the computed box MBR
	defaultBoxMBRHeadroom = 10_000
)

// Keep the configuration's fields as "text" as possible.
// Its easier to load it from env vars or a config file.
type OrchestratorServerConfig struct {
	// chain side
	AlgodUrl     string // algod rest endpoint
	AlgodToken   string // algod api token
	IndexerUrl   string // indexer rest endpoint ("" = no indexer)
	IndexerToken string // indexer api token

	// state side
	DbFilePath string // db file path

	// key side
	MasterKeyFile string // file holding the hex master key (preferred)
	MasterKeyHex  string // hex master key, used when no file is given
	SponsorKeyHex string // hex ed25519 seed (32 bytes) or private key (64 bytes)

	// sponsor side
	MinReserve string // microalgos the sponsor balance never dips below

	// supported assets, asset id as decimal string ("" = not deployed)
	StablecoinAssetId string // cUSD
	CollateralAssetId string // USDC
	UtilityAssetId    string // CONFIO

	// deployed applications, id + escrow address ("" = not deployed)
	PaymentRouterAppId   string
	PaymentRouterAppAddr string
	MintBurnAppId        string
	MintBurnAppAddr      string
	EscrowAppId          string
	EscrowAppAddr        string
	InviteAppId          string
	InviteAppAddr        string
	PresaleAppId         string
	PresaleAppAddr       string

	// Http side
	HttpIp   string // eg. 0.0.0.0
	HttpPort string // eg. 8080
}

// OrchestratorServer holds the objects that consists of the orchestrator.
type OrchestratorServer struct {
	MyLedgerDb  *state.LedgerDB
	MyAlgoman   *algoman.Algoman
	MyAddresses *keyservice.AddressService
	MySigner    *keyservice.SponsorSigner
	MySubmitter *sponsor.Submitter
	MyBuilder   *groupbuilder.Builder
	MyOutbound  *reconciler.Outbound
	MyInbound   *reconciler.Inbound
	MyRouter    *router.Router
}

// NewOrchestratorServer creates a new orchestrator server.
// ctx is used for parental context to cancel the operation of the server.
// wg is used to wait for all the goroutines inside the server (submitter,
// reconciler, router sweeper) to finish.
func NewOrchestratorServer(osc *OrchestratorServerConfig, ctx context.Context, wg *sync.WaitGroup) (*OrchestratorServer, error) {
	// 0) connect to the algorand node (and indexer, if configured)
	myAlgoman, err := algoman.NewAlgoman(algoman.Config{
		AlgodURL:     osc.AlgodUrl,
		AlgodToken:   osc.AlgodToken,
		IndexerURL:   osc.IndexerUrl,
		IndexerToken: osc.IndexerToken,
		WaitRounds:   defaultWaitRounds,
	})
	if err != nil {
		logger.Fatalf("cannot connect to algod at %s: %v", osc.AlgodUrl, err)
		return nil, err
	}

	// 1) Create sql db, and the ledger db over it.
	sqldb, err := sql.Open("sqlite3", osc.DbFilePath)
	if err != nil {
		logger.Fatalf("failed to open db file: %v", err)
		return nil, err
	}
	myLedgerDb, err := state.NewLedgerDB(sqldb)
	if err != nil {
		logger.Fatalf("failed to create ledger db: %v", err)
		return nil, err
	}

	// 2) Key service: master key for peppers, sponsor key for signing.
	var km *keyservice.KeyManager
	if osc.MasterKeyFile != "" {
		km, err = keyservice.NewKeyManagerFromFile(osc.MasterKeyFile)
	} else {
		km, err = keyservice.NewKeyManagerFromHex(osc.MasterKeyHex)
	}
	if err != nil {
		logger.Fatalf("failed to load master key: %v", err)
		return nil, err
	}
	myAddresses := keyservice.NewAddressService(km, myLedgerDb, defaultPepperGraceWindow)

	mySigner, err := loadSponsorSigner(osc.SponsorKeyHex)
	if err != nil {
		logger.Fatalf("failed to load sponsor key: %v", err)
		return nil, err
	}
	logger.WithField("address", mySigner.Address().String()).Info("sponsor account")

	// 3) Sponsor submitter: serialized sends, reserve accounting.
	minReserve, err := parseUint(osc.MinReserve, "MIN_RESERVE")
	if err != nil {
		return nil, err
	}
	mySubmitter := sponsor.NewSubmitter(sponsor.Config{
		MinReserve:     minReserve,
		BalanceRefresh: frequencyToRefreshSponsorBalance,
	}, myLedgerDb, myAlgoman, mySigner)
	if err := mySubmitter.Start(ctx); err != nil {
		logger.Fatalf("failed to start sponsor submitter: %v", err)
		return nil, err
	}

	// 4) Group builder over the configured assets and applications.
	assets, err := assetTable(osc)
	if err != nil {
		return nil, err
	}
	apps, err := appTable(osc)
	if err != nil {
		return nil, err
	}
	myBuilder := groupbuilder.New(groupbuilder.Config{
		BoxMBRHeadroom: defaultBoxMBRHeadroom,
		PrepareTTL:     defaultPrepareTTL,
	}, mySigner.Address(), assets, apps, router.NewLedgerHoldings(myLedgerDb, myAlgoman))

	// 5) Reconciler: outbound confirmations + inbound deposits. The inbound
	// scanner only books deposits of the assets configured above.
	supported := make([]uint64, 0, len(assets))
	for _, a := range assets {
		supported = append(supported, a.AssetID)
	}
	reconCfg := reconciler.Config{
		OutboundInterval: frequencyToConfirmOutbound,
		InboundInterval:  frequencyToScanInbound,
		FinalityDepth:    defaultFinalityDepth,
		SupportedAssets:  supported,
	}
	myOutbound := reconciler.NewOutbound(reconCfg, myLedgerDb, myAlgoman, mySubmitter)
	myInbound := reconciler.NewInbound(reconCfg, myLedgerDb, myAlgoman)

	// 6) Router ties it together. The outbound reconciler doubles as the
	// fast-path resolver after a confirmation wait.
	myRouter := router.New(router.Config{PrepareTTL: defaultPrepareTTL},
		myLedgerDb, myAlgoman, myBuilder, myAddresses, mySigner, mySubmitter, myOutbound)

	// Important: turn on the background loops!
	myOutbound.Start(ctx)
	myInbound.Start(ctx)
	myRouter.Start(ctx)

	// Hold the waitgroup until the parental context is cancelled, so the
	// main routine's wg.Wait() blocks for the lifetime of the loops above.
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()
	}()

	// *** Setup a http server to report status ***
	http_server := reporter.NewHttpReporter(
		osc.HttpIp,
		osc.HttpPort,
		myRouter,
		mySubmitter,
	)
	// Turn on the http server
	go http_server.Run()

	// Give it some time to start the http server
	time.Sleep(1 * time.Second)
	// *** End the setup of http server ***

	return &OrchestratorServer{
		MyLedgerDb:  myLedgerDb,
		MyAlgoman:   myAlgoman,
		MyAddresses: myAddresses,
		MySigner:    mySigner,
		MySubmitter: mySubmitter,
		MyBuilder:   myBuilder,
		MyOutbound:  myOutbound,
		MyInbound:   myInbound,
		MyRouter:    myRouter,
	}, nil
}

// Create, then start the orchestrator server and wait.
// Press Ctrl-C to kill the server.
func StartOrchestratorServerAndWait(osc *OrchestratorServerConfig) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up a signal channel to listen for Ctrl-C (SIGINT) or SIGTERM
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	// Launch a new goroutine to handle the signal
	go func() {
		sig := <-sigCh
		fmt.Printf("Received signal: %v, cancelling context...\n", sig)
		cancel()
	}()

	var wg sync.WaitGroup

	_, err := NewOrchestratorServer(osc, ctx, &wg)
	if err != nil {
		logger.Fatalf("failed to create orchestrator server: %v", err)
		return
	}

	// wait for all routines to finish (which is forever)
	wg.Wait()
}

// loadSponsorSigner accepts either a 32-byte hex seed or a 64-byte hex
// private key. The decoded key lives only inside the returned signer.
func loadSponsorSigner(hexKey string) (*keyservice.SponsorSigner, error) {
	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("sponsor key is not hex: %w", err)
	}
	switch len(raw) {
	case ed25519.SeedSize:
		return keyservice.NewSponsorSigner(ed25519.NewKeyFromSeed(raw))
	case ed25519.PrivateKeySize:
		return keyservice.NewSponsorSigner(ed25519.PrivateKey(raw))
	default:
		return nil, fmt.Errorf("sponsor key must be %d or %d bytes, got %d",
			ed25519.SeedSize, ed25519.PrivateKeySize, len(raw))
	}
}

// assetTable builds the supported asset list from the config. Unset ids are
// skipped so a partial deployment still boots.
func assetTable(osc *OrchestratorServerConfig) ([]common.AssetSpec, error) {
	table := []struct {
		id       string
		unit     string
		decimals uint32
		kind     common.AssetKind
	}{
		{osc.StablecoinAssetId, "cUSD", 6, common.AssetStablecoinPrimary},
		{osc.CollateralAssetId, "USDC", 6, common.AssetStablecoinColl},
		{osc.UtilityAssetId, "CONFIO", 6, common.AssetUtilityToken},
	}

	var assets []common.AssetSpec
	for _, row := range table {
		if row.id == "" {
			continue
		}
		id, err := parseUint(row.id, row.unit+" asset id")
		if err != nil {
			return nil, err
		}
		assets = append(assets, common.AssetSpec{
			AssetID:  id,
			Unit:     row.unit,
			Decimals: row.decimals,
			Kind:     row.kind,
		})
	}
	if len(assets) == 0 {
		return nil, fmt.Errorf("no assets configured")
	}
	return assets, nil
}

// appTable builds the application specs, with the ARC-4 selectors each
// application answers to. Unset ids are skipped.
func appTable(osc *OrchestratorServerConfig) ([]common.AppSpec, error) {
	table := []struct {
		id, addr   string
		role       common.AppRole
		signatures map[string]string
	}{
		{osc.PaymentRouterAppId, osc.PaymentRouterAppAddr, common.AppPaymentRouter, map[string]string{
			"pay": "pay(axfer,account,account,byte[])void",
		}},
		{osc.MintBurnAppId, osc.MintBurnAppAddr, common.AppMintBurn, map[string]string{
			"mint": "mint(axfer,account,uint64)void",
			"burn": "burn(axfer,account,uint64)void",
		}},
		{osc.EscrowAppId, osc.EscrowAppAddr, common.AppP2PEscrow, map[string]string{
			"create":   "create(byte[],address,address,uint64)void",
			"deposit":  "deposit(axfer,byte[])void",
			"complete": "complete(byte[],account,account)void",
			"cancel":   "cancel(byte[],account,account)void",
			"resolve":  "resolve(byte[],account,account,account)void",
		}},
		{osc.InviteAppId, osc.InviteAppAddr, common.AppInviteRouter, map[string]string{
			"send":    "send(axfer,byte[],byte[])void",
			"claim":   "claim(byte[],account)void",
			"reclaim": "reclaim(byte[])void",
		}},
		{osc.PresaleAppId, osc.PresaleAppAddr, common.AppPresale, map[string]string{
			"contribute":   "contribute(axfer)void",
			"claim_tokens": "claim_tokens(account)void",
		}},
	}

	var apps []common.AppSpec
	for _, row := range table {
		if row.id == "" {
			continue
		}
		id, err := parseUint(row.id, string(row.role)+" app id")
		if err != nil {
			return nil, err
		}
		addr, err := types.DecodeAddress(row.addr)
		if err != nil {
			return nil, fmt.Errorf("%s app address: %w", row.role, err)
		}
		methods := make(map[string][]byte, len(row.signatures))
		for name, sig := range row.signatures {
			methods[name] = common.MethodSelector(sig)
		}
		apps = append(apps, common.AppSpec{
			AppID:      id,
			AppAddress: addr,
			Role:       row.role,
			Methods:    methods,
		})
	}
	return apps, nil
}

func parseUint(s, what string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad %s %q: %w", what, s, err)
	}
	return v, nil
}
