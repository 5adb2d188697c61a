package reporter

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	sdkcrypto "github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/encoding/msgpack"
	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/caesar4321/confio-go/algoman"
	"github.com/caesar4321/confio-go/common"
	"github.com/caesar4321/confio-go/groupbuilder"
	"github.com/caesar4321/confio-go/keyservice"
	"github.com/caesar4321/confio-go/router"
	"github.com/caesar4321/confio-go/sponsor"
	"github.com/caesar4321/confio-go/state"
)

const testAssetID = uint64(1001)

type webHarness struct {
	ledger *state.LedgerDB
	sim    *algoman.Simulated
	km     *keyservice.KeyManager
	reader *HttpReader
	server *httptest.Server
}

func newWebHarness(t *testing.T) *webHarness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	ledger := state.MemoryLedger()
	t.Cleanup(ledger.Close)

	masterKey := common.RandBytes32()
	km, err := keyservice.NewKeyManagerFromHex(hex.EncodeToString(masterKey[:]))
	assert.NoError(t, err)
	addresses := keyservice.NewAddressService(km, ledger, time.Hour)

	sim := algoman.NewSimulated()
	signer := keyservice.NewRandomSponsorSigner()
	sim.SetAlgoBalance(signer.Address(), 100_000_000)

	assets := []common.AssetSpec{
		{AssetID: testAssetID, Unit: "cUSD", Decimals: 6, Kind: common.AssetStablecoinPrimary},
	}
	builder := groupbuilder.New(
		groupbuilder.Config{BoxMBRHeadroom: 10_000, PrepareTTL: time.Minute},
		signer.Address(), assets, nil, router.NewLedgerHoldings(ledger, sim),
	)

	sub := sponsor.NewSubmitter(sponsor.Config{MinReserve: 1_000_000}, ledger, sim, signer)
	assert.NoError(t, sub.Start(ctx))

	rt := router.New(router.Config{PrepareTTL: time.Minute}, ledger, sim, builder, addresses, signer, sub, nil)

	h := NewHttpReporter("127.0.0.1", "0", rt, sub)
	server := httptest.NewServer(h.SetupRouter())
	t.Cleanup(server.Close)

	return &webHarness{
		ledger: ledger,
		sim:    sim,
		km:     km,
		reader: NewHttpReader(server.URL),
		server: server,
	}
}

type preparePayload struct {
	OpID          string   `json:"op_id"`
	GroupID       string   `json:"group_id"`
	Transactions  []string `json:"transactions"`
	UserPositions []int    `json:"user_positions"`
	SponsorCost   uint64   `json:"sponsor_cost"`
}

func (wh *webHarness) signAsClient(t *testing.T, accountKey string, res *preparePayload) *SubmitRequest {
	t.Helper()
	acct, err := wh.ledger.GetAccount(accountKey)
	assert.NoError(t, err)
	pepper, err := wh.km.OpenPepper(acct.PepperCipher)
	assert.NoError(t, err)
	sk := keyservice.ClientKey(accountKey, pepper)

	signed := make(map[string]string)
	for _, idx := range res.UserPositions {
		raw, err := base64.StdEncoding.DecodeString(res.Transactions[idx])
		assert.NoError(t, err)
		var txn types.Transaction
		assert.NoError(t, msgpack.Decode(raw, &txn))
		_, blob, err := sdkcrypto.SignTransaction(sk, txn)
		assert.NoError(t, err)
		signed[strconv.Itoa(idx)] = base64.StdEncoding.EncodeToString(blob)
	}
	return &SubmitRequest{Signed: signed}
}

func TestHealthRoute(t *testing.T) {
	wh := newWebHarness(t)
	body, err := wh.reader.GetHealth()
	assert.NoError(t, err)
	assert.Contains(t, body, "ok")
}

func TestPrepareSubmitOverHTTP(t *testing.T) {
	wh := newWebHarness(t)

	// provision the user and a receiver on the simulated chain
	acctBody, err := wh.reader.get("/v1/accounts/user_alice")
	assert.NoError(t, err)
	var acctResp struct {
		Address string `json:"address"`
	}
	assert.NoError(t, json.Unmarshal([]byte(acctBody), &acctResp))
	userAddr, err := types.DecodeAddress(acctResp.Address)
	assert.NoError(t, err)

	wh.sim.SetAssetBalance(userAddr, testAssetID, 1_000)
	receiver := common.RandAddress()
	wh.sim.OptIn(receiver, testAssetID)

	body, status, err := wh.reader.PostPrepare(&PrepareRequest{
		AccountKey: "user_alice",
		OpKind:     string(common.OpTransfer),
		Receiver:   receiver.String(),
		Amount:     400,
		AssetID:    testAssetID,
	})
	assert.NoError(t, err)
	assert.Equal(t, 200, status, body)

	var res preparePayload
	assert.NoError(t, json.Unmarshal([]byte(body), &res))
	assert.NotEmpty(t, res.OpID)
	assert.Equal(t, []int{1}, res.UserPositions)
	assert.Equal(t, 2*common.MinFee, res.SponsorCost)

	body, status, err = wh.reader.PostSubmit(res.OpID, wh.signAsClient(t, "user_alice", &res))
	assert.NoError(t, err)
	assert.Equal(t, 200, status, body)
	assert.Contains(t, body, "submitted")

	opBody, err := wh.reader.GetOperation(res.OpID)
	assert.NoError(t, err)
	assert.Contains(t, opBody, "submitted")
}

func TestPrepareRejectsBadRequest(t *testing.T) {
	wh := newWebHarness(t)

	// missing account key
	_, status, err := wh.reader.PostPrepare(&PrepareRequest{OpKind: "transfer"})
	assert.NoError(t, err)
	assert.Equal(t, 400, status)

	// zero amount
	body, status, err := wh.reader.PostPrepare(&PrepareRequest{
		AccountKey: "user_bob",
		OpKind:     string(common.OpTransfer),
		Receiver:   common.RandAddress().String(),
		Amount:     0,
		AssetID:    testAssetID,
	})
	assert.NoError(t, err)
	assert.Equal(t, 400, status)
	assert.Contains(t, body, string(router.CodeInvalidRequest))
}

func TestUnknownOperationIs404(t *testing.T) {
	wh := newWebHarness(t)
	body, status, err := wh.reader.PostSubmit("does-not-exist", &SubmitRequest{Signed: map[string]string{}})
	assert.NoError(t, err)
	assert.Equal(t, 404, status)
	assert.Contains(t, body, string(router.CodeUnknownOperation))
}

func TestSponsorRoute(t *testing.T) {
	wh := newWebHarness(t)
	body, err := wh.reader.GetSponsor()
	assert.NoError(t, err)

	var resp struct {
		Balance   uint64 `json:"balance"`
		Available uint64 `json:"available"`
	}
	assert.NoError(t, json.Unmarshal([]byte(body), &resp))
	assert.Equal(t, uint64(100_000_000), resp.Balance)
	assert.Equal(t, uint64(99_000_000), resp.Available)
}

func TestBalanceRoute(t *testing.T) {
	wh := newWebHarness(t)

	_, err := wh.reader.get("/v1/accounts/user_carol")
	assert.NoError(t, err)
	_, err = wh.ledger.ApplyBalanceDelta(&state.BalanceDelta{
		TxID: "SEED-carol", Position: 0,
		AccountKey: "user_carol", AssetID: testAssetID,
		Amount: 750, Round: 1,
	})
	assert.NoError(t, err)

	body, err := wh.reader.GetBalance("user_carol", strconv.FormatUint(testAssetID, 10))
	assert.NoError(t, err)
	assert.Contains(t, body, "750")

	// missing asset id
	body, err = wh.reader.get("/v1/accounts/user_carol/balance")
	assert.NoError(t, err)
	assert.Contains(t, body, string(router.CodeInvalidRequest))
}
