package sponsor

import (
	"context"
	"testing"
	"time"

	sdkcrypto "github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/stretchr/testify/assert"

	"github.com/caesar4321/confio-go/algoman"
	"github.com/caesar4321/confio-go/common"
	"github.com/caesar4321/confio-go/groupbuilder"
	"github.com/caesar4321/confio-go/keyservice"
	"github.com/caesar4321/confio-go/state"
)

const testAssetID = uint64(1001)

type ampleHoldings struct{}

func (ampleHoldings) OptedIn(types.Address, uint64) (bool, error) { return true, nil }

func (ampleHoldings) AssetBalance(types.Address, uint64) (uint64, error) { return 1 << 62, nil }

func testBuilder(sponsor types.Address) *groupbuilder.Builder {
	assets := []common.AssetSpec{
		{AssetID: testAssetID, Unit: "cUSD", Decimals: 6, Kind: common.AssetStablecoinPrimary},
	}
	return groupbuilder.New(
		groupbuilder.Config{BoxMBRHeadroom: 10_000, PrepareTTL: 2 * time.Minute},
		sponsor, assets, nil, ampleHoldings{},
	)
}

func prepareTransfer(t *testing.T, sim *algoman.Simulated, signer *keyservice.SponsorSigner, user sdkcrypto.Account, receiver types.Address, amount uint64) *groupbuilder.PreparedGroup {
	t.Helper()
	sp, err := sim.SuggestedParams(context.Background())
	assert.NoError(t, err)

	pg, err := testBuilder(signer.Address()).Build("op-1", &groupbuilder.Request{
		OpKind:       common.OpTransfer,
		ActorAddress: user.Address,
		Params:       groupbuilder.Params{Receiver: receiver, Amount: amount, AssetID: testAssetID},
	}, sp)
	assert.NoError(t, err)
	return pg
}

func signUserPositions(t *testing.T, pg *groupbuilder.PreparedGroup, user sdkcrypto.Account) map[int][]byte {
	t.Helper()
	out := make(map[int][]byte)
	for _, idx := range pg.UserPositions() {
		_, blob, err := sdkcrypto.SignTransaction(user.PrivateKey, pg.Positions[idx].Txn)
		assert.NoError(t, err)
		out[idx] = blob
	}
	return out
}

func TestAdmitAndSubmit(t *testing.T) {
	ctx := context.Background()
	sim := algoman.NewSimulated()
	signer := keyservice.NewRandomSponsorSigner()
	user := sdkcrypto.GenerateAccount()
	receiver := common.RandAddress()

	sim.SetAlgoBalance(signer.Address(), 10_000_000)
	sim.SetAssetBalance(user.Address, testAssetID, 1_000)
	sim.OptIn(receiver, testAssetID)

	pg := prepareTransfer(t, sim, signer, user, receiver, 1_000)
	blobs, err := Admit(pg, signUserPositions(t, pg, user), signer)
	assert.NoError(t, err)
	assert.Equal(t, len(pg.Positions), len(blobs))

	ledger := state.MemoryLedger()
	defer ledger.Close()

	sub := NewSubmitter(Config{MinReserve: 1_000_000}, ledger, sim, signer)
	assert.NoError(t, sub.Start(ctx))

	txid, err := sub.Submit(ctx, blobs, pg.SponsorCost)
	assert.NoError(t, err)
	assert.NotEmpty(t, txid)

	round, err := sub.Confirm(ctx, txid, pg.SponsorCost)
	assert.NoError(t, err)
	assert.NotZero(t, round)

	// reservation settled into spend
	ss, err := sub.Health()
	assert.NoError(t, err)
	assert.Equal(t, uint64(0), ss.Reserved)
	assert.Equal(t, uint64(10_000_000-pg.SponsorCost), ss.Balance)
}

func TestAdmitRefusesMissingPosition(t *testing.T) {
	sim := algoman.NewSimulated()
	signer := keyservice.NewRandomSponsorSigner()
	user := sdkcrypto.GenerateAccount()

	pg := prepareTransfer(t, sim, signer, user, common.RandAddress(), 500)
	_, err := Admit(pg, map[int][]byte{}, signer)
	assert.ErrorIs(t, err, ErrPositionMissing)
}

func TestAdmitRefusesMutatedPosition(t *testing.T) {
	sim := algoman.NewSimulated()
	signer := keyservice.NewRandomSponsorSigner()
	user := sdkcrypto.GenerateAccount()

	pg := prepareTransfer(t, sim, signer, user, common.RandAddress(), 500)

	idx := pg.UserPositions()[0]
	forged := pg.Positions[idx].Txn
	forged.AssetAmount = 500_000 // more than was prepared
	_, blob, err := sdkcrypto.SignTransaction(user.PrivateKey, forged)
	assert.NoError(t, err)

	_, err = Admit(pg, map[int][]byte{idx: blob}, signer)
	assert.ErrorIs(t, err, ErrPositionMutated)
}

func TestAdmitRefusesWrongKey(t *testing.T) {
	sim := algoman.NewSimulated()
	signer := keyservice.NewRandomSponsorSigner()
	user := sdkcrypto.GenerateAccount()
	stranger := sdkcrypto.GenerateAccount()

	pg := prepareTransfer(t, sim, signer, user, common.RandAddress(), 500)

	idx := pg.UserPositions()[0]
	_, blob, err := sdkcrypto.SignTransaction(stranger.PrivateKey, pg.Positions[idx].Txn)
	assert.NoError(t, err)

	_, err = Admit(pg, map[int][]byte{idx: blob}, signer)
	assert.ErrorIs(t, err, ErrBadUserSignature)
}

func TestSubmitRefusesWhenReserveTooLow(t *testing.T) {
	ctx := context.Background()
	sim := algoman.NewSimulated()
	signer := keyservice.NewRandomSponsorSigner()

	// barely above the floor, nothing spendable
	sim.SetAlgoBalance(signer.Address(), 1_000_500)

	ledger := state.MemoryLedger()
	defer ledger.Close()

	sub := NewSubmitter(Config{MinReserve: 1_000_000}, ledger, sim, signer)
	assert.NoError(t, sub.Start(ctx))

	_, err := sub.Submit(ctx, [][]byte{}, 5*common.MinFee)
	assert.ErrorIs(t, err, state.ErrReserveTooLow)
}

func TestRejectedSendReleasesReservation(t *testing.T) {
	ctx := context.Background()
	sim := algoman.NewSimulated()
	signer := keyservice.NewRandomSponsorSigner()
	user := sdkcrypto.GenerateAccount()
	receiver := common.RandAddress()

	sim.SetAlgoBalance(signer.Address(), 10_000_000)
	sim.SetAssetBalance(user.Address, testAssetID, 1_000)
	sim.OptIn(receiver, testAssetID)

	pg := prepareTransfer(t, sim, signer, user, receiver, 1_000)
	blobs, err := Admit(pg, signUserPositions(t, pg, user), signer)
	assert.NoError(t, err)

	ledger := state.MemoryLedger()
	defer ledger.Close()

	sub := NewSubmitter(Config{MinReserve: 1_000_000}, ledger, sim, signer)
	assert.NoError(t, sub.Start(ctx))

	sim.FailNextSubmit(algoman.ErrLogicRejected)
	_, err = sub.Submit(ctx, blobs, pg.SponsorCost)
	assert.ErrorIs(t, err, algoman.ErrLogicRejected)

	ss, err := sub.Health()
	assert.NoError(t, err)
	assert.Equal(t, uint64(0), ss.Reserved)
	assert.Equal(t, uint64(10_000_000), ss.Balance)
}
