package algoman

import (
	"context"
	"errors"
	"testing"

	sdkcrypto "github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/stretchr/testify/assert"

	"github.com/caesar4321/confio-go/common"
)

func TestCategorizeRejection(t *testing.T) {
	cases := map[string]error{
		"TransactionPool.Remember: fee 0 below threshold":              ErrInsufficientFee,
		"tx has insufficient fees for pooled group":                    ErrInsufficientFee,
		"account X balance 1000 below min 100000":                      ErrBelowMinBalance,
		"overspend, account would go negative":                         ErrBelowMinBalance,
		"asset 1001 missing from ABCD":                                 ErrAssetNotOptedIn,
		"receiver hasn't opted in to asset":                            ErrAssetNotOptedIn,
		"logic eval error: assert failed pc=142":                       ErrLogicRejected,
		"transaction rejected by logic":                                ErrLogicRejected,
		"something the node made up this release":                      ErrTxnRejected,
	}
	for msg, want := range cases {
		assert.ErrorIs(t, CategorizeRejection(errors.New(msg)), want, msg)
	}
	assert.Nil(t, CategorizeRejection(nil))
}

func signedGroup(t *testing.T, sim *Simulated, accounts []sdkcrypto.Account, build func(sp types.SuggestedParams) []types.Transaction) [][]byte {
	t.Helper()
	sp, err := sim.SuggestedParams(context.Background())
	assert.NoError(t, err)

	group := build(sp)
	gid, err := common.RecomputeGroupID(group)
	assert.NoError(t, err)

	signers := make(map[types.Address]sdkcrypto.Account, len(accounts))
	for _, a := range accounts {
		signers[a.Address] = a
	}

	blobs := make([][]byte, len(group))
	for i := range group {
		group[i].Group = gid
		signer, ok := signers[group[i].Sender]
		assert.True(t, ok, "no signer for position %d", i)
		_, blob, err := sdkcrypto.SignTransaction(signer.PrivateKey, group[i])
		assert.NoError(t, err)
		blobs[i] = blob
	}
	return blobs
}

func paymentTxn(sender, receiver types.Address, amount, fee uint64, sp types.SuggestedParams) types.Transaction {
	var gh types.Digest
	copy(gh[:], sp.GenesisHash)
	return types.Transaction{
		Type: types.PaymentTx,
		Header: types.Header{
			Sender:      sender,
			Fee:         types.MicroAlgos(fee),
			FirstValid:  sp.FirstRoundValid,
			LastValid:   sp.LastRoundValid,
			GenesisID:   sp.GenesisID,
			GenesisHash: gh,
		},
		PaymentTxnFields: types.PaymentTxnFields{
			Receiver: receiver,
			Amount:   types.MicroAlgos(amount),
		},
	}
}

func axferTxn(sender, receiver types.Address, assetID, amount, fee uint64, sp types.SuggestedParams) types.Transaction {
	var gh types.Digest
	copy(gh[:], sp.GenesisHash)
	return types.Transaction{
		Type: types.AssetTransferTx,
		Header: types.Header{
			Sender:      sender,
			Fee:         types.MicroAlgos(fee),
			FirstValid:  sp.FirstRoundValid,
			LastValid:   sp.LastRoundValid,
			GenesisID:   sp.GenesisID,
			GenesisHash: gh,
		},
		AssetTransferTxnFields: types.AssetTransferTxnFields{
			XferAsset:     types.AssetIndex(assetID),
			AssetAmount:   amount,
			AssetReceiver: receiver,
		},
	}
}

func TestSimulatedCommitsAtomicGroup(t *testing.T) {
	ctx := context.Background()
	sim := NewSimulated()
	sponsor := sdkcrypto.GenerateAccount()
	user := sdkcrypto.GenerateAccount()
	receiver := sdkcrypto.GenerateAccount()

	const asset = uint64(1001)
	sim.SetAlgoBalance(sponsor.Address, 1_000_000)
	sim.SetAssetBalance(user.Address, asset, 500)
	sim.OptIn(receiver.Address, asset)

	blobs := signedGroup(t, sim, []sdkcrypto.Account{sponsor, user}, func(sp types.SuggestedParams) []types.Transaction {
		return []types.Transaction{
			paymentTxn(sponsor.Address, sponsor.Address, 0, 2*common.MinFee, sp),
			axferTxn(user.Address, receiver.Address, asset, 500, 0, sp),
		}
	})

	txid, err := sim.SendRawGroup(ctx, blobs)
	assert.NoError(t, err)
	assert.NotEmpty(t, txid)

	round, err := sim.WaitForConfirmation(ctx, txid)
	assert.NoError(t, err)
	assert.NotZero(t, round)

	// effects applied
	bal, _, err := sim.AccountBalance(ctx, sponsor.Address.String())
	assert.NoError(t, err)
	assert.Equal(t, uint64(1_000_000-2*common.MinFee), bal)

	got, _, err := sim.SearchReceived(ctx, receiver.Address.String(), asset, 0, round, "")
	assert.NoError(t, err)
	assert.Equal(t, 1, len(got))
	assert.Equal(t, uint64(500), got[0].Amount)
}

func TestSimulatedRejectsWithoutApplying(t *testing.T) {
	ctx := context.Background()
	sim := NewSimulated()
	sponsor := sdkcrypto.GenerateAccount()
	user := sdkcrypto.GenerateAccount()
	receiver := sdkcrypto.GenerateAccount()

	const asset = uint64(1001)
	sim.SetAlgoBalance(sponsor.Address, 1_000_000)
	sim.SetAssetBalance(user.Address, asset, 500)
	// receiver never opts in

	blobs := signedGroup(t, sim, []sdkcrypto.Account{sponsor, user}, func(sp types.SuggestedParams) []types.Transaction {
		return []types.Transaction{
			paymentTxn(sponsor.Address, sponsor.Address, 0, 2*common.MinFee, sp),
			axferTxn(user.Address, receiver.Address, asset, 500, 0, sp),
		}
	})

	_, err := sim.SendRawGroup(ctx, blobs)
	assert.ErrorIs(t, err, ErrAssetNotOptedIn)

	// position 0 was valid but must not have been applied
	bal, _, err := sim.AccountBalance(ctx, sponsor.Address.String())
	assert.NoError(t, err)
	assert.Equal(t, uint64(1_000_000), bal)
}

func TestSimulatedRejectsDuplicateGroup(t *testing.T) {
	ctx := context.Background()
	sim := NewSimulated()
	sponsor := sdkcrypto.GenerateAccount()
	sim.SetAlgoBalance(sponsor.Address, 1_000_000)

	blobs := signedGroup(t, sim, []sdkcrypto.Account{sponsor}, func(sp types.SuggestedParams) []types.Transaction {
		return []types.Transaction{
			paymentTxn(sponsor.Address, sponsor.Address, 0, common.MinFee, sp),
			paymentTxn(sponsor.Address, sponsor.Address, 1, common.MinFee, sp),
		}
	})

	_, err := sim.SendRawGroup(ctx, blobs)
	assert.NoError(t, err)

	_, err = sim.SendRawGroup(ctx, blobs)
	assert.ErrorIs(t, err, ErrSimDuplicateGroup)
}

func TestSimulatedRejectsBadSignature(t *testing.T) {
	ctx := context.Background()
	sim := NewSimulated()
	sponsor := sdkcrypto.GenerateAccount()
	stranger := sdkcrypto.GenerateAccount()
	sim.SetAlgoBalance(sponsor.Address, 1_000_000)

	sp, err := sim.SuggestedParams(ctx)
	assert.NoError(t, err)

	tx := paymentTxn(sponsor.Address, sponsor.Address, 0, common.MinFee, sp)
	_, blob, err := sdkcrypto.SignTransaction(stranger.PrivateKey, tx)
	assert.NoError(t, err)

	_, err = sim.SendRawGroup(ctx, [][]byte{blob})
	assert.ErrorIs(t, err, ErrSimBadSignature)
}

func TestSimulatedRejectsExpiredWindow(t *testing.T) {
	ctx := context.Background()
	sim := NewSimulated()
	sponsor := sdkcrypto.GenerateAccount()
	sim.SetAlgoBalance(sponsor.Address, 1_000_000)

	blobs := signedGroup(t, sim, []sdkcrypto.Account{sponsor}, func(sp types.SuggestedParams) []types.Transaction {
		return []types.Transaction{paymentTxn(sponsor.Address, sponsor.Address, 0, common.MinFee, sp)}
	})

	sim.AdvanceRounds(2000)
	_, err := sim.SendRawGroup(ctx, blobs)
	assert.ErrorIs(t, err, ErrTxnRejected)
}

func TestFlattenSignedMapsBothTransferKinds(t *testing.T) {
	sender := common.RandAddress()
	receiver := common.RandAddress()
	gid := common.RandBytes32()

	pay := types.Transaction{
		Type:             types.PaymentTx,
		Header:           types.Header{Sender: sender, Group: types.Digest(gid)},
		PaymentTxnFields: types.PaymentTxnFields{Receiver: receiver, Amount: 42_000},
	}
	info := flattenSigned("PAY-TX-1", 77, pay)
	assert.Equal(t, "PAY-TX-1", info.TxID)
	assert.Equal(t, uint64(77), info.Round)
	assert.Equal(t, sender.String(), info.Sender)
	assert.Equal(t, receiver.String(), info.Receiver)
	assert.Equal(t, uint64(42_000), info.Amount)
	assert.Equal(t, uint64(0), info.AssetID)
	assert.Equal(t, gid[:], info.Group)

	axfer := types.Transaction{
		Type:   types.AssetTransferTx,
		Header: types.Header{Sender: sender},
		AssetTransferTxnFields: types.AssetTransferTxnFields{
			XferAsset:     1001,
			AssetAmount:   500,
			AssetReceiver: receiver,
		},
	}
	info = flattenSigned("AXFER-TX-1", 78, axfer)
	assert.Equal(t, receiver.String(), info.Receiver)
	assert.Equal(t, uint64(1001), info.AssetID)
	assert.Equal(t, uint64(500), info.Amount)
	assert.Empty(t, info.Group)
}

func TestSimulatedDepositVisibleToSearch(t *testing.T) {
	ctx := context.Background()
	sim := NewSimulated()
	managed := common.RandAddress()
	external := common.RandAddress()

	sim.Deposit("DEPOSIT-TX-1", external, managed, 1001, 750)

	latest, err := sim.LatestRound(ctx)
	assert.NoError(t, err)

	got, next, err := sim.SearchReceived(ctx, managed.String(), 1001, 0, latest, "")
	assert.NoError(t, err)
	assert.Empty(t, next)
	assert.Equal(t, 1, len(got))
	assert.Equal(t, "DEPOSIT-TX-1", got[0].TxID)

	info, err := sim.LookupTransaction(ctx, "DEPOSIT-TX-1")
	assert.NoError(t, err)
	assert.Equal(t, uint64(750), info.Amount)
}
