package groupbuilder

import (
	"encoding/binary"
	"time"

	sdkcrypto "github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/encoding/msgpack"
	"github.com/algorand/go-algorand-sdk/v2/types"
	logger "github.com/sirupsen/logrus"

	"github.com/caesar4321/confio-go/common"
)

type Config struct {
	// extra microalgos on top of each exact box MBR
	BoxMBRHeadroom uint64

	// how long a prepared group stays valid waiting for the client signature
	PrepareTTL time.Duration
}

// Builder turns operation requests into canonical prepared groups. Every
// recipe encodes the positional layout the target contract asserts.
type Builder struct {
	cfg      Config
	sponsor  types.Address
	assets   map[uint64]common.AssetSpec
	byKind   map[common.AssetKind]common.AssetSpec
	apps     map[common.AppRole]common.AppSpec
	holdings HoldingSource
}

func New(cfg Config, sponsor types.Address, assets []common.AssetSpec, apps []common.AppSpec, holdings HoldingSource) *Builder {
	b := &Builder{
		cfg:      cfg,
		sponsor:  sponsor,
		assets:   make(map[uint64]common.AssetSpec),
		byKind:   make(map[common.AssetKind]common.AssetSpec),
		apps:     make(map[common.AppRole]common.AppSpec),
		holdings: holdings,
	}
	for _, a := range assets {
		b.assets[a.AssetID] = a
		b.byKind[a.Kind] = a
	}
	for _, app := range apps {
		b.apps[app.Role] = app
	}
	return b
}

// Build assembles the group for one request. The same suggested params are
// applied to every position so the group shares one validity window; the
// group id is computed last and stamped on every position.
func (b *Builder) Build(opID string, req *Request, sp types.SuggestedParams) (*PreparedGroup, error) {
	var (
		positions []PositionSpec
		err       error
	)

	switch req.OpKind {
	case common.OpTransfer:
		positions, err = b.buildTransfer(req, sp)
	case common.OpOptIn:
		positions, err = b.buildOptIn(req, sp)
	case common.OpPayInvoice:
		positions, err = b.buildPayInvoice(req, sp)
	case common.OpMintCollateral:
		positions, err = b.buildMintCollateral(req, sp)
	case common.OpBurn:
		positions, err = b.buildBurn(req, sp)
	case common.OpEscrowCreate:
		positions, err = b.buildEscrowCreate(req, sp)
	case common.OpEscrowDeposit:
		positions, err = b.buildEscrowDeposit(req, sp)
	case common.OpEscrowComplete:
		positions, err = b.buildEscrowTerminal(req, sp, "complete")
	case common.OpEscrowCancel:
		positions, err = b.buildEscrowTerminal(req, sp, "cancel")
	case common.OpEscrowResolve:
		positions, err = b.buildEscrowTerminal(req, sp, "resolve")
	case common.OpInviteSend:
		positions, err = b.buildInviteSend(req, sp)
	case common.OpInviteClaim:
		positions, err = b.buildInviteRedeem(req, sp, "claim")
	case common.OpInviteReclaim:
		positions, err = b.buildInviteRedeem(req, sp, "reclaim")
	case common.OpPresaleContribute:
		positions, err = b.buildPresaleContribute(req, sp)
	case common.OpPresaleClaim:
		positions, err = b.buildPresaleClaim(req, sp)
	default:
		return nil, ErrUnknownOp
	}
	if err != nil {
		return nil, err
	}

	return b.finalize(opID, req.OpKind, positions, sp)
}

func (b *Builder) finalize(opID string, op common.OpKind, positions []PositionSpec, sp types.SuggestedParams) (*PreparedGroup, error) {
	group := make([]types.Transaction, len(positions))
	for i := range positions {
		positions[i].Index = i
		tx := positions[i].Txn
		// Recipes never set these; assert anyway before hashing.
		if !common.IsZeroAddress(tx.RekeyTo) ||
			!common.IsZeroAddress(tx.CloseRemainderTo) ||
			!common.IsZeroAddress(tx.AssetCloseTo) {
			logger.WithField("opKind", op).Error("recipe produced rekey/close fields")
			return nil, ErrUnknownOp
		}
		group[i] = tx
	}

	gid, err := sdkcrypto.ComputeGroupID(group)
	if err != nil {
		return nil, err
	}

	var sponsorCost uint64
	encoded := make([][]byte, len(positions))
	for i := range positions {
		positions[i].Txn.Group = gid
		encoded[i] = msgpack.Encode(&positions[i].Txn)

		if positions[i].Signer == common.SignerSponsor {
			sponsorCost += uint64(positions[i].Txn.Fee)
			if positions[i].Txn.Type == types.PaymentTx {
				sponsorCost += uint64(positions[i].Txn.Amount)
			}
		}
	}

	return &PreparedGroup{
		OpID:        opID,
		OpKind:      op,
		GroupID:     gid,
		Positions:   positions,
		Encoded:     encoded,
		SponsorCost: sponsorCost,
		FirstValid:  uint64(sp.FirstRoundValid),
		LastValid:   uint64(sp.LastRoundValid),
		ExpiresAt:   time.Now().UTC().Add(b.cfg.PrepareTTL),
	}, nil
}

// --- transaction helpers ---

func header(sender types.Address, fee uint64, sp types.SuggestedParams) types.Header {
	var gh types.Digest
	copy(gh[:], sp.GenesisHash)
	return types.Header{
		Sender:      sender,
		Fee:         types.MicroAlgos(fee),
		FirstValid:  sp.FirstRoundValid,
		LastValid:   sp.LastRoundValid,
		GenesisID:   sp.GenesisID,
		GenesisHash: gh,
	}
}

func payment(sender, receiver types.Address, amount, fee uint64, sp types.SuggestedParams) types.Transaction {
	return types.Transaction{
		Type:   types.PaymentTx,
		Header: header(sender, fee, sp),
		PaymentTxnFields: types.PaymentTxnFields{
			Receiver: receiver,
			Amount:   types.MicroAlgos(amount),
		},
	}
}

func assetTransfer(sender, receiver types.Address, assetID, amount, fee uint64, sp types.SuggestedParams) types.Transaction {
	return types.Transaction{
		Type:   types.AssetTransferTx,
		Header: header(sender, fee, sp),
		AssetTransferTxnFields: types.AssetTransferTxnFields{
			XferAsset:     types.AssetIndex(assetID),
			AssetAmount:   amount,
			AssetReceiver: receiver,
		},
	}
}

// appCall builds a NoOp call against app. Box names reference boxes on the
// called app itself (foreign app index 0).
func (b *Builder) appCall(
	app common.AppSpec,
	sender types.Address,
	fee uint64,
	method string,
	args [][]byte,
	accounts []types.Address,
	foreignAssets []uint64,
	boxNames [][]byte,
	sp types.SuggestedParams,
) (types.Transaction, error) {
	selector, ok := app.Methods[method]
	if !ok {
		return types.Transaction{}, ErrUnknownApp
	}

	appArgs := make([][]byte, 0, 1+len(args))
	appArgs = append(appArgs, selector)
	appArgs = append(appArgs, args...)

	fa := make([]types.AssetIndex, len(foreignAssets))
	for i, id := range foreignAssets {
		fa[i] = types.AssetIndex(id)
	}
	boxes := make([]types.BoxReference, len(boxNames))
	for i, name := range boxNames {
		boxes[i] = types.BoxReference{Name: name}
	}

	return types.Transaction{
		Type:   types.ApplicationCallTx,
		Header: header(sender, fee, sp),
		ApplicationFields: types.ApplicationFields{
			ApplicationCallTxnFields: types.ApplicationCallTxnFields{
				ApplicationID:   types.AppIndex(app.AppID),
				OnCompletion:    types.NoOpOC,
				ApplicationArgs: appArgs,
				Accounts:        accounts,
				ForeignAssets:   fa,
				BoxReferences:   boxes,
			},
		},
	}, nil
}

// --- shared validation ---

func (b *Builder) assetOrErr(assetID uint64) (common.AssetSpec, error) {
	a, ok := b.assets[assetID]
	if !ok {
		return common.AssetSpec{}, ErrUnknownAsset
	}
	return a, nil
}

func (b *Builder) appOrErr(role common.AppRole) (common.AppSpec, error) {
	app, ok := b.apps[role]
	if !ok {
		return common.AppSpec{}, ErrUnknownApp
	}
	return app, nil
}

func (b *Builder) requireOptIn(addr types.Address, assetID uint64) error {
	ok, err := b.holdings.OptedIn(addr, assetID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotOptedIn
	}
	return nil
}

// requireBalance rejects a group whose user position would move more of an
// asset than the sender holds. The chain would refuse it anyway, but then the
// sponsor has already spent admission work and a submit slot on it.
func (b *Builder) requireBalance(addr types.Address, assetID, amount uint64) error {
	if err := b.requireOptIn(addr, assetID); err != nil {
		return err
	}
	bal, err := b.holdings.AssetBalance(addr, assetID)
	if err != nil {
		return err
	}
	if bal < amount {
		return ErrInsufficientBalance
	}
	return nil
}

func uint64Arg(v uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return buf
}
