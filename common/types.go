package common

import (
	"github.com/algorand/go-algorand-sdk/v2/types"
)

// OpKind names a supported sponsored operation. Each kind maps to exactly one
// group recipe in the builder and one row in the fee table.
type OpKind string

const (
	OpTransfer          OpKind = "transfer"
	OpPayInvoice        OpKind = "pay_invoice"
	OpMintCollateral    OpKind = "mint_collateral"
	OpBurn              OpKind = "burn"
	OpEscrowCreate      OpKind = "escrow_create"
	OpEscrowDeposit     OpKind = "escrow_deposit"
	OpEscrowComplete    OpKind = "escrow_complete"
	OpEscrowCancel      OpKind = "escrow_cancel"
	OpEscrowResolve     OpKind = "escrow_resolve"
	OpInviteSend        OpKind = "invite_send"
	OpInviteClaim       OpKind = "invite_claim"
	OpInviteReclaim     OpKind = "invite_reclaim"
	OpOptIn             OpKind = "opt_in"
	OpPresaleContribute OpKind = "presale_contribute"
	OpPresaleClaim      OpKind = "presale_claim"

	// OpDeposit is never prepared; the inbound scanner writes these records
	// directly when it observes funds arriving at a managed address.
	OpDeposit OpKind = "deposit"
)

// AssetKind classifies a configured ASA.
type AssetKind string

const (
	AssetNativeFeeToken      AssetKind = "native"
	AssetStablecoinPrimary   AssetKind = "stablecoin_primary"
	AssetStablecoinColl      AssetKind = "stablecoin_collateral"
	AssetUtilityToken        AssetKind = "utility"
)

// AssetSpec is static configuration for one supported asset.
type AssetSpec struct {
	AssetID  uint64
	Unit     string
	Decimals uint32
	Kind     AssetKind
}

// AppRole classifies a deployed application the orchestrator calls.
type AppRole string

const (
	AppPaymentRouter AppRole = "payment_router"
	AppMintBurn      AppRole = "mint_burn"
	AppP2PEscrow     AppRole = "p2p_escrow"
	AppInviteRouter  AppRole = "invite_router"
	AppPresale       AppRole = "presale"
	AppRewards       AppRole = "rewards"
)

// AppSpec is static per-deployment configuration for one application.
// Methods maps an ABI method name to its 4-byte selector.
type AppSpec struct {
	AppID      uint64
	AppAddress types.Address
	Role       AppRole
	Methods    map[string][]byte
}

// SignerRole tells who must sign a given position of a prepared group.
type SignerRole string

const (
	SignerSponsor SignerRole = "sponsor"
	SignerUser    SignerRole = "user"
	SignerAppLsig SignerRole = "app_lsig"
)
