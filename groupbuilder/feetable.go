package groupbuilder

import "github.com/caesar4321/confio-go/common"

// groupShape documents the outer and inner transaction counts of each
// recipe. The shapes come from the deployed contracts' documented behavior
// and are deliberately not configurable at runtime: fee sizing follows from
// them and an operator override would only produce rejected groups.
type groupShape struct {
	Outer int
	Inner int
}

var feeTable = map[common.OpKind]groupShape{
	common.OpTransfer:          {Outer: 2, Inner: 0},
	common.OpPayInvoice:        {Outer: 2, Inner: 2}, // merchant + fee collector payouts
	common.OpMintCollateral:    {Outer: 3, Inner: 2}, // cUSD mint + transfer out
	common.OpBurn:              {Outer: 3, Inner: 1}, // collateral return
	common.OpEscrowCreate:      {Outer: 2, Inner: 0},
	common.OpEscrowDeposit:     {Outer: 2, Inner: 0},
	common.OpEscrowComplete:    {Outer: 2, Inner: 2}, // payout + box MBR refund
	common.OpEscrowCancel:      {Outer: 2, Inner: 2},
	common.OpEscrowResolve:     {Outer: 2, Inner: 2},
	common.OpInviteSend:        {Outer: 3, Inner: 0},
	common.OpInviteClaim:       {Outer: 2, Inner: 2}, // payout + box MBR refund
	common.OpInviteReclaim:     {Outer: 2, Inner: 2},
	common.OpOptIn:             {Outer: 2, Inner: 0},
	common.OpPresaleContribute: {Outer: 2, Inner: 0},
	common.OpPresaleClaim:      {Outer: 2, Inner: 1}, // claimed tokens out
}

// shape panics on unknown kinds; callers dispatch on the same table.
func shape(op common.OpKind) groupShape {
	s, ok := feeTable[op]
	if !ok {
		panic("no fee shape for op kind " + string(op))
	}
	return s
}

// appCallFee is the flat fee of a sponsor app-call position: its own
// transaction plus every inner transaction the method performs.
func appCallFee(op common.OpKind) uint64 {
	return uint64(1+shape(op).Inner) * common.MinFee
}

// bumpFee is the flat fee of a sponsor fee-bump position: its own
// transaction plus the zero-fee positions it covers.
func bumpFee(covered int) uint64 {
	return uint64(1+covered) * common.MinFee
}
