package groupbuilder

import (
	"time"

	"github.com/algorand/go-algorand-sdk/v2/types"

	"github.com/caesar4321/confio-go/common"
)

// Fixtures for builder tests. Asset ids and app ids are arbitrary but stable
// so encoded groups are reproducible within a test.

const (
	simStableID     uint64 = 1001
	simCollateralID uint64 = 1002
	simUtilityID    uint64 = 1003
)

func simAssets() []common.AssetSpec {
	return []common.AssetSpec{
		{AssetID: simStableID, Unit: "cUSD", Decimals: 6, Kind: common.AssetStablecoinPrimary},
		{AssetID: simCollateralID, Unit: "USDC", Decimals: 6, Kind: common.AssetStablecoinColl},
		{AssetID: simUtilityID, Unit: "CONFIO", Decimals: 6, Kind: common.AssetUtilityToken},
	}
}

func simApps() []common.AppSpec {
	roles := []common.AppRole{
		common.AppPaymentRouter,
		common.AppMintBurn,
		common.AppP2PEscrow,
		common.AppInviteRouter,
		common.AppPresale,
	}
	methods := []string{
		"pay", "mint", "burn",
		"create", "deposit", "complete", "cancel", "resolve",
		"send", "claim", "reclaim",
		"contribute", "claim_tokens",
	}

	apps := make([]common.AppSpec, 0, len(roles))
	for i, role := range roles {
		m := make(map[string][]byte, len(methods))
		for j, name := range methods {
			m[name] = []byte{byte(i), byte(j), 0xaa, 0xbb}
		}
		apps = append(apps, common.AppSpec{
			AppID:      uint64(5000 + i),
			AppAddress: common.RandAddress(),
			Role:       role,
			Methods:    m,
		})
	}
	return apps
}

func simParams() types.SuggestedParams {
	gh := common.RandBytes32()
	return types.SuggestedParams{
		Fee:             0,
		GenesisID:       "simnet-v1",
		GenesisHash:     gh[:],
		FirstRoundValid: 4000,
		LastRoundValid:  5000,
		MinFee:          common.MinFee,
	}
}

// simHoldings answers holding queries from static sets. A nil opt-in set
// means every address holds every asset; a nil balance set means every
// balance is ample.
type simHoldings struct {
	optIns   map[types.Address]map[uint64]bool
	balances map[types.Address]map[uint64]uint64
}

func (s *simHoldings) OptedIn(addr types.Address, assetID uint64) (bool, error) {
	if s.optIns == nil {
		return true, nil
	}
	return s.optIns[addr][assetID], nil
}

func (s *simHoldings) AssetBalance(addr types.Address, assetID uint64) (uint64, error) {
	if s.balances == nil {
		return 1 << 62, nil
	}
	return s.balances[addr][assetID], nil
}

func simBuilder(sponsor types.Address, holdings HoldingSource) *Builder {
	if holdings == nil {
		holdings = &simHoldings{}
	}
	return New(Config{BoxMBRHeadroom: 10_000, PrepareTTL: 2 * time.Minute}, sponsor, simAssets(), simApps(), holdings)
}
