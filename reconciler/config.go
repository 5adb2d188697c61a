package reconciler

import "time"

type Config struct {
	// pause between outbound confirmation sweeps
	OutboundInterval time.Duration

	// pause between inbound deposit sweeps
	InboundInterval time.Duration

	// rounds behind the tip the inbound scanner stays, so re-orgs near the
	// tip can never surface a deposit that later vanishes
	FinalityDepth uint64

	// backoff ceiling after repeated gateway failures
	MaxBackoff time.Duration

	// asset ids the inbound scanner records deposits for; transfers of
	// anything else, bare algo payments included, are left on chain
	SupportedAssets []uint64
}

func (c Config) withDefaults() Config {
	if c.OutboundInterval <= 0 {
		c.OutboundInterval = 10 * time.Second
	}
	if c.InboundInterval <= 0 {
		c.InboundInterval = 30 * time.Second
	}
	if c.FinalityDepth == 0 {
		c.FinalityDepth = 2
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 5 * time.Minute
	}
	return c
}
