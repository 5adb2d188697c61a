package algoman

import "time"

// Config carries the node and indexer endpoints. The indexer is optional at
// startup; reconciliation degrades to node-only confirmation checks without
// it.
type Config struct {
	AlgodURL     string
	AlgodToken   string
	IndexerURL   string
	IndexerToken string

	// rounds to wait for a submitted group before giving up
	WaitRounds uint64

	// per-call deadline applied on top of the caller's context
	RequestTimeout time.Duration
}
