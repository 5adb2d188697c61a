package state

import (
	"database/sql"

	"github.com/google/uuid"
	logger "github.com/sirupsen/logrus"

	"github.com/caesar4321/confio-go/common"
)

// RandRecord builds a transaction record fixture in the given status.
func RandRecord(status RecordStatus) *TransactionRecord {
	return &TransactionRecord{
		ID:      uuid.NewString(),
		OpKind:  common.OpTransfer,
		Actor:   "user_" + uuid.NewString()[:8],
		Amount:  5_000_000,
		AssetID: 31566704,
		Status:  status,
	}
}

// MemoryLedger opens a throwaway in-memory ledger with the schema applied.
// Test helper for this package and its dependents.
func MemoryLedger() *LedgerDB {
	ledger, err := NewLedgerDB(getMemoryDB())
	if err != nil {
		logger.Fatal(err)
	}
	return ledger
}

func getMemoryDB() *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		logger.Fatal(err)
	}
	// the ledger uses transactions; a single connection keeps :memory: stable
	db.SetMaxOpenConns(1)
	return db
}
