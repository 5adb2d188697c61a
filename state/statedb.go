package state

import (
	"database/sql"

	"github.com/caesar4321/confio-go/database"
)

// LedgerDB is the persistent store of accounts, transaction records, scanner
// cursors, sponsor state and off-chain balances. One instance per process,
// backed by a shared *sql.DB.
type LedgerDB struct {
	db        *sql.DB
	stmtCache *database.StmtCache
}

func NewLedgerDB(db *sql.DB) (*LedgerDB, error) {
	schema := accountTable + recordTable + recordStatusIndex + depositTxIndex +
		cursorTable + sponsorTable + balanceTable + appliedDeltaTable
	if _, err := db.Exec(schema); err != nil {
		return nil, err
	}

	return &LedgerDB{
		db:        db,
		stmtCache: database.NewStmtCache(db),
	}, nil
}

func (l *LedgerDB) Close() {
	l.stmtCache.Clear()
}
