package state

import (
	"database/sql"
)

// BalanceDelta is one ledger mutation derived from a confirmed on-chain
// transaction. TxID plus Position identify it forever.
type BalanceDelta struct {
	TxID       string
	Position   int
	AccountKey string
	AssetID    uint64
	Amount     int64 // signed: deposits positive, spends negative
	Round      uint64
}

// ApplyBalanceDelta applies one delta exactly once. A delta already marked in
// applied_delta is a no-op, so reprocessing an indexer page cannot double
// count. Deltas are also refused when their round precedes the last round
// already applied for that (account, asset), keeping per-account ordering.
func (l *LedgerDB) ApplyBalanceDelta(d *BalanceDelta) (applied bool, err error) {
	tx, err := l.db.Begin()
	if err != nil {
		return false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.Exec(
		`INSERT OR IGNORE INTO applied_delta (txId, position) VALUES (?, ?)`,
		d.TxID, d.Position)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		// already applied
		return false, tx.Commit()
	}

	var lastRound uint64
	err = tx.QueryRow(
		`SELECT lastAppliedRound FROM balance WHERE accountKey = ? AND assetId = ?`,
		d.AccountKey, d.AssetID).Scan(&lastRound)
	if err != nil && err != sql.ErrNoRows {
		return false, err
	}
	if err == sql.ErrNoRows {
		_, err = tx.Exec(
			`INSERT INTO balance (accountKey, assetId, amount, lastAppliedRound)
			VALUES (?, ?, 0, 0)`,
			d.AccountKey, d.AssetID)
		if err != nil {
			return false, err
		}
		lastRound = 0
	}

	if d.Round < lastRound {
		// Out-of-order replay of an older round. The marker row stays so the
		// delta is never retried, but the balance is left alone.
		return false, tx.Commit()
	}

	_, err = tx.Exec(
		`UPDATE balance SET amount = amount + ?, lastAppliedRound = ?
		WHERE accountKey = ? AND assetId = ?`,
		d.Amount, d.Round, d.AccountKey, d.AssetID)
	if err != nil {
		return false, err
	}

	return true, tx.Commit()
}

// GetBalance returns the off-chain ledger balance for (accountKey, assetID).
func (l *LedgerDB) GetBalance(accountKey string, assetID uint64) (int64, error) {
	query := `SELECT amount FROM balance WHERE accountKey = ? AND assetId = ?`
	stmt, err := l.stmtCache.Prepare(query)
	if err != nil {
		return 0, err
	}
	var amount int64
	err = stmt.QueryRow(accountKey, assetID).Scan(&amount)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return amount, nil
}
