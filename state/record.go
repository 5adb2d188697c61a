package state

import (
	"database/sql"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
)

const recordColumns = ` id, opKind, actor, counterparty, amount, assetId,
	sponsorCost, status, groupId, txIds, lastValid, error, createdAt, updatedAt `

// InsertRecord persists a freshly prepared record. The record's timestamps
// are stamped here.
func (l *LedgerDB) InsertRecord(r *TransactionRecord) error {
	query := `INSERT INTO transaction_record (` + recordColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	stmt, err := l.stmtCache.Prepare(query)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now

	s := new(sqlRecord).encode(r)
	_, err = stmt.Exec(s.ID, s.OpKind, s.Actor, s.Counterparty, s.Amount,
		s.AssetID, s.SponsorCost, s.Status, s.GroupID, s.TxIDs, s.LastValid,
		s.Error, s.CreatedAt, s.UpdatedAt)
	return wrapUniqueErr(err)
}

// GetRecord fetches one record by id.
func (l *LedgerDB) GetRecord(id string) (*TransactionRecord, error) {
	query := `SELECT` + recordColumns + `FROM transaction_record WHERE id = ?`
	stmt, err := l.stmtCache.Prepare(query)
	if err != nil {
		return nil, err
	}
	return scanRecord(stmt.QueryRow(id))
}

// GetRecordsByStatus lists records in a given status, oldest first.
func (l *LedgerDB) GetRecordsByStatus(status RecordStatus) ([]*TransactionRecord, error) {
	query := `SELECT` + recordColumns + `FROM transaction_record
		WHERE status = ? ORDER BY createdAt ASC`
	stmt, err := l.stmtCache.Prepare(query)
	if err != nil {
		return nil, err
	}

	rows, err := stmt.Query(string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*TransactionRecord
	for rows.Next() {
		r, err := scanRecordRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// HasDepositForTxID reports whether a deposit record for txID already exists.
// The inbound scanner uses it to make re-scans no-ops.
func (l *LedgerDB) HasDepositForTxID(txID string) (bool, error) {
	query := `SELECT COUNT(*) FROM transaction_record
		WHERE opKind = 'deposit' AND txIds = ?`
	stmt, err := l.stmtCache.Prepare(query)
	if err != nil {
		return false, err
	}
	var n int
	if err := stmt.QueryRow(txID).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// UpdateRecordStatus moves a record along the status DAG. Illegal moves and
// moves from a different current status than expected fail without touching
// the row.
func (l *LedgerDB) UpdateRecordStatus(id string, from, to RecordStatus, errMsg string) error {
	if !CanTransition(from, to) {
		return ErrBadStatusTransition
	}

	query := `UPDATE transaction_record SET status = ?, error = ?, updatedAt = ?
		WHERE id = ? AND status = ?`
	stmt, err := l.stmtCache.Prepare(query)
	if err != nil {
		return err
	}

	res, err := stmt.Exec(string(to), errMsg, time.Now().UTC().Unix(), id, string(from))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrBadStatusTransition
	}
	return nil
}

// SetRecordSubmitted stamps the group id and txids while moving the record
// from pending_submit to submitted. The unique group id constraint rejects a
// second record claiming the same group.
func (l *LedgerDB) SetRecordSubmitted(id, groupID string, txIDs []string, lastValid uint64) error {
	query := `UPDATE transaction_record
		SET status = ?, groupId = ?, txIds = ?, lastValid = ?, updatedAt = ?
		WHERE id = ? AND status = ?`
	stmt, err := l.stmtCache.Prepare(query)
	if err != nil {
		return err
	}

	res, err := stmt.Exec(string(StatusSubmitted), groupID,
		strings.Join(txIDs, ","), lastValid, time.Now().UTC().Unix(),
		id, string(StatusPendingSubmit))
	if err != nil {
		return wrapUniqueErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrBadStatusTransition
	}
	return nil
}

// ExpireStaleClientSigns flips pending_client_sign records older than the
// cutoff to expired and returns how many were flipped.
func (l *LedgerDB) ExpireStaleClientSigns(cutoff time.Time) (int64, error) {
	query := `UPDATE transaction_record SET status = ?, updatedAt = ?
		WHERE status = ? AND createdAt < ?`
	stmt, err := l.stmtCache.Prepare(query)
	if err != nil {
		return 0, err
	}
	res, err := stmt.Exec(string(StatusExpired), time.Now().UTC().Unix(),
		string(StatusPendingClientSign), cutoff.Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanRecord(row *sql.Row) (*TransactionRecord, error) {
	var s sqlRecord
	err := row.Scan(&s.ID, &s.OpKind, &s.Actor, &s.Counterparty, &s.Amount,
		&s.AssetID, &s.SponsorCost, &s.Status, &s.GroupID, &s.TxIDs,
		&s.LastValid, &s.Error, &s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.decode(), nil
}

func scanRecordRows(rows *sql.Rows) (*TransactionRecord, error) {
	var s sqlRecord
	err := rows.Scan(&s.ID, &s.OpKind, &s.Actor, &s.Counterparty, &s.Amount,
		&s.AssetID, &s.SponsorCost, &s.Status, &s.GroupID, &s.TxIDs,
		&s.LastValid, &s.Error, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return s.decode(), nil
}

func wrapUniqueErr(err error) error {
	if err == nil {
		return nil
	}
	if sqliteErr, ok := err.(sqlite3.Error); ok &&
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return ErrDuplicateGroupID
	}
	return err
}
