package state

import (
	"database/sql"
)

// GetCursor returns the scanner's cursor, creating a zero row on first use.
func (l *LedgerDB) GetCursor(scanner string) (*Cursor, error) {
	query := `SELECT scanner, lastRound, version FROM indexer_cursor WHERE scanner = ?`
	stmt, err := l.stmtCache.Prepare(query)
	if err != nil {
		return nil, err
	}

	var c Cursor
	err = stmt.QueryRow(scanner).Scan(&c.Scanner, &c.LastRound, &c.Version)
	if err == sql.ErrNoRows {
		if err := l.initCursor(scanner); err != nil {
			return nil, err
		}
		return &Cursor{Scanner: scanner}, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// AdvanceCursor moves the cursor forward with optimistic concurrency: the
// update only lands when the stored version is still the one we read. The
// scanner task is the sole writer, so a conflict means a second instance is
// racing us and must back off.
func (l *LedgerDB) AdvanceCursor(c *Cursor, newRound uint64) error {
	if newRound < c.LastRound {
		return nil
	}

	query := `UPDATE indexer_cursor SET lastRound = ?, version = version + 1
		WHERE scanner = ? AND version = ?`
	stmt, err := l.stmtCache.Prepare(query)
	if err != nil {
		return err
	}
	res, err := stmt.Exec(newRound, c.Scanner, c.Version)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrCursorConflict
	}
	c.LastRound = newRound
	c.Version++
	return nil
}

func (l *LedgerDB) initCursor(scanner string) error {
	query := `INSERT OR IGNORE INTO indexer_cursor (scanner, lastRound, version)
		VALUES (?, 0, 0)`
	stmt, err := l.stmtCache.Prepare(query)
	if err != nil {
		return err
	}
	_, err = stmt.Exec(scanner)
	return err
}
