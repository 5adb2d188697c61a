package state

import (
	"database/sql"
	"time"

	"github.com/algorand/go-algorand-sdk/v2/types"
)

// InitSponsorState creates the sponsor row if absent.
func (l *LedgerDB) InitSponsorState(addr types.Address, minReserve uint64) error {
	query := `INSERT OR IGNORE INTO sponsor_state
		(address, balance, reserved, minReserve, updatedAt)
		VALUES (?, 0, 0, ?, ?)`
	stmt, err := l.stmtCache.Prepare(query)
	if err != nil {
		return err
	}
	_, err = stmt.Exec(addr.String(), minReserve, time.Now().UTC().Unix())
	return err
}

func (l *LedgerDB) GetSponsorState(addr types.Address) (*SponsorState, error) {
	query := `SELECT address, balance, reserved, minReserve, updatedAt
		FROM sponsor_state WHERE address = ?`
	stmt, err := l.stmtCache.Prepare(query)
	if err != nil {
		return nil, err
	}

	var (
		s       SponsorState
		addrStr string
		updated int64
	)
	err = stmt.QueryRow(addr.String()).Scan(&addrStr, &s.Balance, &s.Reserved,
		&s.MinReserve, &updated)
	if err == sql.ErrNoRows {
		return nil, ErrSponsorNotFound
	}
	if err != nil {
		return nil, err
	}
	a, err := types.DecodeAddress(addrStr)
	if err != nil {
		return nil, err
	}
	s.Address = a
	s.UpdatedAt = time.Unix(updated, 0).UTC()
	return &s, nil
}

// SetSponsorBalance refreshes the cached on-chain balance.
func (l *LedgerDB) SetSponsorBalance(addr types.Address, balance uint64) error {
	query := `UPDATE sponsor_state SET balance = ?, updatedAt = ? WHERE address = ?`
	stmt, err := l.stmtCache.Prepare(query)
	if err != nil {
		return err
	}
	_, err = stmt.Exec(balance, time.Now().UTC().Unix(), addr.String())
	return err
}

// ReserveSponsorFunds moves cost into the reserved bucket, but only when the
// post-reservation balance still clears the reserve floor. The guard is in
// the WHERE clause so concurrent reservations cannot both slip through.
func (l *LedgerDB) ReserveSponsorFunds(addr types.Address, cost uint64) error {
	query := `UPDATE sponsor_state
		SET reserved = reserved + ?, updatedAt = ?
		WHERE address = ? AND balance >= reserved + minReserve + ?`
	stmt, err := l.stmtCache.Prepare(query)
	if err != nil {
		return err
	}
	res, err := stmt.Exec(cost, time.Now().UTC().Unix(), addr.String(), cost)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrReserveTooLow
	}
	return nil
}

// ReleaseSponsorFunds undoes a reservation after a failed or expired group.
func (l *LedgerDB) ReleaseSponsorFunds(addr types.Address, cost uint64) error {
	query := `UPDATE sponsor_state
		SET reserved = CASE WHEN reserved >= ? THEN reserved - ? ELSE 0 END,
			updatedAt = ?
		WHERE address = ?`
	stmt, err := l.stmtCache.Prepare(query)
	if err != nil {
		return err
	}
	_, err = stmt.Exec(cost, cost, time.Now().UTC().Unix(), addr.String())
	return err
}

// SettleSponsorFunds converts a reservation into spend once the group
// confirmed: reservation is released and the cached balance drops by cost.
func (l *LedgerDB) SettleSponsorFunds(addr types.Address, cost uint64) error {
	query := `UPDATE sponsor_state
		SET reserved = CASE WHEN reserved >= ? THEN reserved - ? ELSE 0 END,
			balance = CASE WHEN balance >= ? THEN balance - ? ELSE 0 END,
			updatedAt = ?
		WHERE address = ?`
	stmt, err := l.stmtCache.Prepare(query)
	if err != nil {
		return err
	}
	_, err = stmt.Exec(cost, cost, cost, cost, time.Now().UTC().Unix(), addr.String())
	return err
}
