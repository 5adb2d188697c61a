package state

import (
	"database/sql"
	"strconv"
	"strings"
	"time"

	"github.com/algorand/go-algorand-sdk/v2/types"
)

// InsertAccount persists a newly derived account. The address is immutable
// once written.
func (l *LedgerDB) InsertAccount(a *Account) error {
	query := `INSERT INTO account
		(accountKey, address, optInSet, pepperCipher, pepperVer, prevCipher, graceUntil)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	stmt, err := l.stmtCache.Prepare(query)
	if err != nil {
		return err
	}

	_, err = stmt.Exec(a.AccountKey, a.Address.String(), encodeOptIns(a.OptInSet),
		a.PepperCipher, a.PepperVer, a.PrevCipher, a.GraceUntil.Unix())
	return err
}

func (l *LedgerDB) GetAccount(accountKey string) (*Account, error) {
	query := `SELECT accountKey, address, optInSet, pepperCipher, pepperVer,
		prevCipher, graceUntil FROM account WHERE accountKey = ?`
	stmt, err := l.stmtCache.Prepare(query)
	if err != nil {
		return nil, err
	}
	return scanAccount(stmt.QueryRow(accountKey))
}

// GetAccountByAddress resolves the owner of a managed address. The inbound
// scanner uses it to attribute deposits.
func (l *LedgerDB) GetAccountByAddress(addr types.Address) (*Account, error) {
	query := `SELECT accountKey, address, optInSet, pepperCipher, pepperVer,
		prevCipher, graceUntil FROM account WHERE address = ?`
	stmt, err := l.stmtCache.Prepare(query)
	if err != nil {
		return nil, err
	}
	return scanAccount(stmt.QueryRow(addr.String()))
}

// ListManagedAddresses returns every derived address, for the inbound scan.
func (l *LedgerDB) ListManagedAddresses() ([]types.Address, error) {
	query := `SELECT address FROM account`
	stmt, err := l.stmtCache.Prepare(query)
	if err != nil {
		return nil, err
	}
	rows, err := stmt.Query()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.Address
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		addr, err := types.DecodeAddress(s)
		if err != nil {
			return nil, err
		}
		out = append(out, addr)
	}
	return out, rows.Err()
}

// AddOptIn records that the account's address now holds assetID. The set
// only ever grows; re-adding is a no-op.
func (l *LedgerDB) AddOptIn(accountKey string, assetID uint64) error {
	a, err := l.GetAccount(accountKey)
	if err != nil {
		return err
	}
	if a.OptedIn(assetID) {
		return nil
	}
	a.OptInSet = append(a.OptInSet, assetID)

	query := `UPDATE account SET optInSet = ? WHERE accountKey = ?`
	stmt, err := l.stmtCache.Prepare(query)
	if err != nil {
		return err
	}
	_, err = stmt.Exec(encodeOptIns(a.OptInSet), accountKey)
	return err
}

// UpdatePepper swaps in a rotated pepper: current becomes previous, the new
// ciphertext becomes current, and the grace window is stamped.
func (l *LedgerDB) UpdatePepper(accountKey string, newCipher []byte, newVer int64, graceUntil time.Time) error {
	query := `UPDATE account
		SET prevCipher = pepperCipher, pepperCipher = ?, pepperVer = ?, graceUntil = ?
		WHERE accountKey = ?`
	stmt, err := l.stmtCache.Prepare(query)
	if err != nil {
		return err
	}
	res, err := stmt.Exec(newCipher, newVer, graceUntil.Unix(), accountKey)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func scanAccount(row *sql.Row) (*Account, error) {
	var (
		a          Account
		addrStr    string
		optIns     string
		prevCipher []byte
		graceUnix  int64
	)
	err := row.Scan(&a.AccountKey, &addrStr, &optIns, &a.PepperCipher,
		&a.PepperVer, &prevCipher, &graceUnix)
	if err == sql.ErrNoRows {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}

	addr, err := types.DecodeAddress(addrStr)
	if err != nil {
		return nil, err
	}
	a.Address = addr
	a.OptInSet = decodeOptIns(optIns)
	a.PrevCipher = prevCipher
	a.GraceUntil = time.Unix(graceUnix, 0).UTC()
	return &a, nil
}

func encodeOptIns(ids []uint64) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, strconv.FormatUint(id, 10))
	}
	return strings.Join(parts, ",")
}

func decodeOptIns(s string) []uint64 {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]uint64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, id)
	}
	return out
}
