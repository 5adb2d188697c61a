package state

import (
	"database/sql"
	"strings"
	"time"

	"github.com/caesar4321/confio-go/common"
)

// sqlRecord shadows TransactionRecord with column-typed fields. groupId is
// NULL until the group id is known so the UNIQUE constraint only bites on
// real group ids.
type sqlRecord struct {
	ID           string
	OpKind       string
	Actor        string
	Counterparty string
	Amount       uint64
	AssetID      uint64
	SponsorCost  uint64
	Status       string
	GroupID      sql.NullString
	TxIDs        string
	LastValid    uint64
	Error        string
	CreatedAt    int64
	UpdatedAt    int64
}

func (s *sqlRecord) encode(r *TransactionRecord) *sqlRecord {
	s.ID = r.ID
	s.OpKind = string(r.OpKind)
	s.Actor = r.Actor
	s.Counterparty = r.Counterparty
	s.Amount = r.Amount
	s.AssetID = r.AssetID
	s.SponsorCost = r.SponsorCost
	s.Status = string(r.Status)
	if r.GroupID != "" {
		s.GroupID = sql.NullString{String: r.GroupID, Valid: true}
	}
	s.TxIDs = strings.Join(r.TxIDs, ",")
	s.LastValid = r.LastValid
	s.Error = r.Error
	s.CreatedAt = r.CreatedAt.Unix()
	s.UpdatedAt = r.UpdatedAt.Unix()
	return s
}

func (s *sqlRecord) decode() *TransactionRecord {
	var txIDs []string
	if s.TxIDs != "" {
		txIDs = strings.Split(s.TxIDs, ",")
	}
	var groupID string
	if s.GroupID.Valid {
		groupID = s.GroupID.String
	}

	return &TransactionRecord{
		ID:           s.ID,
		OpKind:       common.OpKind(s.OpKind),
		Actor:        s.Actor,
		Counterparty: s.Counterparty,
		Amount:       s.Amount,
		AssetID:      s.AssetID,
		SponsorCost:  s.SponsorCost,
		Status:       RecordStatus(s.Status),
		GroupID:      groupID,
		TxIDs:        txIDs,
		LastValid:    s.LastValid,
		Error:        s.Error,
		CreatedAt:    time.Unix(s.CreatedAt, 0).UTC(),
		UpdatedAt:    time.Unix(s.UpdatedAt, 0).UTC(),
	}
}
