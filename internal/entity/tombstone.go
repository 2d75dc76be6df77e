package entity

import "time"

type TombstoneKind string

const (
	KindEvent    TombstoneKind = "event"
	KindTask     TombstoneKind = "task"
	KindProposal TombstoneKind = "proposal"
	KindAccount  TombstoneKind = "account"
)

func (k TombstoneKind) Valid() bool {
	switch k {
	case KindEvent, KindTask, KindProposal, KindAccount:
		return true
	}
	return false
}

// Tombstone is written once per deletion and never mutated.
type Tombstone struct {
	ID        string        `json:"id"`
	TenantID  string        `json:"tenant_id"`
	Kind      TombstoneKind `json:"kind"`
	RefID     string        `json:"ref_id"`
	Reason    *string       `json:"reason,omitempty"`
	CreatedAt time.Time     `json:"created_at"`

	Position TombstonePosition `json:"-"`
}

// TombstonePosition orders the sync feed. TxID is the writing transaction,
// zero for stores without one; Seq is assigned on insert.
type TombstonePosition struct {
	TxID uint64
	Seq  int64
}

func (p TombstonePosition) After(o TombstonePosition) bool {
	if p.TxID != o.TxID {
		return p.TxID > o.TxID
	}
	return p.Seq > o.Seq
}
