package dto

import (
	"encoding/base64"
	"strconv"
	"strings"
	"time"

	"github.com/andreyxaxa/Reschedule-Engine/internal/entity"
	"github.com/andreyxaxa/Reschedule-Engine/pkg/types/errs"
)

type SoftDelete struct {
	TenantID string
	Kind     entity.TombstoneKind
	RefID    string
	Reason   *string
}

type TombstoneFilter struct {
	TenantID string
	Kind     *entity.TombstoneKind
	Since    *time.Time
	After    *entity.TombstonePosition
	Limit    int
}

type TombstonePage struct {
	Tombstones []*entity.Tombstone
	// NextCursor resumes after the last row; it echoes the request cursor on an empty page.
	NextCursor string
}

func EncodeTombstoneCursor(p entity.TombstonePosition) string {
	raw := strconv.FormatUint(p.TxID, 10) + "." + strconv.FormatInt(p.Seq, 10)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func DecodeTombstoneCursor(cursor string) (*entity.TombstonePosition, error) {
	if cursor == "" {
		return nil, nil
	}

	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return nil, errs.NewValidation("cursor", "malformed")
	}
	tx, seq, ok := strings.Cut(string(raw), ".")
	if !ok {
		return nil, errs.NewValidation("cursor", "malformed")
	}

	var p entity.TombstonePosition
	if p.TxID, err = strconv.ParseUint(tx, 10, 64); err != nil {
		return nil, errs.NewValidation("cursor", "malformed")
	}
	if p.Seq, err = strconv.ParseInt(seq, 10, 64); err != nil {
		return nil, errs.NewValidation("cursor", "malformed")
	}

	return &p, nil
}

type NotificationFilter struct {
	TenantID *string
	Status   *entity.NotificationStatus
	Limit    int
}

type EnqueueNotification struct {
	TenantID   string
	Channel    string
	To         string
	TemplateID string
	Payload    any
}
