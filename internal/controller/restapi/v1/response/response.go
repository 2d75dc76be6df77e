package response

import (
	"encoding/json"

	"github.com/andreyxaxa/Reschedule-Engine/internal/entity"
)

type Error struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

type Ingest struct {
	Results []json.RawMessage `json:"results"`
}

type Events struct {
	Events []*entity.Event `json:"events"`
}

// Claimed is the answer to a single-event claim; losing the race is not an error.
type Claimed struct {
	Claimed bool          `json:"claimed"`
	Event   *entity.Event `json:"event,omitempty"`
}

type Notifications struct {
	Notifications []*entity.OutboxNotification `json:"notifications"`
}

type Tombstones struct {
	Tombstones []*entity.Tombstone `json:"tombstones"`
	NextCursor string              `json:"nextCursor,omitempty"`
}

type DeleteRecord struct {
	Tombstone *entity.Tombstone `json:"tombstone"`
	Event     *entity.Event     `json:"event,omitempty"`
}

type NotificationStatus struct {
	ID     string                    `json:"id"`
	Status entity.NotificationStatus `json:"status"`
}

type Count struct {
	Count int64 `json:"count"`
}

// Requeued counts leased items returned to pending per queue.
type Requeued struct {
	Events        int64 `json:"events"`
	Notifications int64 `json:"notifications"`
}
