package entity

import "time"

// CalendarEvent is the denormalized read-model row, unique per (AccountRef, ProviderEventID).
type CalendarEvent struct {
	ID              string     `json:"id"`
	TenantID        string     `json:"tenant_id"`
	AccountRef      string     `json:"account_ref"`
	ProviderEventID string     `json:"provider_event_id"`
	Title           string     `json:"title"`
	Location        *string    `json:"location,omitempty"`
	StartAt         time.Time  `json:"start_at"`
	EndAt           time.Time  `json:"end_at"`
	Timezone        string     `json:"timezone"`
	Attendees       []string   `json:"attendees"`
	Organizer       string     `json:"organizer"`
	Visibility      string     `json:"visibility"`
	Policy          *Policy    `json:"policy,omitempty"`
	UpdatedAt       time.Time  `json:"updated_at"`
	DeletedAt       *time.Time `json:"deleted_at,omitempty"`
}

func (e *CalendarEvent) Slot() TimeSlot {
	return TimeSlot{StartAt: e.StartAt, EndAt: e.EndAt}
}
