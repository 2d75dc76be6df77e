package entity

import "time"

type LockState string

const (
	LockLocked     LockState = "locked"
	LockFlexible   LockState = "flexible"
	LockNegotiable LockState = "negotiable"
	LockSensitive  LockState = "sensitive"
)

type MovePermission string

const (
	MoveUserOnly         MovePermission = "userOnly"
	MoveOrganizerOnly    MovePermission = "organizerOnly"
	MoveAnyAttendee      MovePermission = "anyAttendee"
	MoveSpecificApprover MovePermission = "specificApprover"
)

type ContentSharing string

const (
	ShareNone    ContentSharing = "none"
	ShareMinimal ContentSharing = "minimal"
	ShareFull    ContentSharing = "full"
)

// TimeWindow is a half-open absolute range [Start, End).
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type Policy struct {
	LockState            LockState      `json:"lockState"`
	MovePermissions      MovePermission `json:"movePermissions"`
	RequiresConfirmation bool           `json:"requiresConfirmation"`
	ContentSharing       ContentSharing `json:"contentSharing"`
	Approver             *string        `json:"approver,omitempty"`
	AllowedWindows       []TimeWindow   `json:"allowedWindows,omitempty"`
	MaxShiftMinutes      *int           `json:"maxShiftMinutes,omitempty"`
	MaxShiftDays         *int           `json:"maxShiftDays,omitempty"`
}
