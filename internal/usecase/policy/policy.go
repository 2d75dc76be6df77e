// Package policy decides what an unattended reschedule may do to an event.
// All functions are pure; a nil policy never permits an automatic move.
package policy

import (
	"fmt"

	"github.com/andreyxaxa/Reschedule-Engine/internal/entity"
	"github.com/andreyxaxa/Reschedule-Engine/pkg/types/errs"
)

// Validate is CheckShape plus the approver a specificApprover policy needs.
// It runs when a proposal is created.
func Validate(p *entity.Policy) error {
	if err := CheckShape(p); err != nil {
		return err
	}

	if p != nil && p.MovePermissions == entity.MoveSpecificApprover && (p.Approver == nil || *p.Approver == "") {
		return errs.NewValidation("policy.approver", "required when movePermissions is specificApprover")
	}

	return nil
}

// CheckShape rejects unknown enum values and malformed windows or limits.
// A missing approver is accepted so an event can be stored before one is known.
func CheckShape(p *entity.Policy) error {
	if p == nil {
		return nil
	}

	switch p.LockState {
	case entity.LockLocked, entity.LockFlexible, entity.LockNegotiable, entity.LockSensitive:
	default:
		return errs.NewValidation("policy.lockState", fmt.Sprintf("unknown lock state %q", p.LockState))
	}

	switch p.MovePermissions {
	case "", entity.MoveUserOnly, entity.MoveOrganizerOnly, entity.MoveAnyAttendee, entity.MoveSpecificApprover:
	default:
		return errs.NewValidation("policy.movePermissions", fmt.Sprintf("unknown move permission %q", p.MovePermissions))
	}

	switch p.ContentSharing {
	case "", entity.ShareNone, entity.ShareMinimal, entity.ShareFull:
	default:
		return errs.NewValidation("policy.contentSharing", fmt.Sprintf("unknown content sharing %q", p.ContentSharing))
	}

	for i, w := range p.AllowedWindows {
		if !w.End.After(w.Start) {
			return errs.NewValidation(fmt.Sprintf("policy.allowedWindows[%d]", i), "end must be after start")
		}
	}

	if p.MaxShiftMinutes != nil && *p.MaxShiftMinutes < 0 {
		return errs.NewValidation("policy.maxShiftMinutes", "must not be negative")
	}
	if p.MaxShiftDays != nil && *p.MaxShiftDays < 0 {
		return errs.NewValidation("policy.maxShiftDays", "must not be negative")
	}

	return nil
}

// MayAutoApply reports whether moving original to proposed needs no human decision.
func MayAutoApply(p *entity.Policy, original, proposed entity.TimeSlot) bool {
	if p == nil || p.LockState != entity.LockFlexible {
		return false
	}
	if p.RequiresConfirmation || p.MovePermissions == entity.MoveSpecificApprover {
		return false
	}
	if !proposed.EndAt.After(proposed.StartAt) {
		return false
	}

	if len(p.AllowedWindows) > 0 && !insideAnyWindow(p.AllowedWindows, proposed) {
		return false
	}

	shift := proposed.StartAt.Sub(original.StartAt)
	if shift < 0 {
		shift = -shift
	}
	if p.MaxShiftMinutes != nil && shift > minutes(*p.MaxShiftMinutes) {
		return false
	}
	if p.MaxShiftDays != nil && shift > days(*p.MaxShiftDays) {
		return false
	}

	return true
}

// RequiresApprover returns the identity that must approve any move, if the policy names one.
func RequiresApprover(p *entity.Policy) *string {
	if p == nil || p.MovePermissions != entity.MoveSpecificApprover || p.Approver == nil || *p.Approver == "" {
		return nil
	}

	approver := *p.Approver
	return &approver
}

// ContentSharingFor is how much of the event a viewer may see. Owners always see everything;
// sensitive events are capped at minimal for everyone else.
func ContentSharingFor(p *entity.Policy, viewerIsOwner bool) entity.ContentSharing {
	if viewerIsOwner || p == nil {
		return entity.ShareFull
	}

	sharing := p.ContentSharing
	if sharing == "" {
		sharing = entity.ShareFull
	}
	if p.LockState == entity.LockSensitive && sharing == entity.ShareFull {
		sharing = entity.ShareMinimal
	}

	return sharing
}

func insideAnyWindow(windows []entity.TimeWindow, slot entity.TimeSlot) bool {
	for _, w := range windows {
		if !slot.StartAt.Before(w.Start) && !slot.EndAt.After(w.End) {
			return true
		}
	}
	return false
}
