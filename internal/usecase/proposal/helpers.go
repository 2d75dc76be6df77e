package proposal

import (
	"context"
	"fmt"

	"github.com/andreyxaxa/Reschedule-Engine/internal/dto"
	"github.com/andreyxaxa/Reschedule-Engine/internal/entity"
	"github.com/andreyxaxa/Reschedule-Engine/internal/usecase/policy"
	"github.com/andreyxaxa/Reschedule-Engine/pkg/types/errs"
)

func validateCreate(in dto.CreateProposal) error {
	switch {
	case in.TenantID == "":
		return errs.NewValidation("tenantId", "required")
	case in.EventID == "":
		return errs.NewValidation("eventId", "required")
	case !in.CreatedBy.Valid():
		return errs.NewValidation("createdBy", fmt.Sprintf("unknown creator %q", in.CreatedBy))
	case len(in.Options) == 0:
		return errs.NewValidation("options", "at least one option is required")
	case in.TokenTTL != nil && *in.TokenTTL <= 0:
		return errs.NewValidation("tokenTtl", "must be positive")
	case in.IdempotencyKey != nil && *in.IdempotencyKey == "":
		return errs.NewValidation("idempotencyKey", "must not be empty")
	}

	for i, o := range in.Options {
		if !o.EndAt.After(o.StartAt) {
			return errs.NewValidation(fmt.Sprintf("options[%d].endAt", i), "must be after startAt")
		}
	}

	return nil
}

func validateDecide(in dto.Decide) error {
	if in.ProposalID == "" {
		return errs.NewValidation("proposalId", "required")
	}
	if in.Actor == "" {
		return errs.NewValidation("actor", "required")
	}

	switch in.Decision {
	case entity.DecisionApproved:
		if in.ChosenOptionIndex == nil {
			return errs.NewValidation("chosenOptionIndex", "required when approving")
		}
		if *in.ChosenOptionIndex < 0 {
			return errs.NewValidation("chosenOptionIndex", "must not be negative")
		}
	case entity.DecisionRejected:
		if in.ChosenOptionIndex != nil {
			return errs.NewValidation("chosenOptionIndex", "not allowed when rejecting")
		}
	case entity.DecisionAlternate:
		if in.AlternateSlot == nil {
			return errs.NewValidation("alternateSlot", "required when suggesting an alternate")
		}
		if !in.AlternateSlot.EndAt.After(in.AlternateSlot.StartAt) {
			return errs.NewValidation("alternateSlot.endAt", "must be after startAt")
		}
		if in.ChosenOptionIndex != nil {
			return errs.NewValidation("chosenOptionIndex", "not allowed with an alternate")
		}
	default:
		return errs.NewValidation("decision", fmt.Sprintf("unknown decision %q", in.Decision))
	}

	return nil
}

// requestApproval queues the approver's request with only what the event's policy lets them see.
func (uc *ProposalUseCase) requestApproval(ctx context.Context, p *entity.Proposal, event *entity.CalendarEvent) error {
	req := dto.ApprovalRequest{
		ProposalID: p.ID,
		EventID:    p.EventRef,
		Approver:   *p.Approver,
		ExpiresAt:  *p.TokenExpiresAt,
	}

	switch policy.ContentSharingFor(event.Policy, false) {
	case entity.ShareFull:
		req.Title = event.Title
		req.Rationale = p.Rationale
		req.Options = p.Options
	case entity.ShareMinimal:
		req.Options = p.Options
	}

	_, err := uc.outbox.Enqueue(ctx, dto.EnqueueNotification{
		TenantID:   p.TenantID,
		Channel:    entity.ChannelEmail,
		To:         *p.Approver,
		TemplateID: entity.TemplateApprovalRequest,
		Payload:    req,
	})
	if err != nil {
		return fmt.Errorf("ProposalUseCase - requestApproval - uc.outbox.Enqueue: %w", err)
	}

	return nil
}

// notifyOwner pushes to the tenant itself; routing to devices happens downstream.
func (uc *ProposalUseCase) notifyOwner(ctx context.Context, p *entity.Proposal, template string, notice dto.ProposalNotice) error {
	_, err := uc.outbox.Enqueue(ctx, dto.EnqueueNotification{
		TenantID:   p.TenantID,
		Channel:    entity.ChannelPush,
		To:         p.TenantID,
		TemplateID: template,
		Payload:    notice,
	})
	if err != nil {
		return fmt.Errorf("ProposalUseCase - notifyOwner - uc.outbox.Enqueue: %w", err)
	}

	return nil
}
