package inmemory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/andreyxaxa/Reschedule-Engine/internal/entity"
	"github.com/andreyxaxa/Reschedule-Engine/pkg/types/errs"
)

type ProposalRepo struct {
	s *Store
}

func (r *ProposalRepo) Create(_ context.Context, p *entity.Proposal) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if r.find(p.TenantID, p.ID) != nil {
		return fmt.Errorf("ProposalRepo - Create: duplicate id %s", p.ID)
	}

	r.s.proposals = append(r.s.proposals, copyProposal(p))

	return nil
}

func (r *ProposalRepo) GetByID(_ context.Context, tenantID, id string) (*entity.Proposal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p := r.find(tenantID, id)
	if p == nil || p.DeletedAt != nil {
		return nil, fmt.Errorf("ProposalRepo - GetByID: %w", errs.ErrRecordNotFound)
	}

	return copyProposal(p), nil
}

func (r *ProposalRepo) GetByTokenHash(_ context.Context, tokenHash string) (*entity.Proposal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, p := range r.s.proposals {
		if p.DeletedAt == nil && p.ApprovalTokenHash != nil && *p.ApprovalTokenHash == tokenHash {
			return copyProposal(p), nil
		}
	}

	return nil, fmt.Errorf("ProposalRepo - GetByTokenHash: %w", errs.ErrRecordNotFound)
}

func (r *ProposalRepo) Transition(
	_ context.Context,
	tenantID, id string,
	from, to entity.ProposalStatus,
	chosen *int,
	now time.Time,
) error {
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("ProposalRepo - Transition - %s -> %s: %w", from, to, errs.ErrInvalidTransition)
	}
	if to == entity.ProposalStatusApproved && chosen == nil {
		return fmt.Errorf("ProposalRepo - Transition: %w", errs.NewValidation("chosenOptionIndex", "required"))
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p := r.find(tenantID, id)
	if p == nil || p.DeletedAt != nil {
		return fmt.Errorf("ProposalRepo - Transition: %w", errs.ErrRecordNotFound)
	}
	if p.Status != from {
		return fmt.Errorf("ProposalRepo - Transition - status %s: %w", p.Status, errs.ErrInvalidTransition)
	}

	p.Status = to
	p.UpdatedAt = now
	if to == entity.ProposalStatusApproved {
		c := *chosen
		p.ChosenOptionIndex = &c
	}

	return nil
}

func (r *ProposalRepo) ListExpirable(_ context.Context, now time.Time, limit int) ([]*entity.Proposal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]*entity.Proposal, 0)
	for _, p := range r.s.proposals {
		if p.DeletedAt == nil && p.Status == entity.ProposalStatusPending && p.TokenExpired(now) {
			out = append(out, copyProposal(p))
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].TokenExpiresAt.Before(*out[j].TokenExpiresAt) })

	if n := clampLimit(limit); len(out) > n {
		out = out[:n]
	}

	return out, nil
}

func (r *ProposalRepo) DeletionState(_ context.Context, tenantID, id string) (*time.Time, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p := r.find(tenantID, id)
	if p == nil {
		return nil, fmt.Errorf("ProposalRepo - DeletionState: %w", errs.ErrRecordNotFound)
	}

	return p.DeletedAt, nil
}

func (r *ProposalRepo) MarkDeleted(_ context.Context, tenantID, id string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p := r.find(tenantID, id)
	if p == nil {
		return fmt.Errorf("ProposalRepo - MarkDeleted: %w", errs.ErrRecordNotFound)
	}
	if p.DeletedAt == nil {
		deletedAt := at
		p.DeletedAt = &deletedAt
		p.UpdatedAt = at
	}

	return nil
}

func (r *ProposalRepo) find(tenantID, id string) *entity.Proposal {
	for _, p := range r.s.proposals {
		if p.TenantID == tenantID && p.ID == id {
			return p
		}
	}
	return nil
}

func copyProposal(p *entity.Proposal) *entity.Proposal {
	cp := *p
	cp.Options = slices.Clone(p.Options)
	return &cp
}

type ApprovalRepo struct {
	s *Store
}

func (r *ApprovalRepo) Create(_ context.Context, a *entity.Approval) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	cp := *a
	r.s.approvals = append(r.s.approvals, &cp)

	return nil
}

func (r *ApprovalRepo) ListByProposal(_ context.Context, proposalID string) ([]*entity.Approval, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]*entity.Approval, 0)
	for _, a := range r.s.approvals {
		if a.ProposalRef == proposalID {
			cp := *a
			out = append(out, &cp)
		}
	}

	return out, nil
}
