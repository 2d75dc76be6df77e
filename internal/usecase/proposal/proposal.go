package proposal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/andreyxaxa/Reschedule-Engine/internal/dto"
	"github.com/andreyxaxa/Reschedule-Engine/internal/entity"
	"github.com/andreyxaxa/Reschedule-Engine/internal/infrastructure"
	"github.com/andreyxaxa/Reschedule-Engine/internal/repo"
	"github.com/andreyxaxa/Reschedule-Engine/internal/usecase"
	"github.com/andreyxaxa/Reschedule-Engine/internal/usecase/policy"
	"github.com/andreyxaxa/Reschedule-Engine/pkg/logger"
	"github.com/andreyxaxa/Reschedule-Engine/pkg/types/errs"
	"github.com/google/uuid"
)

const (
	// ActorPolicy signs the approval recorded for an auto-applied proposal.
	ActorPolicy = "system:policy"

	DefaultTokenTTL = 24 * time.Hour

	_ledgerPrefix = "proposal:"

	DefaultExpireBatch = 100
)

type ProposalUseCase struct {
	proposals  repo.ProposalRepo
	approvals  repo.ApprovalRepo
	calendar   repo.CalendarEventRepo
	events     usecase.EventLogUseCase
	outbox     usecase.OutboxUseCase
	ledger     usecase.LedgerUseCase
	tokens     infrastructure.ApprovalTokens
	transactor repo.Transactor
	tokenTTL   time.Duration

	// expireBatch caps the proposals one ExpireStale call closes.
	expireBatch int

	logger logger.Interface
	now    func() time.Time
}

func New(
	proposals repo.ProposalRepo,
	approvals repo.ApprovalRepo,
	calendar repo.CalendarEventRepo,
	events usecase.EventLogUseCase,
	outbox usecase.OutboxUseCase,
	ledger usecase.LedgerUseCase,
	tokens infrastructure.ApprovalTokens,
	transactor repo.Transactor,
	tokenTTL time.Duration,
	expireBatch int,
	l logger.Interface,
) *ProposalUseCase {
	if tokenTTL <= 0 {
		tokenTTL = DefaultTokenTTL
	}
	if expireBatch <= 0 {
		expireBatch = DefaultExpireBatch
	}

	return &ProposalUseCase{
		proposals:  proposals,
		approvals:  approvals,
		calendar:   calendar,
		events:     events,
		outbox:     outbox,
		ledger:     ledger,
		tokens:     tokens,
		transactor: transactor,
		tokenTTL:   tokenTTL,

		expireBatch: expireBatch,

		logger: l,
		now:    time.Now,
	}
}

func (uc *ProposalUseCase) Create(ctx context.Context, in dto.CreateProposal) (*dto.CreatedProposal, error) {
	if err := validateCreate(in); err != nil {
		return nil, err
	}

	// 1. повтор по ключу
	var ledgerKey string
	if in.IdempotencyKey != nil {
		ledgerKey = _ledgerPrefix + *in.IdempotencyKey

		cached, hit, err := uc.ledger.Check(ctx, in.TenantID, ledgerKey)
		if err != nil {
			return nil, fmt.Errorf("ProposalUseCase - Create - uc.ledger.Check: %w", err)
		}
		if hit {
			var out dto.CreatedProposal
			if err := json.Unmarshal(cached, &out); err != nil {
				return nil, fmt.Errorf("ProposalUseCase - Create - json.Unmarshal: %w", err)
			}
			return &out, nil
		}
	}

	// 2. событие должно принадлежать тенанту
	event, err := uc.calendar.GetByID(ctx, in.TenantID, in.EventID)
	if err != nil {
		if errors.Is(err, errs.ErrRecordNotFound) {
			return nil, errs.ErrNotFoundOrAccessDenied
		}
		return nil, fmt.Errorf("ProposalUseCase - Create - uc.calendar.GetByID: %w", err)
	}

	// 3. политика события
	if err := policy.Validate(event.Policy); err != nil {
		return nil, err
	}

	requiresExternal := in.RequiresExternalApprover
	approver := in.Approver
	if required := policy.RequiresApprover(event.Policy); required != nil {
		requiresExternal = true
		approver = required
	}
	if requiresExternal && (approver == nil || *approver == "") {
		return nil, errs.NewValidation("approver", "required when an external approver decides")
	}

	now := uc.now()
	p := &entity.Proposal{
		ID:                       uuid.NewString(),
		TenantID:                 in.TenantID,
		EventRef:                 event.ID,
		CreatedBy:                in.CreatedBy,
		Status:                   entity.ProposalStatusPending,
		Rationale:                in.Rationale,
		Options:                  in.Options,
		RequiresExternalApprover: requiresExternal,
		Approver:                 approver,
		CreatedAt:                now,
		UpdatedAt:                now,
	}

	out := &dto.CreatedProposal{Proposal: p}

	if requiresExternal {
		ttl := uc.tokenTTL
		if in.TokenTTL != nil {
			ttl = *in.TokenTTL
		}
		expiresAt := now.Add(ttl).Truncate(time.Second)

		raw, err := uc.tokens.Issue(p.ID, expiresAt)
		if err != nil {
			return nil, fmt.Errorf("ProposalUseCase - Create - uc.tokens.Issue: %w", err)
		}
		hash := uc.tokens.Hash(raw)

		p.ApprovalTokenHash = &hash
		p.TokenExpiresAt = &expiresAt
		out.ApprovalToken = &raw
	}

	out.AutoApplicable = !requiresExternal && policy.MayAutoApply(event.Policy, event.Slot(), in.Options[0].Slot())

	// 4. в единой транзакции
	err = uc.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		// 4.1 предложение
		if err := uc.proposals.Create(ctx, p); err != nil {
			return fmt.Errorf("ProposalUseCase - Create - uc.proposals.Create: %w", err)
		}

		// 4.2 событие proposal.created
		_, _, err := uc.events.Append(ctx, dto.AppendEvent{
			TenantID: p.TenantID,
			Type:     entity.ProposalCreated,
			Payload: &entity.ProposalCreatedPayload{
				ProposalID:               p.ID,
				EventID:                  p.EventRef,
				CreatedBy:                p.CreatedBy,
				OptionCount:              len(p.Options),
				RequiresExternalApprover: p.RequiresExternalApprover,
			},
		})
		if err != nil {
			return fmt.Errorf("ProposalUseCase - Create - uc.events.Append: %w", err)
		}

		// 4.3 запрос внешнему согласующему
		if requiresExternal {
			if err := uc.requestApproval(ctx, p, event); err != nil {
				return fmt.Errorf("ProposalUseCase - Create - uc.requestApproval: %w", err)
			}
		}

		// 4.4 автоприменение
		if in.AutoApply && out.AutoApplicable {
			if err := uc.autoApply(ctx, p); err != nil {
				return fmt.Errorf("ProposalUseCase - Create - uc.autoApply: %w", err)
			}
			out.AutoApplied = true
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	// 5. сырой токен в ledger не попадает
	if ledgerKey != "" {
		cached := *out
		cached.ApprovalToken = nil

		body, err := json.Marshal(cached)
		if err != nil {
			return nil, fmt.Errorf("ProposalUseCase - Create - json.Marshal: %w", err)
		}
		if err := uc.ledger.Commit(ctx, in.TenantID, ledgerKey, body); err != nil {
			return nil, fmt.Errorf("ProposalUseCase - Create - uc.ledger.Commit: %w", err)
		}
	}

	return out, nil
}

// autoApply records the policy's own approval of option 0 and applies it.
func (uc *ProposalUseCase) autoApply(ctx context.Context, p *entity.Proposal) error {
	first := 0

	if err := uc.recordDecision(ctx, p, decision{
		actor:    ActorPolicy,
		decision: entity.DecisionApproved,
		chosen:   &first,
	}); err != nil {
		return err
	}

	return uc.apply(ctx, p)
}

func (uc *ProposalUseCase) Get(ctx context.Context, tenantID, id string) (*dto.ProposalView, error) {
	p, err := uc.load(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	approvals, err := uc.approvals.ListByProposal(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("ProposalUseCase - Get - uc.approvals.ListByProposal: %w", err)
	}

	return &dto.ProposalView{Proposal: p, Approvals: approvals}, nil
}

func (uc *ProposalUseCase) load(ctx context.Context, tenantID, id string) (*entity.Proposal, error) {
	p, err := uc.proposals.GetByID(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, errs.ErrRecordNotFound) {
			return nil, errs.ErrNotFoundOrAccessDenied
		}
		return nil, fmt.Errorf("ProposalUseCase - load - uc.proposals.GetByID: %w", err)
	}

	return p, nil
}
