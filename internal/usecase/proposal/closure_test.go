package proposal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/andreyxaxa/Reschedule-Engine/internal/dto"
	"github.com/andreyxaxa/Reschedule-Engine/internal/entity"
	"github.com/andreyxaxa/Reschedule-Engine/pkg/types/errs"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

const (
	opApprove = iota
	opReject
	opAlternate
	opApply
	opExpire
	opCount
)

// TestStatusClosure drives one proposal through random operations and checks
// every observed status change is an edge of the state machine.
func TestStatusClosure(t *testing.T) {
	v := newValidator(t)

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 150
	properties := gopter.NewProperties(parameters)

	properties.Property("observed statuses follow pending -> approved|rejected|expired -> applied", prop.ForAll(
		func(ops []int, option int) bool {
			ctx := context.Background()
			f := newFixture(v)
			f.calendarEvent(t, "e_1", nil)

			ttl := 3 * time.Hour
			created, err := f.uc.Create(ctx, dto.CreateProposal{
				TenantID:                 "t1",
				EventID:                  "e_1",
				CreatedBy:                entity.CreatedByAssistant,
				Options:                  twoOptions(),
				RequiresExternalApprover: true,
				Approver:                 strPtr("boss@example.com"),
				TokenTTL:                 &ttl,
			})
			if err != nil {
				return false
			}
			id := created.Proposal.ID

			observed := []entity.ProposalStatus{entity.ProposalStatusPending}
			for _, op := range ops {
				err := f.run(ctx, op, id, option, created.ApprovalToken)
				if err != nil && !expected(err) {
					t.Logf("op %d: unexpected error %v", op, err)
					return false
				}

				p, err := f.store.Proposals().GetByID(ctx, "t1", id)
				if err != nil {
					return false
				}
				if last := observed[len(observed)-1]; p.Status != last {
					if !last.CanTransitionTo(p.Status) {
						t.Logf("illegal transition %s -> %s", last, p.Status)
						return false
					}
					observed = append(observed, p.Status)
				}
			}

			return len(observed) <= 3
		},
		gen.SliceOfN(12, gen.IntRange(0, opCount-1)),
		gen.IntRange(0, 1),
	))

	properties.TestingRun(t)
}

func (f *fixture) run(ctx context.Context, op int, id string, option int, tok *string) error {
	decide := dto.Decide{ProposalID: id, Actor: "boss@example.com", Token: tok}

	switch op {
	case opApprove:
		decide.Decision = entity.DecisionApproved
		decide.ChosenOptionIndex = &option
		_, err := f.uc.Decide(ctx, decide)
		return err
	case opReject:
		decide.Decision = entity.DecisionRejected
		_, err := f.uc.Decide(ctx, decide)
		return err
	case opAlternate:
		decide.Decision = entity.DecisionAlternate
		decide.AlternateSlot = &entity.TimeSlot{StartAt: at(400), EndAt: at(460)}
		_, err := f.uc.Decide(ctx, decide)
		return err
	case opApply:
		_, err := f.uc.Apply(ctx, "t1", id)
		return err
	default:
		f.now = f.now.Add(time.Hour)
		_, err := f.uc.ExpireStale(ctx)
		return err
	}
}

func expected(err error) bool {
	return errors.Is(err, errs.ErrInvalidTransition) || errors.Is(err, errs.ErrTokenExpired)
}
