// Package inmemory implements every repository contract over process memory.
// A single mutex serializes access, so each call is one atomic compare-and-swap.
// WithinTransaction snapshots the rows and puts them back when f fails.
package inmemory

import (
	"context"
	"sync"

	"github.com/andreyxaxa/Reschedule-Engine/internal/entity"
)

const (
	_defaultListLimit = 100
	_maxListLimit     = 1000
)

type tenantKey struct {
	tenantID string
	id       string
}

type tombstoneKey struct {
	tenantID string
	kind     entity.TombstoneKind
	refID    string
}

type Store struct {
	mu   sync.Mutex
	txMu sync.Mutex

	events      []*entity.Event
	idempotency map[tenantKey]*entity.IdempotencyRecord
	calendar    []*entity.CalendarEvent
	tasks       map[tenantKey]*entity.Task
	accounts    map[tenantKey]*entity.Account
	proposals   []*entity.Proposal
	approvals   []*entity.Approval
	tombstones  []*entity.Tombstone
	tombIndex   map[tombstoneKey]*entity.Tombstone
	tombSeq     int64
	outbox      []*entity.OutboxNotification
}

func New() *Store {
	return &Store{
		idempotency: make(map[tenantKey]*entity.IdempotencyRecord),
		tasks:       make(map[tenantKey]*entity.Task),
		accounts:    make(map[tenantKey]*entity.Account),
		tombIndex:   make(map[tombstoneKey]*entity.Tombstone),
	}
}

type txKey struct{}

// WithinTransaction restores the whole store if f fails. Transactions run one
// at a time and a nested call joins the outer one; a rollback also discards
// writes made meanwhile outside any transaction.
func (s *Store) WithinTransaction(ctx context.Context, f func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(bool); ok {
		return f(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snap := s.snapshot()
	s.mu.Unlock()

	err := f(context.WithValue(ctx, txKey{}, true))
	if err != nil {
		s.mu.Lock()
		s.restore(snap)
		s.mu.Unlock()

		return err
	}

	return nil
}

type snapshot struct {
	events      []*entity.Event
	idempotency map[tenantKey]*entity.IdempotencyRecord
	calendar    []*entity.CalendarEvent
	tasks       map[tenantKey]*entity.Task
	accounts    map[tenantKey]*entity.Account
	proposals   []*entity.Proposal
	approvals   []*entity.Approval
	tombstones  []*entity.Tombstone
	outbox      []*entity.OutboxNotification
}

// snapshot copies every row; repos update rows in place. Must hold s.mu.
func (s *Store) snapshot() snapshot {
	return snapshot{
		events:      cloneRows(s.events),
		idempotency: cloneMap(s.idempotency),
		calendar:    cloneRows(s.calendar),
		tasks:       cloneMap(s.tasks),
		accounts:    cloneMap(s.accounts),
		proposals:   cloneRows(s.proposals),
		approvals:   cloneRows(s.approvals),
		tombstones:  cloneRows(s.tombstones),
		outbox:      cloneRows(s.outbox),
	}
}

// Must hold s.mu.
func (s *Store) restore(snap snapshot) {
	s.events = snap.events
	s.idempotency = snap.idempotency
	s.calendar = snap.calendar
	s.tasks = snap.tasks
	s.accounts = snap.accounts
	s.proposals = snap.proposals
	s.approvals = snap.approvals
	s.outbox = snap.outbox

	s.tombstones = snap.tombstones
	s.tombIndex = make(map[tombstoneKey]*entity.Tombstone, len(snap.tombstones))
	for _, t := range snap.tombstones {
		s.tombIndex[tombstoneKey{t.TenantID, t.Kind, t.RefID}] = t
	}
}

func cloneRows[T any](rows []*T) []*T {
	out := make([]*T, len(rows))
	for i, r := range rows {
		cp := *r
		out[i] = &cp
	}
	return out
}

func cloneMap[T any](m map[tenantKey]*T) map[tenantKey]*T {
	out := make(map[tenantKey]*T, len(m))
	for k, v := range m {
		cp := *v
		out[k] = &cp
	}
	return out
}

func (s *Store) Events() *EventRepo                 { return &EventRepo{s} }
func (s *Store) Idempotency() *IdempotencyRepo      { return &IdempotencyRepo{s} }
func (s *Store) CalendarEvents() *CalendarEventRepo { return &CalendarEventRepo{s} }
func (s *Store) Tasks() *TaskRepo                   { return &TaskRepo{s} }
func (s *Store) Accounts() *AccountRepo             { return &AccountRepo{s} }
func (s *Store) Proposals() *ProposalRepo           { return &ProposalRepo{s} }
func (s *Store) Approvals() *ApprovalRepo           { return &ApprovalRepo{s} }
func (s *Store) Tombstones() *TombstoneRepo         { return &TombstoneRepo{s} }
func (s *Store) Notifications() *NotificationRepo   { return &NotificationRepo{s} }

func clampLimit(limit int) int {
	if limit <= 0 {
		return _defaultListLimit
	}
	if limit > _maxListLimit {
		return _maxListLimit
	}
	return limit
}
