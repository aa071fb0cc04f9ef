package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"divvy/internal/core"
	"divvy/internal/storage"
)

// LedgerService orchestrates the organization-wide ledger: entries, groups,
// transfers, and the aggregated summary.
type LedgerService struct {
	store storage.Store
}

func NewLedgerService(store storage.Store) *LedgerService {
	return &LedgerService{store: store}
}

func (s *LedgerService) CreateGroup(ctx context.Context, name string) (*core.Group, error) {
	group := &core.Group{
		ID:        uuid.NewString(),
		Name:      name,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
	if err := group.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.CreateGroup(ctx, group); err != nil {
		return nil, fmt.Errorf("create group: %w", err)
	}
	return group, nil
}

func (s *LedgerService) SetGroupActive(ctx context.Context, id string, active bool) error {
	return s.store.SetGroupActive(ctx, id, active)
}

func (s *LedgerService) ListGroups(ctx context.Context) ([]core.Group, error) {
	return s.store.ListGroups(ctx)
}

// EntryInput is a ledger entry creation request. An empty GroupID books the
// entry against the unallocated pool.
type EntryInput struct {
	Type        core.EntryType
	Amount      core.Money
	GroupID     string
	Description string
	OccurredAt  time.Time
}

func (s *LedgerService) CreateEntry(ctx context.Context, in EntryInput) (*core.LedgerEntry, error) {
	if in.GroupID != "" {
		if err := s.requireGroup(ctx, in.GroupID); err != nil {
			return nil, err
		}
	}
	occurredAt := in.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	entry := &core.LedgerEntry{
		ID:          uuid.NewString(),
		Type:        in.Type,
		Amount:      in.Amount,
		GroupID:     in.GroupID,
		Description: in.Description,
		OccurredAt:  occurredAt,
		CreatedAt:   time.Now().UTC(),
	}
	if err := entry.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.CreateEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("create entry: %w", err)
	}
	return entry, nil
}

// ReassignEntry moves an entry between groups, or into the pool when groupID
// is empty.
func (s *LedgerService) ReassignEntry(ctx context.Context, id, groupID string) error {
	if groupID != "" {
		if err := s.requireGroup(ctx, groupID); err != nil {
			return err
		}
	}
	return s.store.ReassignEntry(ctx, id, groupID)
}

func (s *LedgerService) DeleteEntry(ctx context.Context, id string) error {
	return s.store.DeleteEntry(ctx, id)
}

func (s *LedgerService) ListEntries(ctx context.Context) ([]core.LedgerEntry, error) {
	return s.store.ListEntries(ctx)
}

func (s *LedgerService) CreateTransfer(ctx context.Context, amount core.Money, fromGroupID, toGroupID, note string) (*core.Transfer, error) {
	transfer := &core.Transfer{
		ID:          uuid.NewString(),
		Amount:      amount,
		FromGroupID: fromGroupID,
		ToGroupID:   toGroupID,
		Note:        note,
		CreatedAt:   time.Now().UTC(),
	}
	if err := transfer.Validate(); err != nil {
		return nil, err
	}
	for _, groupID := range []string{fromGroupID, toGroupID} {
		if groupID == "" {
			continue
		}
		if err := s.requireGroup(ctx, groupID); err != nil {
			return nil, err
		}
	}
	if err := s.store.CreateTransfer(ctx, transfer); err != nil {
		return nil, fmt.Errorf("create transfer: %w", err)
	}
	return transfer, nil
}

func (s *LedgerService) ListTransfers(ctx context.Context) ([]core.Transfer, error) {
	return s.store.ListTransfers(ctx)
}

// Summary aggregates all entries, groups, and transfers into per-group totals
// plus the unallocated pool. It is always derived, never stored.
func (s *LedgerService) Summary(ctx context.Context) (core.LedgerReport, error) {
	entries, err := s.store.ListEntries(ctx)
	if err != nil {
		return core.LedgerReport{}, err
	}
	groups, err := s.store.ListGroups(ctx)
	if err != nil {
		return core.LedgerReport{}, err
	}
	transfers, err := s.store.ListTransfers(ctx)
	if err != nil {
		return core.LedgerReport{}, err
	}
	return core.AggregateLedger(entries, groups, transfers), nil
}

func (s *LedgerService) requireGroup(ctx context.Context, id string) error {
	groups, err := s.store.ListGroups(ctx)
	if err != nil {
		return err
	}
	for _, g := range groups {
		if g.ID == id {
			return nil
		}
	}
	return storage.ErrNotFound
}
