// Package services orchestrates the accounting core against storage and
// messaging. Handlers stay thin; every business rule lives here or in core.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"divvy/internal/core"
	"divvy/internal/storage"
)

// TripService orchestrates trips, members, expenses, and settlements.
type TripService struct {
	store          storage.Store
	toleranceCents int64
}

func NewTripService(store storage.Store, toleranceCents int64) *TripService {
	return &TripService{
		store:          store,
		toleranceCents: toleranceCents,
	}
}

func (s *TripService) CreateTrip(ctx context.Context, name, currency string) (*core.Trip, error) {
	if currency == "" {
		currency = "EUR"
	}
	trip := &core.Trip{
		ID:        uuid.NewString(),
		Name:      name,
		Currency:  currency,
		CreatedAt: time.Now().UTC(),
	}
	if err := trip.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.CreateTrip(ctx, trip); err != nil {
		return nil, fmt.Errorf("create trip: %w", err)
	}
	return trip, nil
}

func (s *TripService) GetTrip(ctx context.Context, id string) (*core.Trip, error) {
	return s.store.GetTrip(ctx, id)
}

func (s *TripService) AddMember(ctx context.Context, tripID, displayName string) (*core.Member, error) {
	if _, err := s.store.GetTrip(ctx, tripID); err != nil {
		return nil, err
	}
	member := &core.Member{
		ID:          uuid.NewString(),
		TripID:      tripID,
		DisplayName: displayName,
	}
	if err := member.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.AddMember(ctx, member); err != nil {
		return nil, fmt.Errorf("add member: %w", err)
	}
	return member, nil
}

func (s *TripService) ListMembers(ctx context.Context, tripID string) ([]core.Member, error) {
	if _, err := s.store.GetTrip(ctx, tripID); err != nil {
		return nil, err
	}
	return s.store.ListMembers(ctx, tripID)
}

// ExpenseInput is the expense creation request. When Allocations is empty the
// total is split evenly over SharedWith, remainder cents going to the payer
// when the payer participates. SplitExtras folds tax+tip evenly into custom
// allocation previews; it is opt-in, not inferred from the amounts.
type ExpenseInput struct {
	Description string
	Total       core.Money
	Currency    string
	Tax         core.Money
	Tip         core.Money
	SplitExtras bool
	PaidBy      string
	SharedWith  []string
	Allocations []core.Allocation
	ReceiptID   string
}

func (s *TripService) CreateExpense(ctx context.Context, tripID string, in ExpenseInput) (*core.Expense, error) {
	trip, err := s.store.GetTrip(ctx, tripID)
	if err != nil {
		return nil, err
	}
	memberIDs, err := s.memberIDSet(ctx, tripID)
	if err != nil {
		return nil, err
	}

	currency := in.Currency
	if currency == "" {
		currency = trip.Currency
	}

	allocations := in.Allocations
	if len(allocations) == 0 {
		for _, share := range core.EvenSplit(in.Total, in.SharedWith, in.PaidBy) {
			allocations = append(allocations, core.Allocation{MemberID: share.MemberID, Amount: share.Amount})
		}
	}

	expense := &core.Expense{
		ID:          uuid.NewString(),
		TripID:      tripID,
		Description: in.Description,
		Total:       in.Total,
		Currency:    currency,
		Tax:         in.Tax,
		Tip:         in.Tip,
		PaidBy:      in.PaidBy,
		SharedWith:  in.SharedWith,
		Allocations: allocations,
		ReceiptID:   in.ReceiptID,
		CreatedAt:   time.Now().UTC(),
	}
	if err := expense.Validate(memberIDs, s.toleranceCents); err != nil {
		return nil, err
	}
	if err := s.store.CreateExpense(ctx, expense); err != nil {
		return nil, fmt.Errorf("create expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense created",
		"trip_id", tripID,
		"expense_id", expense.ID,
		"total_cents", expense.Total.Cents,
		"participants", len(expense.SharedWith))
	return expense, nil
}

// PreviewAllocations computes the allocation an expense input would produce
// without persisting anything.
func (s *TripService) PreviewAllocations(ctx context.Context, tripID string, in ExpenseInput) (core.CustomSplitResult, error) {
	if _, err := s.store.GetTrip(ctx, tripID); err != nil {
		return core.CustomSplitResult{}, err
	}

	if len(in.Allocations) == 0 {
		shares := core.EvenSplit(in.Total, in.SharedWith, in.PaidBy)
		result := core.CustomSplitResult{}
		for _, sh := range shares {
			result.Shares = append(result.Shares, core.CustomShare{
				MemberID: sh.MemberID,
				Base:     sh.Amount,
				Total:    sh.Amount,
			})
			result.Allocated.Cents += sh.Amount.Cents
		}
		result.Delta = core.Money{Cents: result.Allocated.Cents - in.Total.Cents}
		return result, nil
	}

	bases := make([]core.Share, 0, len(in.Allocations))
	for _, a := range in.Allocations {
		bases = append(bases, core.Share{MemberID: a.MemberID, Amount: a.Amount})
	}
	extras := core.Money{Cents: in.Tax.Cents + in.Tip.Cents}
	return core.CustomSplit(bases, extras, in.SplitExtras, in.Total), nil
}

func (s *TripService) ListExpenses(ctx context.Context, tripID string) ([]core.Expense, error) {
	if _, err := s.store.GetTrip(ctx, tripID); err != nil {
		return nil, err
	}
	return s.store.ListExpenses(ctx, tripID)
}

func (s *TripService) DeleteExpense(ctx context.Context, tripID, id string) error {
	return s.store.DeleteExpense(ctx, tripID, id)
}

func (s *TripService) CreateSettlement(ctx context.Context, tripID, fromMember, toMember string, amount core.Money, note string) (*core.Settlement, error) {
	if _, err := s.store.GetTrip(ctx, tripID); err != nil {
		return nil, err
	}
	memberIDs, err := s.memberIDSet(ctx, tripID)
	if err != nil {
		return nil, err
	}

	settlement := &core.Settlement{
		ID:         uuid.NewString(),
		TripID:     tripID,
		FromMember: fromMember,
		ToMember:   toMember,
		Amount:     amount,
		Note:       note,
		CreatedAt:  time.Now().UTC(),
	}
	if err := settlement.Validate(memberIDs); err != nil {
		return nil, err
	}
	if err := s.store.CreateSettlement(ctx, settlement); err != nil {
		return nil, fmt.Errorf("create settlement: %w", err)
	}
	return settlement, nil
}

// ConfirmSettlement marks the settlement as paid. Only confirmed settlements
// move balances.
func (s *TripService) ConfirmSettlement(ctx context.Context, tripID, id string) error {
	return s.store.ConfirmSettlement(ctx, tripID, id, time.Now().UTC())
}

func (s *TripService) DeleteSettlement(ctx context.Context, tripID, id string) error {
	return s.store.DeleteSettlement(ctx, tripID, id)
}

func (s *TripService) ListSettlements(ctx context.Context, tripID string) ([]core.Settlement, error) {
	if _, err := s.store.GetTrip(ctx, tripID); err != nil {
		return nil, err
	}
	return s.store.ListSettlements(ctx, tripID)
}

// Balances derives each member's net position from the trip's full record set.
func (s *TripService) Balances(ctx context.Context, tripID string) ([]core.BalanceRow, error) {
	if _, err := s.store.GetTrip(ctx, tripID); err != nil {
		return nil, err
	}
	members, err := s.store.ListMembers(ctx, tripID)
	if err != nil {
		return nil, err
	}
	expenses, err := s.store.ListExpenses(ctx, tripID)
	if err != nil {
		return nil, err
	}
	settlements, err := s.store.ListSettlements(ctx, tripID)
	if err != nil {
		return nil, err
	}
	return core.ComputeBalances(members, expenses, settlements), nil
}

// SuggestSettlements proposes transfers that would zero all balances.
func (s *TripService) SuggestSettlements(ctx context.Context, tripID string) ([]core.Suggestion, error) {
	rows, err := s.Balances(ctx, tripID)
	if err != nil {
		return nil, err
	}
	return core.SuggestSettlements(rows), nil
}

func (s *TripService) memberIDSet(ctx context.Context, tripID string) (map[string]struct{}, error) {
	members, err := s.store.ListMembers(ctx, tripID)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]struct{}, len(members))
	for _, m := range members {
		ids[m.ID] = struct{}{}
	}
	return ids, nil
}
