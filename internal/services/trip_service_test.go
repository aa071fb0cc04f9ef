package services

import (
	"context"
	"errors"
	"testing"

	"divvy/internal/core"
	"divvy/internal/storage"
)

func newTestTrip(t *testing.T, svc *TripService, names ...string) (*core.Trip, []core.Member) {
	t.Helper()
	ctx := context.Background()

	trip, err := svc.CreateTrip(ctx, "Lisbon", "EUR")
	if err != nil {
		t.Fatalf("CreateTrip failed: %v", err)
	}
	var members []core.Member
	for _, name := range names {
		m, err := svc.AddMember(ctx, trip.ID, name)
		if err != nil {
			t.Fatalf("AddMember(%q) failed: %v", name, err)
		}
		members = append(members, *m)
	}
	return trip, members
}

func TestTripService_CreateExpenseEvenSplit(t *testing.T) {
	ctx := context.Background()
	svc := NewTripService(storage.NewMemoryStore(), 5)
	trip, members := newTestTrip(t, svc, "Alice", "Bob", "Carol")

	expense, err := svc.CreateExpense(ctx, trip.ID, ExpenseInput{
		Description: "dinner",
		Total:       core.Money{Cents: 10000},
		PaidBy:      members[0].ID,
		SharedWith:  []string{members[0].ID, members[1].ID, members[2].ID},
	})
	if err != nil {
		t.Fatalf("CreateExpense failed: %v", err)
	}

	if len(expense.Allocations) != 3 {
		t.Fatalf("expected 3 allocations, got %d", len(expense.Allocations))
	}
	var sum int64
	for _, a := range expense.Allocations {
		sum += a.Amount.Cents
	}
	if sum != 10000 {
		t.Fatalf("allocations sum to %d, want 10000", sum)
	}
	// The payer absorbs the remainder cent.
	if expense.Allocations[0].MemberID != members[0].ID || expense.Allocations[0].Amount.Cents != 3334 {
		t.Fatalf("payer allocation = %+v, want 3334 cents for %s", expense.Allocations[0], members[0].ID)
	}
	if expense.Currency != "EUR" {
		t.Fatalf("currency should default to the trip's, got %q", expense.Currency)
	}
}

func TestTripService_CreateExpenseRejectsUnknownMember(t *testing.T) {
	ctx := context.Background()
	svc := NewTripService(storage.NewMemoryStore(), 5)
	trip, members := newTestTrip(t, svc, "Alice")

	_, err := svc.CreateExpense(ctx, trip.ID, ExpenseInput{
		Description: "taxi",
		Total:       core.Money{Cents: 1200},
		PaidBy:      members[0].ID,
		SharedWith:  []string{members[0].ID, "ghost"},
	})
	if !errors.Is(err, core.ErrUnknownMember) {
		t.Fatalf("expected ErrUnknownMember, got %v", err)
	}
}

func TestTripService_CreateExpenseRejectsNoParticipants(t *testing.T) {
	ctx := context.Background()
	svc := NewTripService(storage.NewMemoryStore(), 5)
	trip, members := newTestTrip(t, svc, "Alice")

	_, err := svc.CreateExpense(ctx, trip.ID, ExpenseInput{
		Description: "hotel",
		Total:       core.Money{Cents: 10000},
		PaidBy:      members[0].ID,
	})
	if !errors.Is(err, core.ErrNoParticipants) {
		t.Fatalf("expected ErrNoParticipants, got %v", err)
	}

	// Nothing was recorded, so balances still conserve at zero.
	rows, err := svc.Balances(ctx, trip.ID)
	if err != nil {
		t.Fatalf("Balances failed: %v", err)
	}
	var sum int64
	for _, row := range rows {
		sum += row.Amount.Cents
	}
	if sum != 0 {
		t.Fatalf("balances sum to %d, want 0", sum)
	}
}

func TestTripService_CreateExpenseCustomAllocationsTolerance(t *testing.T) {
	ctx := context.Background()
	svc := NewTripService(storage.NewMemoryStore(), 5)
	trip, members := newTestTrip(t, svc, "Alice", "Bob")

	in := ExpenseInput{
		Description: "groceries",
		Total:       core.Money{Cents: 5000},
		PaidBy:      members[0].ID,
		SharedWith:  []string{members[0].ID, members[1].ID},
		Allocations: []core.Allocation{
			{MemberID: members[0].ID, Amount: core.Money{Cents: 2500}},
			{MemberID: members[1].ID, Amount: core.Money{Cents: 2497}}, // 3 cents short
		},
	}
	if _, err := svc.CreateExpense(ctx, trip.ID, in); err != nil {
		t.Fatalf("3-cent mismatch within tolerance should pass: %v", err)
	}

	tight := NewTripService(storage.NewMemoryStore(), 1)
	tightTrip, tightMembers := newTestTrip(t, tight, "Alice", "Bob")
	in.PaidBy = tightMembers[0].ID
	in.SharedWith = []string{tightMembers[0].ID, tightMembers[1].ID}
	in.Allocations = []core.Allocation{
		{MemberID: tightMembers[0].ID, Amount: core.Money{Cents: 2500}},
		{MemberID: tightMembers[1].ID, Amount: core.Money{Cents: 2497}},
	}
	if _, err := tight.CreateExpense(ctx, tightTrip.ID, in); !errors.Is(err, core.ErrAllocationMismatch) {
		t.Fatalf("expected ErrAllocationMismatch at 1-cent tolerance, got %v", err)
	}
}

func TestTripService_PreviewAllocations(t *testing.T) {
	ctx := context.Background()
	svc := NewTripService(storage.NewMemoryStore(), 5)
	trip, members := newTestTrip(t, svc, "Alice", "Bob", "Carol")

	result, err := svc.PreviewAllocations(ctx, trip.ID, ExpenseInput{
		Total:      core.Money{Cents: 1000},
		PaidBy:     members[1].ID,
		SharedWith: []string{members[0].ID, members[1].ID, members[2].ID},
	})
	if err != nil {
		t.Fatalf("PreviewAllocations failed: %v", err)
	}
	if result.Delta.Cents != 0 {
		t.Fatalf("even preview delta = %d, want 0", result.Delta.Cents)
	}
	if result.Allocated.Cents != 1000 {
		t.Fatalf("even preview allocated = %d, want 1000", result.Allocated.Cents)
	}

	// Extras are folded in only when the caller asks for it.
	custom := ExpenseInput{
		Total:  core.Money{Cents: 4100},
		Tax:    core.Money{Cents: 100},
		PaidBy: members[0].ID,
		Allocations: []core.Allocation{
			{MemberID: members[0].ID, Amount: core.Money{Cents: 2000}},
			{MemberID: members[1].ID, Amount: core.Money{Cents: 2000}},
		},
	}
	result, err = svc.PreviewAllocations(ctx, trip.ID, custom)
	if err != nil {
		t.Fatalf("PreviewAllocations failed: %v", err)
	}
	if result.Allocated.Cents != 4000 || result.Delta.Cents != -100 {
		t.Fatalf("extras folded without opt-in: allocated %d, delta %d", result.Allocated.Cents, result.Delta.Cents)
	}

	custom.SplitExtras = true
	result, err = svc.PreviewAllocations(ctx, trip.ID, custom)
	if err != nil {
		t.Fatalf("PreviewAllocations failed: %v", err)
	}
	if result.Allocated.Cents != 4100 || result.Delta.Cents != 0 {
		t.Fatalf("split extras preview: allocated %d, delta %d, want 4100 and 0", result.Allocated.Cents, result.Delta.Cents)
	}

	// Nothing was persisted.
	expenses, err := svc.ListExpenses(ctx, trip.ID)
	if err != nil {
		t.Fatalf("ListExpenses failed: %v", err)
	}
	if len(expenses) != 0 {
		t.Fatalf("preview must not persist, found %d expenses", len(expenses))
	}
}

func TestTripService_BalancesAndSuggestions(t *testing.T) {
	ctx := context.Background()
	svc := NewTripService(storage.NewMemoryStore(), 5)
	trip, members := newTestTrip(t, svc, "Alice", "Bob")

	_, err := svc.CreateExpense(ctx, trip.ID, ExpenseInput{
		Description: "hotel",
		Total:       core.Money{Cents: 8000},
		PaidBy:      members[0].ID,
		SharedWith:  []string{members[0].ID, members[1].ID},
	})
	if err != nil {
		t.Fatalf("CreateExpense failed: %v", err)
	}

	rows, err := svc.Balances(ctx, trip.ID)
	if err != nil {
		t.Fatalf("Balances failed: %v", err)
	}
	if rows[0].Amount.Cents != 4000 || rows[1].Amount.Cents != -4000 {
		t.Fatalf("balances = %+v, want +4000/-4000", rows)
	}

	suggestions, err := svc.SuggestSettlements(ctx, trip.ID)
	if err != nil {
		t.Fatalf("SuggestSettlements failed: %v", err)
	}
	if len(suggestions) != 1 {
		t.Fatalf("expected 1 suggestion, got %d", len(suggestions))
	}
	if suggestions[0].FromMember != members[1].ID || suggestions[0].ToMember != members[0].ID || suggestions[0].Amount.Cents != 4000 {
		t.Fatalf("unexpected suggestion: %+v", suggestions[0])
	}

	// Recording and confirming the suggested settlement zeroes the balances.
	settlement, err := svc.CreateSettlement(ctx, trip.ID, members[1].ID, members[0].ID, core.Money{Cents: 4000}, "")
	if err != nil {
		t.Fatalf("CreateSettlement failed: %v", err)
	}

	// Pending settlements do not move balances yet.
	rows, _ = svc.Balances(ctx, trip.ID)
	if rows[0].Amount.Cents != 4000 {
		t.Fatalf("pending settlement must not move balances, got %+v", rows)
	}

	if err := svc.ConfirmSettlement(ctx, trip.ID, settlement.ID); err != nil {
		t.Fatalf("ConfirmSettlement failed: %v", err)
	}
	rows, _ = svc.Balances(ctx, trip.ID)
	for _, row := range rows {
		if row.Amount.Cents != 0 {
			t.Fatalf("balance not zeroed after confirmation: %+v", rows)
		}
	}

	suggestions, _ = svc.SuggestSettlements(ctx, trip.ID)
	if len(suggestions) != 0 {
		t.Fatalf("expected no suggestions after settling, got %+v", suggestions)
	}
}

func TestTripService_SelfSettlementRejected(t *testing.T) {
	ctx := context.Background()
	svc := NewTripService(storage.NewMemoryStore(), 5)
	trip, members := newTestTrip(t, svc, "Alice")

	_, err := svc.CreateSettlement(ctx, trip.ID, members[0].ID, members[0].ID, core.Money{Cents: 100}, "")
	if !errors.Is(err, core.ErrSelfSettlement) {
		t.Fatalf("expected ErrSelfSettlement, got %v", err)
	}
}

func TestTripService_UnknownTrip(t *testing.T) {
	ctx := context.Background()
	svc := NewTripService(storage.NewMemoryStore(), 5)

	if _, err := svc.Balances(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown trip, got %v", err)
	}
	if _, err := svc.AddMember(ctx, "missing", "Alice"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown trip, got %v", err)
	}
}
