package core

import (
	"reflect"
	"testing"
)

func sampleLedger() ([]LedgerEntry, []Group, []Transfer) {
	entries := []LedgerEntry{
		{ID: "e1", Type: Donation, Amount: Money{Cents: 50000}, GroupID: "g1", Description: "spring drive"},
		{ID: "e2", Type: Income, Amount: Money{Cents: 20000}, GroupID: "g1", Description: "ticket sales"},
		{ID: "e3", Type: ExpenseEntry, Amount: Money{Cents: 12500}, GroupID: "g2", Description: "venue"},
		{ID: "e4", Type: Reimbursement, Amount: Money{Cents: 2500}, GroupID: "g2", Description: "refunded deposit"},
		{ID: "e5", Type: Donation, Amount: Money{Cents: 10000}, Description: "anonymous gift"},
		{ID: "e6", Type: ExpenseEntry, Amount: Money{Cents: 3000}, Description: "bank fees"},
	}
	groups := []Group{
		{ID: "g1", Name: "Outreach", Active: true},
		{ID: "g2", Name: "Events", Active: true},
	}
	transfers := []Transfer{
		{ID: "t1", Amount: Money{Cents: 15000}, FromGroupID: "g1", ToGroupID: "g2"},
		{ID: "t2", Amount: Money{Cents: 4000}, FromGroupID: "", ToGroupID: "g2"}, // pool -> group
	}
	return entries, groups, transfers
}

func TestAggregateLedgerTotals(t *testing.T) {
	entries, groups, transfers := sampleLedger()
	report := AggregateLedger(entries, groups, transfers)

	if report.Totals.Donations.Cents != 60000 {
		t.Errorf("totals donations %d, want 60000", report.Totals.Donations.Cents)
	}
	if report.Totals.Income.Cents != 20000 {
		t.Errorf("totals income %d, want 20000", report.Totals.Income.Cents)
	}
	if report.Totals.Expenses.Cents != 15500 {
		t.Errorf("totals expenses %d, want 15500", report.Totals.Expenses.Cents)
	}
	if report.Totals.Reimbursements.Cents != 2500 {
		t.Errorf("totals reimbursements %d, want 2500", report.Totals.Reimbursements.Cents)
	}
	// 600 + 200 + 25 - 155 = 670.00; transfers never appear in totals
	if report.Totals.Net.Cents != 67000 {
		t.Errorf("totals net %d, want 67000", report.Totals.Net.Cents)
	}
}

func TestAggregateLedgerTransferSymmetry(t *testing.T) {
	entries, groups, transfers := sampleLedger()
	report := AggregateLedger(entries, groups, transfers)

	byID := make(map[string]BucketSummary)
	for _, g := range report.Groups {
		byID[g.GroupID] = g
	}
	if byID["g1"].TransfersOut.Cents != 15000 {
		t.Errorf("g1 transfers out %d, want 15000", byID["g1"].TransfersOut.Cents)
	}
	if byID["g2"].TransfersIn.Cents != 19000 {
		t.Errorf("g2 transfers in %d, want 19000", byID["g2"].TransfersIn.Cents)
	}
	if report.Unallocated.TransfersOut.Cents != 4000 {
		t.Errorf("pool transfers out %d, want 4000", report.Unallocated.TransfersOut.Cents)
	}

	// Transfers cancel globally: bucket nets sum to the totals net.
	sum := report.Unallocated.Net.Cents
	for _, g := range report.Groups {
		sum += g.Net.Cents
	}
	if sum != report.Totals.Net.Cents {
		t.Fatalf("bucket nets sum to %d, totals net is %d", sum, report.Totals.Net.Cents)
	}
}

func TestAggregateLedgerIdempotent(t *testing.T) {
	entries, groups, transfers := sampleLedger()
	first := AggregateLedger(entries, groups, transfers)
	second := AggregateLedger(entries, groups, transfers)
	if !reflect.DeepEqual(first, second) {
		t.Fatal("aggregating the same input twice yielded different reports")
	}
}

func TestAggregateLedgerLazyBuckets(t *testing.T) {
	entries := []LedgerEntry{
		{ID: "e1", Type: Income, Amount: Money{Cents: 100}, GroupID: "orphan", Description: "x"},
	}
	report := AggregateLedger(entries, nil, nil)
	if len(report.Groups) != 1 || report.Groups[0].GroupID != "orphan" {
		t.Fatalf("expected lazily created bucket for orphan group, got %+v", report.Groups)
	}
	if report.Groups[0].Name != "" {
		t.Errorf("orphan bucket name %q, want empty", report.Groups[0].Name)
	}
}

func TestAggregateLedgerReassignmentMovesBucketOnly(t *testing.T) {
	entry := LedgerEntry{ID: "e1", Type: Donation, Amount: Money{Cents: 500}, GroupID: "g1", Description: "gift"}
	groups := []Group{{ID: "g1", Name: "A", Active: true}, {ID: "g2", Name: "B", Active: true}}

	before := AggregateLedger([]LedgerEntry{entry}, groups, nil)
	entry.GroupID = "g2"
	after := AggregateLedger([]LedgerEntry{entry}, groups, nil)

	if before.Totals != after.Totals {
		t.Fatalf("reassignment changed totals: %+v -> %+v", before.Totals, after.Totals)
	}
	if after.Groups[0].Donations.Cents != 0 || after.Groups[1].Donations.Cents != 500 {
		t.Errorf("donation did not move buckets: %+v", after.Groups)
	}
}

func TestAggregateLedgerEmptyInput(t *testing.T) {
	report := AggregateLedger(nil, nil, nil)
	if report.Totals.Net.Cents != 0 || len(report.Groups) != 0 {
		t.Fatalf("empty ledger produced non-empty report: %+v", report)
	}
}
