package core

import "testing"

func TestSuggestSettlementsZeroesBalances(t *testing.T) {
	rows := []BalanceRow{
		{MemberID: "alice", Amount: Money{Cents: 6666}},
		{MemberID: "bob", Amount: Money{Cents: -3333}},
		{MemberID: "carol", Amount: Money{Cents: -3333}},
	}

	suggestions := SuggestSettlements(rows)

	remaining := balanceCents(rows)
	for _, s := range suggestions {
		remaining[s.FromMember] += s.Amount.Cents
		remaining[s.ToMember] -= s.Amount.Cents
	}
	for id, cents := range remaining {
		if cents > settleDustCents || cents < -settleDustCents {
			t.Errorf("member %s: %d cents left after applying suggestions", id, cents)
		}
	}
}

func TestSuggestSettlementsGreedyOrder(t *testing.T) {
	rows := []BalanceRow{
		{MemberID: "a", Amount: Money{Cents: 5000}},
		{MemberID: "b", Amount: Money{Cents: -2000}},
		{MemberID: "c", Amount: Money{Cents: 3000}},
		{MemberID: "d", Amount: Money{Cents: -6000}},
	}

	got := SuggestSettlements(rows)
	want := []Suggestion{
		{FromMember: "b", ToMember: "a", Amount: Money{Cents: 2000}},
		{FromMember: "d", ToMember: "a", Amount: Money{Cents: 3000}},
		{FromMember: "d", ToMember: "c", Amount: Money{Cents: 3000}},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d suggestions, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("suggestion %d: got %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestSuggestSettlementsBound(t *testing.T) {
	rows := []BalanceRow{
		{MemberID: "a", Amount: Money{Cents: 100}},
		{MemberID: "b", Amount: Money{Cents: 200}},
		{MemberID: "c", Amount: Money{Cents: 300}},
		{MemberID: "d", Amount: Money{Cents: -150}},
		{MemberID: "e", Amount: Money{Cents: -450}},
	}
	suggestions := SuggestSettlements(rows)
	// at most |creditors| + |debtors| - 1
	if len(suggestions) > 4 {
		t.Fatalf("%d suggestions exceed the |C|+|D|-1 bound", len(suggestions))
	}
}

func TestSuggestSettlementsIgnoresDust(t *testing.T) {
	rows := []BalanceRow{
		{MemberID: "a", Amount: Money{Cents: 1}},
		{MemberID: "b", Amount: Money{Cents: -1}},
	}
	if got := SuggestSettlements(rows); len(got) != 0 {
		t.Fatalf("dust balances produced suggestions: %v", got)
	}
}

func TestSuggestSettlementsEmpty(t *testing.T) {
	if got := SuggestSettlements(nil); len(got) != 0 {
		t.Fatalf("nil input produced suggestions: %v", got)
	}
	rows := []BalanceRow{{MemberID: "a", Amount: Money{}}}
	if got := SuggestSettlements(rows); len(got) != 0 {
		t.Fatalf("zero balances produced suggestions: %v", got)
	}
}
