package core

import "testing"

func shareCents(shares []Share) map[string]int64 {
	m := make(map[string]int64, len(shares))
	for _, s := range shares {
		m[s.MemberID] = s.Amount.Cents
	}
	return m
}

func TestEvenSplitRemainderInListOrder(t *testing.T) {
	shares := EvenSplit(Money{Cents: 1000}, []string{"a", "b", "c"}, "")
	got := shareCents(shares)
	want := map[string]int64{"a": 334, "b": 333, "c": 333}
	for id, cents := range want {
		if got[id] != cents {
			t.Errorf("member %s: got %d, want %d", id, got[id], cents)
		}
	}
}

func TestEvenSplitRemainderTarget(t *testing.T) {
	shares := EvenSplit(Money{Cents: 1000}, []string{"a", "b", "c"}, "c")
	got := shareCents(shares)
	want := map[string]int64{"a": 333, "b": 333, "c": 334}
	for id, cents := range want {
		if got[id] != cents {
			t.Errorf("member %s: got %d, want %d", id, got[id], cents)
		}
	}
}

func TestEvenSplitUnknownTargetFallsBackToListOrder(t *testing.T) {
	shares := EvenSplit(Money{Cents: 1001}, []string{"a", "b", "c"}, "nobody")
	got := shareCents(shares)
	want := map[string]int64{"a": 334, "b": 334, "c": 333}
	for id, cents := range want {
		if got[id] != cents {
			t.Errorf("member %s: got %d, want %d", id, got[id], cents)
		}
	}
}

func TestEvenSplitCompleteness(t *testing.T) {
	participants := []string{"a", "b", "c", "d", "e", "f", "g"}
	for cents := int64(1); cents < 500; cents++ {
		for n := 1; n <= len(participants); n++ {
			shares := EvenSplit(Money{Cents: cents}, participants[:n], "")
			var sum int64
			for _, s := range shares {
				sum += s.Amount.Cents
			}
			if sum != cents {
				t.Fatalf("total %d over %d participants: shares sum to %d", cents, n, sum)
			}
		}
	}
}

func TestEvenSplitPreservesSign(t *testing.T) {
	shares := EvenSplit(Money{Cents: -1000}, []string{"a", "b", "c"}, "")
	var sum int64
	for _, s := range shares {
		if s.Amount.Cents > 0 {
			t.Errorf("member %s: positive share %d from negative total", s.MemberID, s.Amount.Cents)
		}
		sum += s.Amount.Cents
	}
	if sum != -1000 {
		t.Fatalf("shares sum to %d, want -1000", sum)
	}
}

func TestEvenSplitEdgeCases(t *testing.T) {
	if shares := EvenSplit(Money{Cents: 1000}, nil, ""); shares != nil {
		t.Errorf("no participants: expected no shares, got %v", shares)
	}
	if shares := EvenSplit(Money{}, []string{"a"}, ""); shares != nil {
		t.Errorf("zero total: expected no shares, got %v", shares)
	}
	shares := EvenSplit(Money{Cents: 100}, []string{"solo"}, "")
	if len(shares) != 1 || shares[0].Amount.Cents != 100 {
		t.Errorf("single participant: got %v", shares)
	}
}

func TestCustomSplitWithExtras(t *testing.T) {
	bases := []Share{
		{MemberID: "a", Amount: Money{Cents: 1500}},
		{MemberID: "b", Amount: Money{Cents: 2500}},
		{MemberID: "c", Amount: Money{Cents: 1000}},
	}
	// tax+tip of 10.00 split evenly: 334/333/333
	res := CustomSplit(bases, Money{Cents: 1000}, true, Money{Cents: 6000})

	wantTotals := map[string]int64{"a": 1834, "b": 2833, "c": 1333}
	for _, s := range res.Shares {
		if s.Total.Cents != wantTotals[s.MemberID] {
			t.Errorf("member %s: total %d, want %d", s.MemberID, s.Total.Cents, wantTotals[s.MemberID])
		}
		if s.Total.Cents != s.Base.Cents+s.Extra.Cents {
			t.Errorf("member %s: total %d != base %d + extra %d", s.MemberID, s.Total.Cents, s.Base.Cents, s.Extra.Cents)
		}
	}
	if res.Allocated.Cents != 6000 {
		t.Errorf("allocated %d, want 6000", res.Allocated.Cents)
	}
	if res.Delta.Cents != 0 {
		t.Errorf("delta %d, want 0", res.Delta.Cents)
	}
}

func TestCustomSplitReportsDelta(t *testing.T) {
	bases := []Share{
		{MemberID: "a", Amount: Money{Cents: 1000}},
		{MemberID: "b", Amount: Money{Cents: 1000}},
	}
	res := CustomSplit(bases, Money{}, false, Money{Cents: 2100})
	if res.Allocated.Cents != 2000 {
		t.Errorf("allocated %d, want 2000", res.Allocated.Cents)
	}
	if res.Delta.Cents != -100 {
		t.Errorf("delta %d, want -100", res.Delta.Cents)
	}
}

func TestCustomSplitZeroBaseCarriesExtras(t *testing.T) {
	bases := []Share{
		{MemberID: "a", Amount: Money{Cents: 2000}},
		{MemberID: "b", Amount: Money{}},
	}
	res := CustomSplit(bases, Money{Cents: 300}, true, Money{Cents: 2300})
	if res.Shares[1].Total.Cents != 150 {
		t.Errorf("zero-base member total %d, want 150", res.Shares[1].Total.Cents)
	}
	if res.Delta.Cents != 0 {
		t.Errorf("delta %d, want 0", res.Delta.Cents)
	}
}

func TestCustomSplitNoParticipants(t *testing.T) {
	res := CustomSplit(nil, Money{Cents: 100}, true, Money{Cents: 500})
	if len(res.Shares) != 0 {
		t.Errorf("expected no shares, got %v", res.Shares)
	}
	if res.Delta.Cents != -500 {
		t.Errorf("delta %d, want -500", res.Delta.Cents)
	}
}
