package core

// BalanceRow is one member's net position. Positive = owed money,
// negative = owes money.
type BalanceRow struct {
	MemberID    string
	DisplayName string
	Amount      Money
}

// ComputeBalances folds a trip's expenses and confirmed settlements into one
// net balance per member. For each expense the payer is credited the total and
// every allocation's member is debited their share; for each confirmed
// settlement the payer is credited and the receiver debited. Pending
// settlements are excluded entirely.
//
// Balances are recomputed from the full record set on every call; nothing is
// cached or persisted, so they cannot drift from the underlying records.
// Integer-cent arithmetic keeps the conservation invariant exact: the rows
// always sum to zero for well-formed input.
//
// Amounts referencing IDs outside the member list are skipped. Upstream
// validation enforces referential integrity on the write path; this is a
// defensive guard for the read path only.
func ComputeBalances(members []Member, expenses []Expense, settlements []Settlement) []BalanceRow {
	cents := make(map[string]int64, len(members))
	known := make(map[string]struct{}, len(members))
	for _, m := range members {
		cents[m.ID] = 0
		known[m.ID] = struct{}{}
	}

	for _, e := range expenses {
		if _, ok := known[e.PaidBy]; ok {
			cents[e.PaidBy] += e.Total.Cents
		}
		for _, a := range e.Allocations {
			if _, ok := known[a.MemberID]; ok {
				cents[a.MemberID] -= a.Amount.Cents
			}
		}
	}

	for _, s := range settlements {
		if !s.Confirmed() {
			continue
		}
		if _, ok := known[s.FromMember]; ok {
			cents[s.FromMember] += s.Amount.Cents
		}
		if _, ok := known[s.ToMember]; ok {
			cents[s.ToMember] -= s.Amount.Cents
		}
	}

	rows := make([]BalanceRow, len(members))
	for i, m := range members {
		rows[i] = BalanceRow{
			MemberID:    m.ID,
			DisplayName: m.DisplayName,
			Amount:      Money{Cents: cents[m.ID]},
		}
	}
	return rows
}
