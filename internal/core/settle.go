package core

// settleDustCents is the threshold below which a remaining balance is treated
// as settled. One cent of dust can survive rounding and is not worth a payment.
const settleDustCents = 1

// Suggestion is a proposed payment that reduces two members' mutual balance.
type Suggestion struct {
	FromMember string
	ToMember   string
	Amount     Money
}

// SuggestSettlements proposes payments that would zero every balance when
// applied as confirmed settlements. Members are partitioned into creditors and
// debtors in the order the rows arrive (not re-sorted by magnitude); the
// earliest remaining creditor and debtor are matched for the smaller of their
// remainders, and a side advances once its remainder drops to dust.
//
// The result is a valid zeroing set of at most len(creditors)+len(debtors)-1
// payments. It is a greedy approximation, not the minimum transaction count.
func SuggestSettlements(rows []BalanceRow) []Suggestion {
	type party struct {
		id        string
		remaining int64
	}

	var creditors, debtors []party
	for _, r := range rows {
		switch {
		case r.Amount.Cents > settleDustCents:
			creditors = append(creditors, party{id: r.MemberID, remaining: r.Amount.Cents})
		case r.Amount.Cents < -settleDustCents:
			debtors = append(debtors, party{id: r.MemberID, remaining: -r.Amount.Cents})
		}
	}

	var suggestions []Suggestion
	i, j := 0, 0
	for i < len(debtors) && j < len(creditors) {
		amount := debtors[i].remaining
		if creditors[j].remaining < amount {
			amount = creditors[j].remaining
		}

		if amount > settleDustCents {
			suggestions = append(suggestions, Suggestion{
				FromMember: debtors[i].id,
				ToMember:   creditors[j].id,
				Amount:     Money{Cents: amount},
			})
		}

		debtors[i].remaining -= amount
		creditors[j].remaining -= amount

		if debtors[i].remaining <= settleDustCents {
			i++
		}
		if creditors[j].remaining <= settleDustCents {
			j++
		}
	}

	return suggestions
}
