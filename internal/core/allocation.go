package core

// Share is one participant's portion of a split total.
type Share struct {
	MemberID string
	Amount   Money
}

// CustomShare is one participant's portion of a custom split: the caller-supplied
// base plus their slice of the evenly distributed extras.
type CustomShare struct {
	MemberID string
	Base     Money
	Extra    Money
	Total    Money
}

// CustomSplitResult reports the computed shares together with the running
// allocated sum and the delta versus the target total, so callers can block
// submission when the delta exceeds tolerance.
type CustomSplitResult struct {
	Shares    []CustomShare
	Allocated Money
	Delta     Money // Allocated - Target
}

// EvenSplit divides total into integer-cent shares, one per participant, in
// list order. base = cents/n cents go to everyone; the remainder goes entirely
// to remainderTargetID if it is among the participants, otherwise it is handed
// out one cent at a time in list order until exhausted. The shares always sum
// to the total exactly. The sign of the total is preserved.
//
// Zero participants or a zero total yield no shares.
func EvenSplit(total Money, participantIDs []string, remainderTargetID string) []Share {
	n := int64(len(participantIDs))
	if n == 0 || total.Cents == 0 {
		return nil
	}

	cents := total.Cents
	sign := int64(1)
	if cents < 0 {
		sign = -1
		cents = -cents
	}

	base := cents / n
	remainder := cents - base*n

	targetIdx := -1
	if remainderTargetID != "" {
		for i, id := range participantIDs {
			if id == remainderTargetID {
				targetIdx = i
				break
			}
		}
	}

	shares := make([]Share, n)
	for i, id := range participantIDs {
		c := base
		if targetIdx >= 0 {
			if i == targetIdx {
				c += remainder
			}
		} else if int64(i) < remainder {
			c++
		}
		shares[i] = Share{MemberID: id, Amount: Money{Cents: sign * c}}
	}
	return shares
}

// CustomSplit combines caller-supplied per-member bases with an optional evenly
// split extra (tax + tip). When splitExtras is set, the extras are divided with
// the even-split rule (remainder one cent at a time in list order) and added to
// each base. The result carries the allocated sum and its delta against target.
func CustomSplit(bases []Share, extras Money, splitExtras bool, target Money) CustomSplitResult {
	result := CustomSplitResult{Shares: make([]CustomShare, 0, len(bases))}
	if len(bases) == 0 {
		result.Delta = Money{Cents: -target.Cents}
		return result
	}

	var extraShares []Share
	if splitExtras && extras.Cents != 0 {
		ids := make([]string, len(bases))
		for i, b := range bases {
			ids[i] = b.MemberID
		}
		extraShares = EvenSplit(extras, ids, "")
	}

	var allocated int64
	for i, b := range bases {
		share := CustomShare{MemberID: b.MemberID, Base: b.Amount}
		if extraShares != nil {
			share.Extra = extraShares[i].Amount
		}
		share.Total = Money{Cents: share.Base.Cents + share.Extra.Cents}
		allocated += share.Total.Cents
		result.Shares = append(result.Shares, share)
	}

	result.Allocated = Money{Cents: allocated}
	result.Delta = Money{Cents: allocated - target.Cents}
	return result
}
