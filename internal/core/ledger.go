package core

// BucketSummary is the aggregated view of one ledger bucket: a named group or
// the unallocated pool. Net = Donations + Income + Reimbursements + TransfersIn
// - Expenses - TransfersOut.
type BucketSummary struct {
	GroupID        string // empty for the unallocated pool and for totals
	Name           string
	Donations      Money
	Income         Money
	Expenses       Money
	Reimbursements Money
	TransfersIn    Money
	TransfersOut   Money
	Net            Money
}

// LedgerReport is the full aggregation of the multi-group ledger: global
// totals computed from entries alone, one summary per group, and the
// unallocated-pool summary.
type LedgerReport struct {
	Totals      BucketSummary
	Groups      []BucketSummary
	Unallocated BucketSummary
}

type bucket struct {
	donations, income, expenses, reimbursements int64
	transfersIn, transfersOut                   int64
}

func (b *bucket) addEntry(t EntryType, cents int64) {
	switch t {
	case Donation:
		b.donations += cents
	case Income:
		b.income += cents
	case ExpenseEntry:
		b.expenses += cents
	case Reimbursement:
		b.reimbursements += cents
	}
}

func (b *bucket) net() int64 {
	return b.donations + b.income + b.reimbursements + b.transfersIn -
		b.expenses - b.transfersOut
}

func (b *bucket) summary(groupID, name string) BucketSummary {
	return BucketSummary{
		GroupID:        groupID,
		Name:           name,
		Donations:      Money{Cents: b.donations},
		Income:         Money{Cents: b.income},
		Expenses:       Money{Cents: b.expenses},
		Reimbursements: Money{Cents: b.reimbursements},
		TransfersIn:    Money{Cents: b.transfersIn},
		TransfersOut:   Money{Cents: b.transfersOut},
		Net:            Money{Cents: b.net()},
	}
}

// AggregateLedger classifies entries and transfers into per-group buckets plus
// the unallocated pool, in one pass over each list. An entry without a group
// lands in the pool; a transfer side without a group debits or credits the
// pool. Transfers move balance between buckets without representing new cash
// flow, so they cancel globally: the sum of all bucket nets (groups + pool)
// equals the totals net computed from entries alone.
//
// The function is pure; calling it twice on the same input yields identical
// output. Group order in the report follows the groups argument; buckets for
// group IDs referenced by entries or transfers but missing from groups are
// created lazily and appended in first-reference order.
func AggregateLedger(entries []LedgerEntry, groups []Group, transfers []Transfer) LedgerReport {
	buckets := make(map[string]*bucket)
	var order []string
	get := func(groupID string) *bucket {
		b, ok := buckets[groupID]
		if !ok {
			b = &bucket{}
			buckets[groupID] = b
			if groupID != "" {
				order = append(order, groupID)
			}
		}
		return b
	}

	names := make(map[string]string, len(groups))
	for _, g := range groups {
		names[g.ID] = g.Name
		get(g.ID)
	}
	get("") // pool always present

	var totals bucket
	for _, e := range entries {
		totals.addEntry(e.Type, e.Amount.Cents)
		get(e.GroupID).addEntry(e.Type, e.Amount.Cents)
	}

	for _, t := range transfers {
		get(t.FromGroupID).transfersOut += t.Amount.Cents
		get(t.ToGroupID).transfersIn += t.Amount.Cents
	}

	report := LedgerReport{
		Totals:      totals.summary("", ""),
		Unallocated: buckets[""].summary("", ""),
	}
	for _, id := range order {
		report.Groups = append(report.Groups, buckets[id].summary(id, names[id]))
	}
	return report
}
