package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Donation      EntryType = "donation"
	Income        EntryType = "income"
	ExpenseEntry  EntryType = "expense"
	Reimbursement EntryType = "reimbursement"
)

const (
	ReceiptPending   ReceiptStatus = "pending"
	ReceiptExtracted ReceiptStatus = "extracted"
	ReceiptFailed    ReceiptStatus = "failed"
)

type (
	EntryType     string
	ReceiptStatus string

	Money struct {
		Cents int64
	}

	Trip struct {
		ID        string
		Name      string
		Currency  string // three-letter code, carried but never converted
		CreatedAt time.Time
	}

	Member struct {
		ID          string
		TripID      string
		DisplayName string
	}

	Allocation struct {
		MemberID string
		Amount   Money
	}

	Expense struct {
		ID          string
		TripID      string
		Description string
		Total       Money
		Currency    string
		Tax         Money
		Tip         Money
		PaidBy      string // member ID
		SharedWith  []string
		Allocations []Allocation
		ReceiptID   string
		CreatedAt   time.Time
	}

	Settlement struct {
		ID          string
		TripID      string
		FromMember  string
		ToMember    string
		Amount      Money
		Note        string
		CreatedAt   time.Time
		ConfirmedAt *time.Time
	}

	Group struct {
		ID        string
		Name      string
		Active    bool
		CreatedAt time.Time
	}

	LedgerEntry struct {
		ID          string
		Type        EntryType
		Amount      Money
		GroupID     string // empty = unallocated pool
		Description string
		OccurredAt  time.Time
		CreatedAt   time.Time
	}

	Transfer struct {
		ID          string
		Amount      Money
		FromGroupID string // empty = unallocated pool
		ToGroupID   string // empty = unallocated pool
		Note        string
		CreatedAt   time.Time
	}

	ReceiptItem struct {
		Description string
		Amount      Money
	}

	Receipt struct {
		ID        string
		TripID    string
		FileName  string
		Status    ReceiptStatus
		Vendor    string
		Subtotal  Money
		Tax       Money
		Tip       Money
		Items     []ReceiptItem
		CreatedAt time.Time
	}
)

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrEmptyDescription   = errors.New("empty description")
	ErrEmptyName          = errors.New("empty name")
	ErrNoParticipants     = errors.New("at least one participant required")
	ErrUnknownMember      = errors.New("unknown member")
	ErrSelfSettlement     = errors.New("settlement must involve two distinct members")
	ErrSelfTransfer       = errors.New("transfer must involve two distinct buckets")
	ErrInvalidEntryType   = errors.New("invalid entry type")
	ErrAllocationMismatch = errors.New("allocation sum does not match expense total")
)

// Confirmed reports whether the settlement has been confirmed.
// Only confirmed settlements affect balances.
func (s Settlement) Confirmed() bool {
	return s.ConfirmedAt != nil && !s.ConfirmedAt.IsZero()
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (t EntryType) Valid() bool {
	switch t {
	case Donation, Income, ExpenseEntry, Reimbursement:
		return true
	}
	return false
}

func (t Trip) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return ErrEmptyName
	}
	if len(t.Currency) != 3 {
		return errors.New("currency must be a three-letter code")
	}
	return nil
}

func (m Member) Validate() error {
	if strings.TrimSpace(m.DisplayName) == "" {
		return ErrEmptyName
	}
	if len(m.DisplayName) > 100 {
		return errors.New("display name too long (max 100 characters)")
	}
	return nil
}

// Validate checks an expense against the set of known trip members and the
// configured allocation tolerance (in cents). The tolerance absorbs rounding
// in caller-supplied allocations, not logic errors; allocations produced by
// the split calculator are always cent-exact.
func (e Expense) Validate(memberIDs map[string]struct{}, toleranceCents int64) error {
	if strings.TrimSpace(e.Description) == "" {
		return ErrEmptyDescription
	}
	if len(e.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if err := e.Total.Validate(); err != nil {
		return err
	}
	if e.Tax.Cents < 0 || e.Tip.Cents < 0 {
		return ErrInvalidAmount
	}
	if _, ok := memberIDs[e.PaidBy]; !ok {
		return ErrUnknownMember
	}
	for _, id := range e.SharedWith {
		if _, ok := memberIDs[id]; !ok {
			return ErrUnknownMember
		}
	}
	// Without at least one allocation the payer would be credited the full
	// total with no offsetting debits, breaking balance conservation.
	if len(e.Allocations) == 0 {
		return ErrNoParticipants
	}
	var sum int64
	for _, a := range e.Allocations {
		if _, ok := memberIDs[a.MemberID]; !ok {
			return ErrUnknownMember
		}
		sum += a.Amount.Cents
	}
	diff := sum - e.Total.Cents
	if diff < 0 {
		diff = -diff
	}
	if diff > toleranceCents {
		return ErrAllocationMismatch
	}
	return nil
}

func (s Settlement) Validate(memberIDs map[string]struct{}) error {
	if err := s.Amount.Validate(); err != nil {
		return err
	}
	if s.FromMember == s.ToMember {
		return ErrSelfSettlement
	}
	if _, ok := memberIDs[s.FromMember]; !ok {
		return ErrUnknownMember
	}
	if _, ok := memberIDs[s.ToMember]; !ok {
		return ErrUnknownMember
	}
	return nil
}

func (g Group) Validate() error {
	if strings.TrimSpace(g.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

func (e LedgerEntry) Validate() error {
	if !e.Type.Valid() {
		return ErrInvalidEntryType
	}
	if strings.TrimSpace(e.Description) == "" {
		return ErrEmptyDescription
	}
	if len(e.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	return e.Amount.Validate()
}

func (t Transfer) Validate() error {
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	// A transfer debits exactly one bucket and credits exactly one other;
	// both sides pointing at the same bucket (or both at the pool) is invalid.
	if t.FromGroupID == t.ToGroupID {
		return ErrSelfTransfer
	}
	return nil
}
