package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"divvy/internal/core"
)

// MemoryStore is an in-memory Store used by tests and by the memory backend.
// It keeps insertion order per collection so derived reads are deterministic.
type MemoryStore struct {
	mu          sync.RWMutex
	trips       map[string]core.Trip
	members     map[string][]core.Member // keyed by trip id
	expenses    map[string][]core.Expense
	settlements map[string][]core.Settlement
	groups      []core.Group
	entries     []core.LedgerEntry
	transfers   []core.Transfer
	receipts    map[string]core.Receipt
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		trips:       make(map[string]core.Trip),
		members:     make(map[string][]core.Member),
		expenses:    make(map[string][]core.Expense),
		settlements: make(map[string][]core.Settlement),
		receipts:    make(map[string]core.Receipt),
	}
}

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) CreateTrip(ctx context.Context, t *core.Trip) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.trips[t.ID]; ok {
		return ErrAlreadyExists
	}
	m.trips[t.ID] = *t
	return nil
}

func (m *MemoryStore) GetTrip(ctx context.Context, id string) (*core.Trip, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.trips[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &t, nil
}

func (m *MemoryStore) AddMember(ctx context.Context, mem *core.Member) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.members[mem.TripID] {
		if existing.ID == mem.ID {
			return ErrAlreadyExists
		}
	}
	m.members[mem.TripID] = append(m.members[mem.TripID], *mem)
	return nil
}

func (m *MemoryStore) ListMembers(ctx context.Context, tripID string) ([]core.Member, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]core.Member, len(m.members[tripID]))
	copy(out, m.members[tripID])
	return out, nil
}

func (m *MemoryStore) CreateExpense(ctx context.Context, e *core.Expense) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.expenses[e.TripID] {
		if existing.ID == e.ID {
			return ErrAlreadyExists
		}
	}
	cp := *e
	cp.SharedWith = append([]string(nil), e.SharedWith...)
	cp.Allocations = append([]core.Allocation(nil), e.Allocations...)
	m.expenses[e.TripID] = append(m.expenses[e.TripID], cp)
	return nil
}

func (m *MemoryStore) ListExpenses(ctx context.Context, tripID string) ([]core.Expense, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]core.Expense, len(m.expenses[tripID]))
	copy(out, m.expenses[tripID])
	return out, nil
}

func (m *MemoryStore) DeleteExpense(ctx context.Context, tripID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.expenses[tripID]
	for i, e := range list {
		if e.ID == id {
			m.expenses[tripID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemoryStore) CreateSettlement(ctx context.Context, s *core.Settlement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.settlements[s.TripID] {
		if existing.ID == s.ID {
			return ErrAlreadyExists
		}
	}
	m.settlements[s.TripID] = append(m.settlements[s.TripID], *s)
	return nil
}

func (m *MemoryStore) ConfirmSettlement(ctx context.Context, tripID, id string, when time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.settlements[tripID]
	for i, s := range list {
		if s.ID == id && s.ConfirmedAt == nil {
			t := when
			list[i].ConfirmedAt = &t
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemoryStore) DeleteSettlement(ctx context.Context, tripID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.settlements[tripID]
	for i, s := range list {
		if s.ID == id {
			m.settlements[tripID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemoryStore) ListSettlements(ctx context.Context, tripID string) ([]core.Settlement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]core.Settlement, len(m.settlements[tripID]))
	copy(out, m.settlements[tripID])
	return out, nil
}

func (m *MemoryStore) CreateGroup(ctx context.Context, g *core.Group) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.groupIndex(g.ID) >= 0 {
		return ErrAlreadyExists
	}
	m.groups = append(m.groups, *g)
	return nil
}

func (m *MemoryStore) EnsureGroup(ctx context.Context, g *core.Group) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.groupIndex(g.ID) >= 0 {
		return nil
	}
	m.groups = append(m.groups, *g)
	return nil
}

func (m *MemoryStore) SetGroupActive(ctx context.Context, id string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.groupIndex(id)
	if i < 0 {
		return ErrNotFound
	}
	m.groups[i].Active = active
	return nil
}

func (m *MemoryStore) ListGroups(ctx context.Context) ([]core.Group, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]core.Group, len(m.groups))
	copy(out, m.groups)
	return out, nil
}

// groupIndex requires the caller to hold the lock.
func (m *MemoryStore) groupIndex(id string) int {
	for i, g := range m.groups {
		if g.ID == id {
			return i
		}
	}
	return -1
}

func (m *MemoryStore) CreateEntry(ctx context.Context, e *core.LedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.entries {
		if existing.ID == e.ID {
			return ErrAlreadyExists
		}
	}
	m.entries = append(m.entries, *e)
	return nil
}

func (m *MemoryStore) ReassignEntry(ctx context.Context, id, groupID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, e := range m.entries {
		if e.ID == id {
			m.entries[i].GroupID = groupID
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemoryStore) DeleteEntry(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, e := range m.entries {
		if e.ID == id {
			m.entries = append(m.entries[:i], m.entries[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemoryStore) ListEntries(ctx context.Context) ([]core.LedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]core.LedgerEntry, len(m.entries))
	copy(out, m.entries)
	return out, nil
}

func (m *MemoryStore) CreateTransfer(ctx context.Context, t *core.Transfer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.transfers {
		if existing.ID == t.ID {
			return ErrAlreadyExists
		}
	}
	m.transfers = append(m.transfers, *t)
	return nil
}

func (m *MemoryStore) ListTransfers(ctx context.Context) ([]core.Transfer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]core.Transfer, len(m.transfers))
	copy(out, m.transfers)
	return out, nil
}

func (m *MemoryStore) CreateReceipt(ctx context.Context, r *core.Receipt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.receipts[r.ID]; ok {
		return ErrAlreadyExists
	}
	cp := *r
	cp.Items = append([]core.ReceiptItem(nil), r.Items...)
	m.receipts[r.ID] = cp
	return nil
}

func (m *MemoryStore) GetReceipt(ctx context.Context, id string) (*core.Receipt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.receipts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := r
	cp.Items = append([]core.ReceiptItem(nil), r.Items...)
	return &cp, nil
}

func (m *MemoryStore) ListPendingReceipts(ctx context.Context, limit int) ([]core.Receipt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []core.Receipt
	for _, r := range m.receipts {
		if r.Status == core.ReceiptPending {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) UpdateReceiptExtraction(ctx context.Context, r *core.Receipt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.receipts[r.ID]
	if !ok {
		return ErrNotFound
	}
	existing.Status = r.Status
	existing.Vendor = r.Vendor
	existing.Subtotal = r.Subtotal
	existing.Tax = r.Tax
	existing.Tip = r.Tip
	existing.Items = append([]core.ReceiptItem(nil), r.Items...)
	m.receipts[r.ID] = existing
	return nil
}
