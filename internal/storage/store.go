// Package storage persists trips, expenses, settlements, and the multi-group
// ledger. It stores records only; balances and summaries are always derived
// from the full record set at read time and never written back.
package storage

import (
	"context"
	"errors"
	"time"

	"divvy/internal/core"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrAlreadyExists is returned by conditional creates when the id is
	// already taken. Duplicate-id conflicts are resolved here, at the
	// persistence boundary, not in the accounting core.
	ErrAlreadyExists = errors.New("record already exists")
)

// Store is the persistence interface shared by the SQLite and in-memory
// backends. All Create methods are conditional writes: they fail with
// ErrAlreadyExists instead of overwriting.
type Store interface {
	CreateTrip(ctx context.Context, t *core.Trip) error
	GetTrip(ctx context.Context, id string) (*core.Trip, error)

	AddMember(ctx context.Context, m *core.Member) error
	ListMembers(ctx context.Context, tripID string) ([]core.Member, error)

	CreateExpense(ctx context.Context, e *core.Expense) error
	ListExpenses(ctx context.Context, tripID string) ([]core.Expense, error)
	DeleteExpense(ctx context.Context, tripID, id string) error

	CreateSettlement(ctx context.Context, s *core.Settlement) error
	ConfirmSettlement(ctx context.Context, tripID, id string, when time.Time) error
	DeleteSettlement(ctx context.Context, tripID, id string) error
	ListSettlements(ctx context.Context, tripID string) ([]core.Settlement, error)

	CreateGroup(ctx context.Context, g *core.Group) error
	// EnsureGroup creates the group only if the id is absent. It is the
	// storage-level safety net under the bootstrap seeding guard.
	EnsureGroup(ctx context.Context, g *core.Group) error
	SetGroupActive(ctx context.Context, id string, active bool) error
	ListGroups(ctx context.Context) ([]core.Group, error)

	CreateEntry(ctx context.Context, e *core.LedgerEntry) error
	ReassignEntry(ctx context.Context, id, groupID string) error
	DeleteEntry(ctx context.Context, id string) error
	ListEntries(ctx context.Context) ([]core.LedgerEntry, error)

	CreateTransfer(ctx context.Context, t *core.Transfer) error
	ListTransfers(ctx context.Context) ([]core.Transfer, error)

	CreateReceipt(ctx context.Context, r *core.Receipt) error
	GetReceipt(ctx context.Context, id string) (*core.Receipt, error)
	// ListPendingReceipts returns up to limit receipts still awaiting
	// extraction, oldest first. Backup path for lost broker messages.
	ListPendingReceipts(ctx context.Context, limit int) ([]core.Receipt, error)
	// UpdateReceiptExtraction records the extractor's structured fields and
	// flips the receipt status. Financial records are never mutated this way;
	// receipts are metadata feeding later expense creation.
	UpdateReceiptExtraction(ctx context.Context, r *core.Receipt) error

	Close() error
}
