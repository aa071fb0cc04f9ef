package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"divvy/internal/core"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Timestamps are stored as RFC 3339 UTC strings; fixed-width formatting keeps
// lexicographic order equal to chronological order.
func fmtTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// conditionalInsert runs an INSERT ... ON CONFLICT DO NOTHING statement and
// maps a no-op to ErrAlreadyExists. This is the duplicate-id safety net for
// every create path.
func (r *SQLiteRepository) conditionalInsert(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAlreadyExists
	}
	return nil
}

func (r *SQLiteRepository) CreateTrip(ctx context.Context, t *core.Trip) error {
	err := r.conditionalInsert(ctx,
		`INSERT INTO trips (id, name, currency, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		t.ID, t.Name, t.Currency, fmtTime(t.CreatedAt))
	if err != nil {
		return fmt.Errorf("create trip: %w", err)
	}

	slog.InfoContext(ctx, "Trip saved", "id", t.ID, "name", t.Name, "currency", t.Currency)
	return nil
}

func (r *SQLiteRepository) GetTrip(ctx context.Context, id string) (*core.Trip, error) {
	var t core.Trip
	var createdAt string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, currency, created_at FROM trips WHERE id = ?`, id).
		Scan(&t.ID, &t.Name, &t.Currency, &createdAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get trip: %w", err)
	}
	t.CreatedAt = parseTime(createdAt)
	return &t, nil
}

func (r *SQLiteRepository) AddMember(ctx context.Context, m *core.Member) error {
	err := r.conditionalInsert(ctx,
		`INSERT INTO members (id, trip_id, display_name) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		m.ID, m.TripID, m.DisplayName)
	if err != nil {
		return fmt.Errorf("add member: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListMembers(ctx context.Context, tripID string) ([]core.Member, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, trip_id, display_name FROM members WHERE trip_id = ? ORDER BY rowid`, tripID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []core.Member
	for rows.Next() {
		var m core.Member
		if err := rows.Scan(&m.ID, &m.TripID, &m.DisplayName); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (r *SQLiteRepository) CreateExpense(ctx context.Context, e *core.Expense) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin expense tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO expenses (id, trip_id, description, total_cents, currency, tax_cents, tip_cents, paid_by, receipt_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?) ON CONFLICT(id) DO NOTHING`,
		e.ID, e.TripID, e.Description, e.Total.Cents, e.Currency,
		e.Tax.Cents, e.Tip.Cents, e.PaidBy, nullable(e.ReceiptID), fmtTime(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert expense: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrAlreadyExists
	}

	for i, id := range e.SharedWith {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO expense_shares (expense_id, member_id, position) VALUES (?, ?, ?)`,
			e.ID, id, i); err != nil {
			return fmt.Errorf("insert expense share: %w", err)
		}
	}
	for i, a := range e.Allocations {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO expense_allocations (expense_id, member_id, amount_cents, position) VALUES (?, ?, ?, ?)`,
			e.ID, a.MemberID, a.Amount.Cents, i); err != nil {
			return fmt.Errorf("insert allocation: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved",
		"id", e.ID,
		"trip_id", e.TripID,
		"description", e.Description,
		"total_cents", e.Total.Cents,
		"allocations", len(e.Allocations))
	return nil
}

func (r *SQLiteRepository) ListExpenses(ctx context.Context, tripID string) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, trip_id, description, total_cents, currency, tax_cents, tip_cents, paid_by, receipt_id, created_at
		 FROM expenses WHERE trip_id = ? ORDER BY created_at, id`, tripID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []core.Expense
	index := make(map[string]int)
	for rows.Next() {
		var e core.Expense
		var receiptID sql.NullString
		var createdAt string
		if err := rows.Scan(&e.ID, &e.TripID, &e.Description, &e.Total.Cents, &e.Currency,
			&e.Tax.Cents, &e.Tip.Cents, &e.PaidBy, &receiptID, &createdAt); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		e.ReceiptID = receiptID.String
		e.CreatedAt = parseTime(createdAt)
		index[e.ID] = len(expenses)
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	shareRows, err := r.db.QueryContext(ctx,
		`SELECT s.expense_id, s.member_id FROM expense_shares s
		 JOIN expenses e ON e.id = s.expense_id
		 WHERE e.trip_id = ? ORDER BY s.expense_id, s.position`, tripID)
	if err != nil {
		return nil, fmt.Errorf("list expense shares: %w", err)
	}
	defer shareRows.Close()
	for shareRows.Next() {
		var expenseID, memberID string
		if err := shareRows.Scan(&expenseID, &memberID); err != nil {
			return nil, fmt.Errorf("scan expense share: %w", err)
		}
		if i, ok := index[expenseID]; ok {
			expenses[i].SharedWith = append(expenses[i].SharedWith, memberID)
		}
	}
	if err := shareRows.Err(); err != nil {
		return nil, err
	}

	allocRows, err := r.db.QueryContext(ctx,
		`SELECT a.expense_id, a.member_id, a.amount_cents FROM expense_allocations a
		 JOIN expenses e ON e.id = a.expense_id
		 WHERE e.trip_id = ? ORDER BY a.expense_id, a.position`, tripID)
	if err != nil {
		return nil, fmt.Errorf("list allocations: %w", err)
	}
	defer allocRows.Close()
	for allocRows.Next() {
		var expenseID, memberID string
		var cents int64
		if err := allocRows.Scan(&expenseID, &memberID, &cents); err != nil {
			return nil, fmt.Errorf("scan allocation: %w", err)
		}
		if i, ok := index[expenseID]; ok {
			expenses[i].Allocations = append(expenses[i].Allocations,
				core.Allocation{MemberID: memberID, Amount: core.Money{Cents: cents}})
		}
	}
	return expenses, allocRows.Err()
}

func (r *SQLiteRepository) DeleteExpense(ctx context.Context, tripID, id string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM expenses WHERE id = ? AND trip_id = ?`, id, tripID)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) CreateSettlement(ctx context.Context, s *core.Settlement) error {
	err := r.conditionalInsert(ctx,
		`INSERT INTO settlements (id, trip_id, from_member, to_member, amount_cents, note, created_at, confirmed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, NULL) ON CONFLICT(id) DO NOTHING`,
		s.ID, s.TripID, s.FromMember, s.ToMember, s.Amount.Cents, s.Note, fmtTime(s.CreatedAt))
	if err != nil {
		return fmt.Errorf("create settlement: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ConfirmSettlement(ctx context.Context, tripID, id string, when time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE settlements SET confirmed_at = ? WHERE id = ? AND trip_id = ? AND confirmed_at IS NULL`,
		fmtTime(when), id, tripID)
	if err != nil {
		return fmt.Errorf("confirm settlement: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	slog.InfoContext(ctx, "Settlement confirmed", "id", id, "trip_id", tripID)
	return nil
}

func (r *SQLiteRepository) DeleteSettlement(ctx context.Context, tripID, id string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM settlements WHERE id = ? AND trip_id = ?`, id, tripID)
	if err != nil {
		return fmt.Errorf("delete settlement: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) ListSettlements(ctx context.Context, tripID string) ([]core.Settlement, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, trip_id, from_member, to_member, amount_cents, note, created_at, confirmed_at
		 FROM settlements WHERE trip_id = ? ORDER BY created_at, id`, tripID)
	if err != nil {
		return nil, fmt.Errorf("list settlements: %w", err)
	}
	defer rows.Close()

	var settlements []core.Settlement
	for rows.Next() {
		var s core.Settlement
		var createdAt string
		var confirmedAt sql.NullString
		if err := rows.Scan(&s.ID, &s.TripID, &s.FromMember, &s.ToMember,
			&s.Amount.Cents, &s.Note, &createdAt, &confirmedAt); err != nil {
			return nil, fmt.Errorf("scan settlement: %w", err)
		}
		s.CreatedAt = parseTime(createdAt)
		if confirmedAt.Valid {
			t := parseTime(confirmedAt.String)
			s.ConfirmedAt = &t
		}
		settlements = append(settlements, s)
	}
	return settlements, rows.Err()
}

func (r *SQLiteRepository) CreateGroup(ctx context.Context, g *core.Group) error {
	err := r.conditionalInsert(ctx,
		`INSERT INTO ledger_groups (id, name, active, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		g.ID, g.Name, boolToInt(g.Active), fmtTime(g.CreatedAt))
	if err != nil {
		return fmt.Errorf("create group: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) EnsureGroup(ctx context.Context, g *core.Group) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO ledger_groups (id, name, active, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		g.ID, g.Name, boolToInt(g.Active), fmtTime(g.CreatedAt))
	if err != nil {
		return fmt.Errorf("ensure group: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) SetGroupActive(ctx context.Context, id string, active bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE ledger_groups SET active = ? WHERE id = ?`, boolToInt(active), id)
	if err != nil {
		return fmt.Errorf("set group active: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) ListGroups(ctx context.Context) ([]core.Group, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, active, created_at FROM ledger_groups ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	var groups []core.Group
	for rows.Next() {
		var g core.Group
		var active int
		var createdAt string
		if err := rows.Scan(&g.ID, &g.Name, &active, &createdAt); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		g.Active = active != 0
		g.CreatedAt = parseTime(createdAt)
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

func (r *SQLiteRepository) CreateEntry(ctx context.Context, e *core.LedgerEntry) error {
	err := r.conditionalInsert(ctx,
		`INSERT INTO ledger_entries (id, entry_type, amount_cents, group_id, description, occurred_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?) ON CONFLICT(id) DO NOTHING`,
		e.ID, string(e.Type), e.Amount.Cents, nullable(e.GroupID), e.Description,
		fmtTime(e.OccurredAt), fmtTime(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("create entry: %w", err)
	}
	return nil
}

// ReassignEntry moves an entry to another group (or to the pool when groupID
// is empty). Amount and type are immutable after creation.
func (r *SQLiteRepository) ReassignEntry(ctx context.Context, id, groupID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE ledger_entries SET group_id = ? WHERE id = ?`, nullable(groupID), id)
	if err != nil {
		return fmt.Errorf("reassign entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) DeleteEntry(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM ledger_entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) ListEntries(ctx context.Context) ([]core.LedgerEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, entry_type, amount_cents, group_id, description, occurred_at, created_at
		 FROM ledger_entries ORDER BY occurred_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []core.LedgerEntry
	for rows.Next() {
		var e core.LedgerEntry
		var entryType string
		var groupID sql.NullString
		var occurredAt, createdAt string
		if err := rows.Scan(&e.ID, &entryType, &e.Amount.Cents, &groupID,
			&e.Description, &occurredAt, &createdAt); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.Type = core.EntryType(entryType)
		e.GroupID = groupID.String
		e.OccurredAt = parseTime(occurredAt)
		e.CreatedAt = parseTime(createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *SQLiteRepository) CreateTransfer(ctx context.Context, t *core.Transfer) error {
	err := r.conditionalInsert(ctx,
		`INSERT INTO transfers (id, amount_cents, from_group_id, to_group_id, note, created_at)
		 VALUES (?, ?, ?, ?, ?, ?) ON CONFLICT(id) DO NOTHING`,
		t.ID, t.Amount.Cents, nullable(t.FromGroupID), nullable(t.ToGroupID), t.Note, fmtTime(t.CreatedAt))
	if err != nil {
		return fmt.Errorf("create transfer: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListTransfers(ctx context.Context) ([]core.Transfer, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, amount_cents, from_group_id, to_group_id, note, created_at
		 FROM transfers ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	defer rows.Close()

	var transfers []core.Transfer
	for rows.Next() {
		var t core.Transfer
		var from, to sql.NullString
		var createdAt string
		if err := rows.Scan(&t.ID, &t.Amount.Cents, &from, &to, &t.Note, &createdAt); err != nil {
			return nil, fmt.Errorf("scan transfer: %w", err)
		}
		t.FromGroupID = from.String
		t.ToGroupID = to.String
		t.CreatedAt = parseTime(createdAt)
		transfers = append(transfers, t)
	}
	return transfers, rows.Err()
}

func (r *SQLiteRepository) CreateReceipt(ctx context.Context, rc *core.Receipt) error {
	items, err := json.Marshal(rc.Items)
	if err != nil {
		return fmt.Errorf("marshal receipt items: %w", err)
	}
	err = r.conditionalInsert(ctx,
		`INSERT INTO receipts (id, trip_id, file_name, status, vendor, subtotal_cents, tax_cents, tip_cents, items_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?) ON CONFLICT(id) DO NOTHING`,
		rc.ID, rc.TripID, rc.FileName, string(rc.Status), rc.Vendor,
		rc.Subtotal.Cents, rc.Tax.Cents, rc.Tip.Cents, string(items), fmtTime(rc.CreatedAt))
	if err != nil {
		return fmt.Errorf("create receipt: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetReceipt(ctx context.Context, id string) (*core.Receipt, error) {
	var rc core.Receipt
	var status, itemsJSON, createdAt string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, trip_id, file_name, status, vendor, subtotal_cents, tax_cents, tip_cents, items_json, created_at
		 FROM receipts WHERE id = ?`, id).
		Scan(&rc.ID, &rc.TripID, &rc.FileName, &status, &rc.Vendor,
			&rc.Subtotal.Cents, &rc.Tax.Cents, &rc.Tip.Cents, &itemsJSON, &createdAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get receipt: %w", err)
	}
	rc.Status = core.ReceiptStatus(status)
	rc.CreatedAt = parseTime(createdAt)
	if err := json.Unmarshal([]byte(itemsJSON), &rc.Items); err != nil {
		return nil, fmt.Errorf("unmarshal receipt items: %w", err)
	}
	return &rc, nil
}

func (r *SQLiteRepository) ListPendingReceipts(ctx context.Context, limit int) ([]core.Receipt, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, trip_id, file_name, status, vendor, subtotal_cents, tax_cents, tip_cents, items_json, created_at
		 FROM receipts WHERE status = ? ORDER BY created_at, id LIMIT ?`,
		string(core.ReceiptPending), limit)
	if err != nil {
		return nil, fmt.Errorf("list pending receipts: %w", err)
	}
	defer rows.Close()

	var receipts []core.Receipt
	for rows.Next() {
		var rc core.Receipt
		var status, itemsJSON, createdAt string
		if err := rows.Scan(&rc.ID, &rc.TripID, &rc.FileName, &status, &rc.Vendor,
			&rc.Subtotal.Cents, &rc.Tax.Cents, &rc.Tip.Cents, &itemsJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("scan receipt: %w", err)
		}
		rc.Status = core.ReceiptStatus(status)
		rc.CreatedAt = parseTime(createdAt)
		if err := json.Unmarshal([]byte(itemsJSON), &rc.Items); err != nil {
			return nil, fmt.Errorf("unmarshal receipt items: %w", err)
		}
		receipts = append(receipts, rc)
	}
	return receipts, rows.Err()
}

func (r *SQLiteRepository) UpdateReceiptExtraction(ctx context.Context, rc *core.Receipt) error {
	items, err := json.Marshal(rc.Items)
	if err != nil {
		return fmt.Errorf("marshal receipt items: %w", err)
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE receipts SET status = ?, vendor = ?, subtotal_cents = ?, tax_cents = ?, tip_cents = ?, items_json = ?
		 WHERE id = ?`,
		string(rc.Status), rc.Vendor, rc.Subtotal.Cents, rc.Tax.Cents, rc.Tip.Cents, string(items), rc.ID)
	if err != nil {
		return fmt.Errorf("update receipt: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	slog.InfoContext(ctx, "Receipt extraction saved", "id", rc.ID, "status", string(rc.Status), "vendor", rc.Vendor)
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
