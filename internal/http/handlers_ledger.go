package http

import (
	"log/slog"
	"net/http"
	"time"

	"divvy/internal/core"
	"divvy/internal/services"
)

type groupOut struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Active    bool   `json:"active"`
	CreatedAt string `json:"created_at"`
}

func outGroup(g core.Group) groupOut {
	return groupOut{ID: g.ID, Name: g.Name, Active: g.Active, CreatedAt: outTime(g.CreatedAt)}
}

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Name string `json:"name"`
	}
	if err := DecodeJSONBody(r, &in); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	group, err := s.ledger.CreateGroup(r.Context(), sanitizeInput(in.Name))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.invalidateSummary()
	NewJSONResponse().Status(http.StatusCreated).Body(outGroup(*group)).Write(w)
}

func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := s.ledger.ListGroups(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	out := make([]groupOut, 0, len(groups))
	for _, g := range groups {
		out = append(out, outGroup(g))
	}
	NewJSONResponse().Body(out).Write(w)
}

func (s *Server) handleUpdateGroup(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Active *bool `json:"active"`
	}
	if err := DecodeJSONBody(r, &in); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	if in.Active == nil {
		BadRequestError("missing field: active").Write(w)
		return
	}

	if err := s.ledger.SetGroupActive(r.Context(), r.PathValue("groupID"), *in.Active); err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.invalidateSummary()
	w.WriteHeader(http.StatusNoContent)
}

type entryOut struct {
	ID          string   `json:"id"`
	Type        string   `json:"type"`
	Amount      moneyOut `json:"amount"`
	GroupID     string   `json:"group_id,omitempty"`
	Description string   `json:"description"`
	OccurredAt  string   `json:"occurred_at"`
	CreatedAt   string   `json:"created_at"`
}

func outEntry(e core.LedgerEntry) entryOut {
	return entryOut{
		ID:          e.ID,
		Type:        string(e.Type),
		Amount:      outMoney(e.Amount),
		GroupID:     e.GroupID,
		Description: e.Description,
		OccurredAt:  outTime(e.OccurredAt),
		CreatedAt:   outTime(e.CreatedAt),
	}
}

func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Type        string `json:"type"`
		Amount      string `json:"amount"`
		GroupID     string `json:"group_id,omitempty"`
		Description string `json:"description"`
		OccurredAt  string `json:"occurred_at,omitempty"`
	}
	if err := DecodeJSONBody(r, &in); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	amount, err := ParseAmount(in.Amount)
	if err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}

	input := services.EntryInput{
		Type:        core.EntryType(in.Type),
		Amount:      amount,
		GroupID:     in.GroupID,
		Description: sanitizeInput(in.Description),
	}
	if in.OccurredAt != "" {
		occurredAt, err := time.Parse(time.RFC3339, in.OccurredAt)
		if err != nil {
			UnprocessableEntityError("occurred_at must be RFC 3339").Write(w)
			return
		}
		input.OccurredAt = occurredAt
	}

	entry, err := s.ledger.CreateEntry(r.Context(), input)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.invalidateSummary()
	NewJSONResponse().Status(http.StatusCreated).Body(outEntry(*entry)).Write(w)
}

func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := s.ledger.ListEntries(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	out := make([]entryOut, 0, len(entries))
	for _, e := range entries {
		out = append(out, outEntry(e))
	}
	NewJSONResponse().Body(out).Write(w)
}

func (s *Server) handleReassignEntry(w http.ResponseWriter, r *http.Request) {
	var in struct {
		GroupID string `json:"group_id"`
	}
	if err := DecodeJSONBody(r, &in); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	if err := s.ledger.ReassignEntry(r.Context(), r.PathValue("entryID"), in.GroupID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.invalidateSummary()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.DeleteEntry(r.Context(), r.PathValue("entryID")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.invalidateSummary()
	w.WriteHeader(http.StatusNoContent)
}

type transferOut struct {
	ID          string   `json:"id"`
	Amount      moneyOut `json:"amount"`
	FromGroupID string   `json:"from_group_id,omitempty"`
	ToGroupID   string   `json:"to_group_id,omitempty"`
	Note        string   `json:"note,omitempty"`
	CreatedAt   string   `json:"created_at"`
}

func outTransfer(t core.Transfer) transferOut {
	return transferOut{
		ID:          t.ID,
		Amount:      outMoney(t.Amount),
		FromGroupID: t.FromGroupID,
		ToGroupID:   t.ToGroupID,
		Note:        t.Note,
		CreatedAt:   outTime(t.CreatedAt),
	}
}

func (s *Server) handleCreateTransfer(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Amount      string `json:"amount"`
		FromGroupID string `json:"from_group_id,omitempty"`
		ToGroupID   string `json:"to_group_id,omitempty"`
		Note        string `json:"note,omitempty"`
	}
	if err := DecodeJSONBody(r, &in); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	amount, err := ParseAmount(in.Amount)
	if err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}

	transfer, err := s.ledger.CreateTransfer(r.Context(), amount, in.FromGroupID, in.ToGroupID, sanitizeInput(in.Note))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.invalidateSummary()
	NewJSONResponse().Status(http.StatusCreated).Body(outTransfer(*transfer)).Write(w)
}

func (s *Server) handleListTransfers(w http.ResponseWriter, r *http.Request) {
	transfers, err := s.ledger.ListTransfers(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	out := make([]transferOut, 0, len(transfers))
	for _, t := range transfers {
		out = append(out, outTransfer(t))
	}
	NewJSONResponse().Body(out).Write(w)
}

type bucketOut struct {
	GroupID        string   `json:"group_id,omitempty"`
	Name           string   `json:"name,omitempty"`
	Donations      moneyOut `json:"donations"`
	Income         moneyOut `json:"income"`
	Expenses       moneyOut `json:"expenses"`
	Reimbursements moneyOut `json:"reimbursements"`
	TransfersIn    moneyOut `json:"transfers_in"`
	TransfersOut   moneyOut `json:"transfers_out"`
	Net            moneyOut `json:"net"`
}

func outBucket(b core.BucketSummary) bucketOut {
	return bucketOut{
		GroupID:        b.GroupID,
		Name:           b.Name,
		Donations:      outMoney(b.Donations),
		Income:         outMoney(b.Income),
		Expenses:       outMoney(b.Expenses),
		Reimbursements: outMoney(b.Reimbursements),
		TransfersIn:    outMoney(b.TransfersIn),
		TransfersOut:   outMoney(b.TransfersOut),
		Net:            outMoney(b.Net),
	}
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	// The seeded default group must exist before the first summary render.
	if err := s.bootstrap.EnsureDefaults(r.Context()); err != nil {
		writeServiceError(w, r, err)
		return
	}

	report, found := s.summaryCache.Get("summary")
	if found {
		slog.DebugContext(r.Context(), "Summary cache hit")
	} else {
		var err error
		report, err = s.ledger.Summary(r.Context())
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		s.summaryCache.Set("summary", report)
	}

	out := struct {
		Totals      bucketOut   `json:"totals"`
		Groups      []bucketOut `json:"groups"`
		Unallocated bucketOut   `json:"unallocated"`
	}{
		Totals:      outBucket(report.Totals),
		Unallocated: outBucket(report.Unallocated),
	}
	for _, g := range report.Groups {
		out.Groups = append(out.Groups, outBucket(g))
	}
	NewJSONResponse().Body(out).Write(w)
}
