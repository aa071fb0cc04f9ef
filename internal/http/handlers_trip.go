package http

import (
	"log/slog"
	"net/http"

	"divvy/internal/core"
	"divvy/internal/services"
)

type tripOut struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Currency  string `json:"currency"`
	CreatedAt string `json:"created_at"`
}

func outTrip(t *core.Trip) tripOut {
	return tripOut{ID: t.ID, Name: t.Name, Currency: t.Currency, CreatedAt: outTime(t.CreatedAt)}
}

func (s *Server) handleCreateTrip(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Name     string `json:"name"`
		Currency string `json:"currency"`
	}
	if err := DecodeJSONBody(r, &in); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	trip, err := s.trips.CreateTrip(r.Context(), sanitizeInput(in.Name), sanitizeInput(in.Currency))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(outTrip(trip)).Write(w)
}

func (s *Server) handleGetTrip(w http.ResponseWriter, r *http.Request) {
	trip, err := s.trips.GetTrip(r.Context(), r.PathValue("tripID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	NewJSONResponse().Body(outTrip(trip)).Write(w)
}

type memberOut struct {
	ID          string `json:"id"`
	TripID      string `json:"trip_id"`
	DisplayName string `json:"display_name"`
}

func outMember(m core.Member) memberOut {
	return memberOut{ID: m.ID, TripID: m.TripID, DisplayName: m.DisplayName}
}

func (s *Server) handleAddMember(w http.ResponseWriter, r *http.Request) {
	var in struct {
		DisplayName string `json:"display_name"`
	}
	if err := DecodeJSONBody(r, &in); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	tripID := r.PathValue("tripID")
	member, err := s.trips.AddMember(r.Context(), tripID, sanitizeInput(in.DisplayName))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	// A new member changes the balance row set even before any expense.
	s.invalidateBalances(tripID)
	NewJSONResponse().Status(http.StatusCreated).Body(outMember(*member)).Write(w)
}

func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := s.trips.ListMembers(r.Context(), r.PathValue("tripID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	out := make([]memberOut, 0, len(members))
	for _, m := range members {
		out = append(out, outMember(m))
	}
	NewJSONResponse().Body(out).Write(w)
}

// expenseIn is the JSON expense creation payload. Amounts are decimal
// strings; allocations are optional and default to an even split.
type expenseIn struct {
	Description string `json:"description"`
	Amount      string `json:"amount"`
	Tax         string `json:"tax,omitempty"`
	Tip         string `json:"tip,omitempty"`
	SplitExtras bool   `json:"split_extras,omitempty"`
	PaidBy      string `json:"paid_by"`
	SharedWith  []string `json:"shared_with"`
	Allocations []struct {
		MemberID string `json:"member_id"`
		Amount   string `json:"amount"`
	} `json:"allocations,omitempty"`
	ReceiptID string `json:"receipt_id,omitempty"`
}

func (in expenseIn) toInput() (services.ExpenseInput, error) {
	total, err := ParseAmount(in.Amount)
	if err != nil {
		return services.ExpenseInput{}, err
	}
	tax, err := ParseOptionalAmount(in.Tax)
	if err != nil {
		return services.ExpenseInput{}, err
	}
	tip, err := ParseOptionalAmount(in.Tip)
	if err != nil {
		return services.ExpenseInput{}, err
	}

	input := services.ExpenseInput{
		Description: sanitizeInput(in.Description),
		Total:       total,
		Tax:         tax,
		Tip:         tip,
		SplitExtras: in.SplitExtras,
		PaidBy:      in.PaidBy,
		SharedWith:  in.SharedWith,
		ReceiptID:   in.ReceiptID,
	}
	for _, a := range in.Allocations {
		amount, err := ParseOptionalAmount(a.Amount)
		if err != nil {
			return services.ExpenseInput{}, err
		}
		input.Allocations = append(input.Allocations, core.Allocation{
			MemberID: a.MemberID,
			Amount:   amount,
		})
	}
	return input, nil
}

type allocationOut struct {
	MemberID string   `json:"member_id"`
	Amount   moneyOut `json:"amount"`
}

type expenseOut struct {
	ID          string          `json:"id"`
	TripID      string          `json:"trip_id"`
	Description string          `json:"description"`
	Total       moneyOut        `json:"total"`
	Currency    string          `json:"currency"`
	Tax         moneyOut        `json:"tax"`
	Tip         moneyOut        `json:"tip"`
	PaidBy      string          `json:"paid_by"`
	SharedWith  []string        `json:"shared_with"`
	Allocations []allocationOut `json:"allocations"`
	ReceiptID   string          `json:"receipt_id,omitempty"`
	CreatedAt   string          `json:"created_at"`
}

func outExpense(e core.Expense) expenseOut {
	out := expenseOut{
		ID:          e.ID,
		TripID:      e.TripID,
		Description: e.Description,
		Total:       outMoney(e.Total),
		Currency:    e.Currency,
		Tax:         outMoney(e.Tax),
		Tip:         outMoney(e.Tip),
		PaidBy:      e.PaidBy,
		SharedWith:  e.SharedWith,
		ReceiptID:   e.ReceiptID,
		CreatedAt:   outTime(e.CreatedAt),
	}
	for _, a := range e.Allocations {
		out.Allocations = append(out.Allocations, allocationOut{MemberID: a.MemberID, Amount: outMoney(a.Amount)})
	}
	return out
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	tripID := r.PathValue("tripID")

	var in expenseIn
	if err := DecodeJSONBody(r, &in); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	input, err := in.toInput()
	if err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}

	expense, err := s.trips.CreateExpense(r.Context(), tripID, input)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	s.invalidateBalances(tripID)
	NewJSONResponse().Status(http.StatusCreated).Body(outExpense(*expense)).Write(w)
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	expenses, err := s.trips.ListExpenses(r.Context(), r.PathValue("tripID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	out := make([]expenseOut, 0, len(expenses))
	for _, e := range expenses {
		out = append(out, outExpense(e))
	}
	NewJSONResponse().Body(out).Write(w)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	tripID := r.PathValue("tripID")
	if err := s.trips.DeleteExpense(r.Context(), tripID, r.PathValue("expenseID")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.invalidateBalances(tripID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePreviewAllocations(w http.ResponseWriter, r *http.Request) {
	var in expenseIn
	if err := DecodeJSONBody(r, &in); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	input, err := in.toInput()
	if err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}

	result, err := s.trips.PreviewAllocations(r.Context(), r.PathValue("tripID"), input)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	type shareOut struct {
		MemberID string   `json:"member_id"`
		Base     moneyOut `json:"base"`
		Extra    moneyOut `json:"extra"`
		Total    moneyOut `json:"total"`
	}
	out := struct {
		Shares    []shareOut `json:"shares"`
		Allocated moneyOut   `json:"allocated"`
		Delta     moneyOut   `json:"delta"`
	}{
		Allocated: outMoney(result.Allocated),
		Delta:     outMoney(result.Delta),
	}
	for _, sh := range result.Shares {
		out.Shares = append(out.Shares, shareOut{
			MemberID: sh.MemberID,
			Base:     outMoney(sh.Base),
			Extra:    outMoney(sh.Extra),
			Total:    outMoney(sh.Total),
		})
	}
	NewJSONResponse().Body(out).Write(w)
}

type settlementOut struct {
	ID          string   `json:"id"`
	TripID      string   `json:"trip_id"`
	FromMember  string   `json:"from_member"`
	ToMember    string   `json:"to_member"`
	Amount      moneyOut `json:"amount"`
	Note        string   `json:"note,omitempty"`
	CreatedAt   string   `json:"created_at"`
	ConfirmedAt *string  `json:"confirmed_at,omitempty"`
}

func outSettlement(st core.Settlement) settlementOut {
	return settlementOut{
		ID:          st.ID,
		TripID:      st.TripID,
		FromMember:  st.FromMember,
		ToMember:    st.ToMember,
		Amount:      outMoney(st.Amount),
		Note:        st.Note,
		CreatedAt:   outTime(st.CreatedAt),
		ConfirmedAt: outTimePtr(st.ConfirmedAt),
	}
}

func (s *Server) handleCreateSettlement(w http.ResponseWriter, r *http.Request) {
	tripID := r.PathValue("tripID")

	var in struct {
		FromMember string `json:"from_member"`
		ToMember   string `json:"to_member"`
		Amount     string `json:"amount"`
		Note       string `json:"note,omitempty"`
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

	settlement, err := s.trips.CreateSettlement(r.Context(), tripID, in.FromMember, in.ToMember, amount, sanitizeInput(in.Note))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(outSettlement(*settlement)).Write(w)
}

func (s *Server) handleListSettlements(w http.ResponseWriter, r *http.Request) {
	settlements, err := s.trips.ListSettlements(r.Context(), r.PathValue("tripID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	out := make([]settlementOut, 0, len(settlements))
	for _, st := range settlements {
		out = append(out, outSettlement(st))
	}
	NewJSONResponse().Body(out).Write(w)
}

func (s *Server) handleConfirmSettlement(w http.ResponseWriter, r *http.Request) {
	tripID := r.PathValue("tripID")
	if err := s.trips.ConfirmSettlement(r.Context(), tripID, r.PathValue("settlementID")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.invalidateBalances(tripID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteSettlement(w http.ResponseWriter, r *http.Request) {
	tripID := r.PathValue("tripID")
	if err := s.trips.DeleteSettlement(r.Context(), tripID, r.PathValue("settlementID")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.invalidateBalances(tripID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	tripID := r.PathValue("tripID")

	rows, found := s.balancesCache.Get(tripID)
	if found {
		slog.DebugContext(r.Context(), "Balances cache hit", "trip_id", tripID)
	} else {
		var err error
		rows, err = s.trips.Balances(r.Context(), tripID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		s.balancesCache.Set(tripID, rows)
	}

	type balanceOut struct {
		MemberID    string   `json:"member_id"`
		DisplayName string   `json:"display_name"`
		Amount      moneyOut `json:"amount"`
	}
	out := make([]balanceOut, 0, len(rows))
	for _, row := range rows {
		out = append(out, balanceOut{
			MemberID:    row.MemberID,
			DisplayName: row.DisplayName,
			Amount:      outMoney(row.Amount),
		})
	}
	NewJSONResponse().Body(out).Write(w)
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	suggestions, err := s.trips.SuggestSettlements(r.Context(), r.PathValue("tripID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	type suggestionOut struct {
		FromMember string   `json:"from_member"`
		ToMember   string   `json:"to_member"`
		Amount     moneyOut `json:"amount"`
	}
	out := make([]suggestionOut, 0, len(suggestions))
	for _, sg := range suggestions {
		out = append(out, suggestionOut{
			FromMember: sg.FromMember,
			ToMember:   sg.ToMember,
			Amount:     outMoney(sg.Amount),
		})
	}
	NewJSONResponse().Body(out).Write(w)
}

type receiptOut struct {
	ID        string   `json:"id"`
	TripID    string   `json:"trip_id"`
	FileName  string   `json:"file_name"`
	Status    string   `json:"status"`
	Vendor    string   `json:"vendor,omitempty"`
	Subtotal  moneyOut `json:"subtotal"`
	Tax       moneyOut `json:"tax"`
	Tip       moneyOut `json:"tip"`
	Items     []struct {
		Description string   `json:"description"`
		Amount      moneyOut `json:"amount"`
	} `json:"items,omitempty"`
	CreatedAt string `json:"created_at"`
}

func outReceipt(rc *core.Receipt) receiptOut {
	out := receiptOut{
		ID:        rc.ID,
		TripID:    rc.TripID,
		FileName:  rc.FileName,
		Status:    string(rc.Status),
		Vendor:    rc.Vendor,
		Subtotal:  outMoney(rc.Subtotal),
		Tax:       outMoney(rc.Tax),
		Tip:       outMoney(rc.Tip),
		CreatedAt: outTime(rc.CreatedAt),
	}
	for _, item := range rc.Items {
		out.Items = append(out.Items, struct {
			Description string   `json:"description"`
			Amount      moneyOut `json:"amount"`
		}{item.Description, outMoney(item.Amount)})
	}
	return out
}

func (s *Server) handleUploadReceipt(w http.ResponseWriter, r *http.Request) {
	var in struct {
		FileName string `json:"file_name"`
	}
	if err := DecodeJSONBody(r, &in); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	receipt, err := s.receipts.UploadReceipt(r.Context(), r.PathValue("tripID"), sanitizeInput(in.FileName))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusAccepted).Body(outReceipt(receipt)).Write(w)
}

func (s *Server) handleGetReceipt(w http.ResponseWriter, r *http.Request) {
	receipt, err := s.receipts.GetReceipt(r.Context(), r.PathValue("receiptID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	NewJSONResponse().Body(outReceipt(receipt)).Write(w)
}
