package worker

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"divvy/internal/amqp"
	"divvy/internal/core"
	"divvy/internal/storage"
)

type fakeExtractor struct {
	result *Extraction
	err    error
	calls  int
}

func (f *fakeExtractor) Extract(ctx context.Context, r *core.Receipt) (*Extraction, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func pendingReceipt(t *testing.T, store storage.Store, id string) *core.Receipt {
	t.Helper()
	r := &core.Receipt{
		ID:        id,
		TripID:    "t1",
		FileName:  id + ".jpg",
		Status:    core.ReceiptPending,
		CreatedAt: time.Now(),
	}
	if err := store.CreateReceipt(context.Background(), r); err != nil {
		t.Fatalf("CreateReceipt failed: %v", err)
	}
	return r
}

func TestExtractWorker_HandleExtractMessage(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	pendingReceipt(t, store, "r1")

	ex := &fakeExtractor{result: &Extraction{
		Vendor:   "Trattoria",
		Subtotal: core.Money{Cents: 4500},
		Tax:      core.Money{Cents: 400},
		Items: []core.ReceiptItem{
			{Description: "pasta", Amount: core.Money{Cents: 4500}},
		},
	}}
	w := NewExtractWorker(store, ex, 10)

	if err := w.HandleExtractMessage(ctx, amqp.NewReceiptExtractMessage("r1", "t1")); err != nil {
		t.Fatalf("HandleExtractMessage failed: %v", err)
	}

	got, err := store.GetReceipt(ctx, "r1")
	if err != nil {
		t.Fatalf("GetReceipt failed: %v", err)
	}
	if got.Status != core.ReceiptExtracted {
		t.Fatalf("status = %q, want extracted", got.Status)
	}
	if got.Vendor != "Trattoria" || got.Subtotal.Cents != 4500 {
		t.Fatalf("extraction not saved: %+v", got)
	}

	// A redelivered message is a no-op.
	if err := w.HandleExtractMessage(ctx, amqp.NewReceiptExtractMessage("r1", "t1")); err != nil {
		t.Fatalf("redelivery should be a no-op, got %v", err)
	}
	if ex.calls != 1 {
		t.Fatalf("extractor called %d times, want 1", ex.calls)
	}
}

func TestExtractWorker_UnknownReceiptDropped(t *testing.T) {
	w := NewExtractWorker(storage.NewMemoryStore(), &fakeExtractor{}, 10)

	// Missing receipt must be acked (nil), not requeued forever.
	if err := w.HandleExtractMessage(context.Background(), amqp.NewReceiptExtractMessage("ghost", "t1")); err != nil {
		t.Fatalf("missing receipt should be dropped, got %v", err)
	}
}

func TestExtractWorker_UnreadableReceiptMarkedFailed(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	pendingReceipt(t, store, "r1")

	w := NewExtractWorker(store, &fakeExtractor{err: ErrUnreadableReceipt}, 10)
	if err := w.HandleExtractMessage(ctx, amqp.NewReceiptExtractMessage("r1", "t1")); err != nil {
		t.Fatalf("unreadable receipt should be acked, got %v", err)
	}

	got, _ := store.GetReceipt(ctx, "r1")
	if got.Status != core.ReceiptFailed {
		t.Fatalf("status = %q, want failed", got.Status)
	}
}

func TestExtractWorker_TransientErrorRequeues(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	pendingReceipt(t, store, "r1")

	w := NewExtractWorker(store, &fakeExtractor{err: errors.New("service timeout")}, 10)
	if err := w.HandleExtractMessage(ctx, amqp.NewReceiptExtractMessage("r1", "t1")); err == nil {
		t.Fatal("transient error should propagate for requeue")
	}

	got, _ := store.GetReceipt(ctx, "r1")
	if got.Status != core.ReceiptPending {
		t.Fatalf("status = %q, want still pending", got.Status)
	}
}

func TestExtractWorker_StartupCheck(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	pendingReceipt(t, store, "r1")
	pendingReceipt(t, store, "r2")

	ex := &fakeExtractor{result: &Extraction{Vendor: "Shop"}}
	w := NewExtractWorker(store, ex, 10)

	if err := w.StartupCheck(ctx); err != nil {
		t.Fatalf("StartupCheck failed: %v", err)
	}
	if ex.calls != 2 {
		t.Fatalf("extractor called %d times, want 2", ex.calls)
	}

	pending, err := store.ListPendingReceipts(ctx, 10)
	if err != nil {
		t.Fatalf("ListPendingReceipts failed: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected no pending receipts after startup check, got %d", len(pending))
	}
}

func TestHTTPExtractor_Extract(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		if req.URL.Path != "/extract" || req.Method != http.MethodPost {
			rw.WriteHeader(http.StatusNotFound)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		rw.Write([]byte(`{
			"vendor": "Cafe Roma",
			"subtotal_cents": 1850,
			"tax_cents": 150,
			"tip_cents": 200,
			"items": [{"description": "espresso", "amount_cents": 350}]
		}`))
	}))
	defer server.Close()

	ex := NewHTTPExtractor(server.URL)
	result, err := ex.Extract(context.Background(), &core.Receipt{ID: "r1", TripID: "t1", FileName: "cafe.jpg"})
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if result.Vendor != "Cafe Roma" || result.Subtotal.Cents != 1850 {
		t.Fatalf("unexpected extraction: %+v", result)
	}
	if len(result.Items) != 1 || result.Items[0].Amount.Cents != 350 {
		t.Fatalf("unexpected items: %+v", result.Items)
	}
}

func TestHTTPExtractor_UnreadableMapsToSentinel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		rw.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	ex := NewHTTPExtractor(server.URL)
	_, err := ex.Extract(context.Background(), &core.Receipt{ID: "r1"})
	if !errors.Is(err, ErrUnreadableReceipt) {
		t.Fatalf("expected ErrUnreadableReceipt, got %v", err)
	}
}

func TestHTTPExtractor_ServerErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		rw.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	ex := NewHTTPExtractor(server.URL)
	_, err := ex.Extract(context.Background(), &core.Receipt{ID: "r1"})
	if err == nil || errors.Is(err, ErrUnreadableReceipt) {
		t.Fatalf("5xx should be a transient error, got %v", err)
	}
}
