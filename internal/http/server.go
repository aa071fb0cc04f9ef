// Package http exposes the trip and ledger services as a JSON API.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"divvy/internal/cache"
	"divvy/internal/core"
	"divvy/internal/middleware/ratelimit"
	"divvy/internal/middleware/security"
	"divvy/internal/middleware/trace"
	"divvy/internal/services"
	"divvy/internal/storage"
)

type Server struct {
	http.Server

	trips     *services.TripService
	ledger    *services.LedgerService
	receipts  *services.ReceiptService
	bootstrap *services.Bootstrapper
	store     storage.Store

	limiter *ratelimit.Limiter
	tracer  *trace.Middleware

	// Derived reads are cached per trip and invalidated on every write that
	// can move a balance.
	balancesCache *cache.LRUCache[[]core.BalanceRow]
	summaryCache  *cache.LRUCache[core.LedgerReport]
	cacheManager  *cache.Manager

	shutdownOnce sync.Once
}

// Config holds server construction options
type Config struct {
	Addr               string
	RateLimitPerMinute int
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(cfg Config, trips *services.TripService, ledger *services.LedgerService, receipts *services.ReceiptService, bootstrap *services.Bootstrapper, store storage.Store) *Server {
	mux := http.NewServeMux()

	s := &Server{
		trips:         trips,
		ledger:        ledger,
		receipts:      receipts,
		bootstrap:     bootstrap,
		store:         store,
		tracer:        trace.NewMiddleware(clientIP),
		balancesCache: cache.NewLRUCache[[]core.BalanceRow](100, 5*time.Minute),
		summaryCache:  cache.NewLRUCache[core.LedgerReport](1, time.Minute),
		cacheManager:  cache.NewManager(),
	}

	if cfg.RateLimitPerMinute > 0 {
		s.limiter = ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: cfg.RateLimitPerMinute,
		})
	}

	s.cacheManager.Register(s.balancesCache)
	s.cacheManager.Register(s.summaryCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("POST /trips", s.handleCreateTrip)
	mux.HandleFunc("GET /trips/{tripID}", s.handleGetTrip)
	mux.HandleFunc("POST /trips/{tripID}/members", s.handleAddMember)
	mux.HandleFunc("GET /trips/{tripID}/members", s.handleListMembers)

	mux.HandleFunc("POST /trips/{tripID}/expenses", s.handleCreateExpense)
	mux.HandleFunc("GET /trips/{tripID}/expenses", s.handleListExpenses)
	mux.HandleFunc("DELETE /trips/{tripID}/expenses/{expenseID}", s.handleDeleteExpense)
	mux.HandleFunc("POST /trips/{tripID}/allocations/preview", s.handlePreviewAllocations)

	mux.HandleFunc("POST /trips/{tripID}/settlements", s.handleCreateSettlement)
	mux.HandleFunc("GET /trips/{tripID}/settlements", s.handleListSettlements)
	mux.HandleFunc("POST /trips/{tripID}/settlements/{settlementID}/confirm", s.handleConfirmSettlement)
	mux.HandleFunc("DELETE /trips/{tripID}/settlements/{settlementID}", s.handleDeleteSettlement)

	mux.HandleFunc("GET /trips/{tripID}/balances", s.handleBalances)
	mux.HandleFunc("GET /trips/{tripID}/suggestions", s.handleSuggestions)

	mux.HandleFunc("POST /trips/{tripID}/receipts", s.handleUploadReceipt)
	mux.HandleFunc("GET /receipts/{receiptID}", s.handleGetReceipt)

	mux.HandleFunc("POST /ledger/groups", s.handleCreateGroup)
	mux.HandleFunc("GET /ledger/groups", s.handleListGroups)
	mux.HandleFunc("PATCH /ledger/groups/{groupID}", s.handleUpdateGroup)

	mux.HandleFunc("POST /ledger/entries", s.handleCreateEntry)
	mux.HandleFunc("GET /ledger/entries", s.handleListEntries)
	mux.HandleFunc("PATCH /ledger/entries/{entryID}", s.handleReassignEntry)
	mux.HandleFunc("DELETE /ledger/entries/{entryID}", s.handleDeleteEntry)

	mux.HandleFunc("POST /ledger/transfers", s.handleCreateTransfer)
	mux.HandleFunc("GET /ledger/transfers", s.handleListTransfers)
	mux.HandleFunc("GET /ledger/summary", s.handleSummary)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	var handler http.Handler = mux
	handler = s.rateLimitMiddleware(handler)
	handler = headers.Middleware(handler)
	handler = s.tracer.Middleware(handler)

	s.Server.Addr = cfg.Addr
	s.Server.Handler = handler
	s.Server.ReadHeaderTimeout = 10 * time.Second
	return s
}

// rateLimitMiddleware throttles mutating requests per client.
func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil {
			switch r.Method {
			case http.MethodPost, http.MethodPatch, http.MethodDelete:
				if !s.limiter.Allow(clientIP(r)) {
					slog.WarnContext(r.Context(), "Rate limit exceeded",
						"client_ip", clientIP(r), "method", r.Method, "path", r.URL.Path)
					w.Header().Set("Retry-After", "60")
					TooManyRequestsError().Write(w)
					return
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		if s.limiter != nil {
			s.limiter.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	// Readiness means storage answers, not just that the process is up.
	if _, err := s.store.ListGroups(r.Context()); err != nil {
		slog.ErrorContext(r.Context(), "Readiness check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("storage unavailable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) invalidateBalances(tripID string) {
	s.balancesCache.Delete(tripID)
}

func (s *Server) invalidateSummary() {
	s.summaryCache.Delete("summary")
}
