package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"financy/internal/log"
	"financy/internal/repo"
	"financy/internal/services"
)

// Deps are the collaborators the API serves.
type Deps struct {
	Store        repo.Store
	Dashboard    *services.DashboardService
	Installments *services.InstallmentService
	Timesheet    *services.TimesheetService
	Logger       *log.Logger
}

type Server struct {
	http.Server
	store        repo.Store
	dashboard    *services.DashboardService
	installments *services.InstallmentService
	timesheet    *services.TimesheetService
	logger       *log.Logger
	rateLimiter  *rateLimiter
	metrics      *securityMetrics
	now          func() time.Time

	shutdownOnce sync.Once
}

// NewServer registers the routes and returns a server ready to ListenAndServe.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	mux := http.NewServeMux()
	s := &Server{
		Server: http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		store:        deps.Store,
		dashboard:    deps.Dashboard,
		installments: deps.Installments,
		timesheet:    deps.Timesheet,
		logger:       logger.WithComponent(log.ComponentHTTP),
		rateLimiter:  newRateLimiter(60, time.Minute),
		metrics:      &securityMetrics{},
		now:          time.Now,
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	routes := map[string]http.HandlerFunc{
		"GET /api/dashboard": s.handleDashboard,

		"GET /api/accounts":      s.handleListAccounts,
		"POST /api/accounts":     s.handleCreateAccount,
		"GET /api/transactions":  s.handleListTransactions,
		"POST /api/transactions": s.handleCreateTransaction,

		"GET /api/cards":              s.handleListCards,
		"POST /api/cards":             s.handleCreateCard,
		"GET /api/cards/{id}/invoice": s.handleCardInvoice,
		"GET /api/cards/{id}/limit":   s.handleCardLimit,

		"POST /api/installments":              s.handleCreateInstallment,
		"GET /api/installments/{id}/schedule": s.handleSchedule,
		"GET /api/installments/{id}/pending":  s.handlePending,
		"POST /api/installments/{id}/confirm": s.handleConfirmNext,

		"GET /api/bills":  s.handleListBills,
		"POST /api/bills": s.handleCreateBill,

		"GET /api/time-entries":      s.handleTimeDay,
		"POST /api/time-entries":     s.handleSaveTimeEntry,
		"GET /api/time-entries/week": s.handleTimeWeek,
	}
	for pattern, h := range routes {
		mux.HandleFunc(pattern, s.withSecurityHeaders(h))
	}

	return s
}

// withSecurityHeaders adds security headers, request IDs, rate limiting on
// POST and request logging.
func (s *Server) withSecurityHeaders(next http.HandlerFunc) http.HandlerFunc {
	sl := log.NewStructuredLogger(s.logger)
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := extractClientIP(r)
		requestID := generateRequestID()

		ctx := log.NewContext(r.Context(), s.logger.With(log.FieldRequestID, requestID))
		r = r.WithContext(ctx)

		if isSuspicious(r, s.metrics) {
			s.logger.WarnContext(ctx, "Suspicious request",
				log.FieldClientIP, clientIP,
				log.FieldPath, r.URL.Path)
		}

		setSecurityHeaders(w.Header())
		w.Header().Set("X-Request-ID", requestID)

		if r.Method == http.MethodPost && !s.rateLimiter.allow(clientIP, s.metrics) {
			s.logger.WarnContext(ctx, "Rate limit exceeded",
				log.FieldClientIP, clientIP,
				log.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded"})
			return
		}

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		sl.LogHTTPEnd(ctx, r, requestID, rw.statusCode, time.Since(start).Milliseconds(), clientIP)
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Shutdown stops background goroutines and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type pinger interface {
	Ping(ctx context.Context) error
}

// handleReady checks the store when it supports Ping.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if p, ok := s.store.(pinger); ok {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			s.logger.ErrorContext(ctx, "Readiness check failed", log.FieldError, err)
			http.Error(w, "store unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
