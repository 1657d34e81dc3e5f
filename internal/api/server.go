package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/Guizzs26/go-sync-sheets/internal/models"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
)

// Syncer pushes records into the ledger
type Syncer interface {
	SyncRecord(ctx context.Context, collection, recordID, sheetName string) models.SyncResult
	FullSync(ctx context.Context, collection, sheetName string) (models.FullSyncResult, error)
}

// Puller applies ledger edits back into the store
type Puller interface {
	PullFromSheet(ctx context.Context, sheetName, collection string) (models.PullResult, error)
}

// Reconciler owns player-count edits and dashboard repair
type Reconciler interface {
	UpdateFormFields(ctx context.Context, formID string, fields models.FormFields) (*models.Form, error)
	ReconcileAll(ctx context.Context) (models.ReconcileResult, error)
}

// DueReporter derives and publishes due payments
type DueReporter interface {
	DuePayments(ctx context.Context) ([]models.DuePaymentRecord, error)
	PushDuePayments(ctx context.Context, sheetName string) (models.DueReport, error)
}

// RecordUpdater applies allow-listed admin edits to payments and users
type RecordUpdater interface {
	UpdateRecord(ctx context.Context, collection, recordID string, fields map[string]any) error
}

// DeadLetterLister exposes recent failed syncs. Optional
type DeadLetterLister interface {
	ListRecent(ctx context.Context, limit int) ([]models.DeadLetter, error)
}

// Deps are the services behind the admin API
type Deps struct {
	Syncer      Syncer
	Puller      Puller
	Reconciler  Reconciler
	Due         DueReporter
	Records     RecordUpdater
	DeadLetters DeadLetterLister
}

// Server is the admin HTTP API
type Server struct {
	deps   Deps
	logger *slog.Logger
	http   *http.Server
}

func NewServer(addr string, origins []string, deps Deps, logger *slog.Logger) *Server {
	s := &Server{deps: deps, logger: logger}
	s.http = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(origins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Handler builds the routed, CORS-wrapped handler
func (s *Server) Handler(origins []string) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /admin/sheets/push", s.handlePush)
	mux.HandleFunc("POST /admin/sheets/pull", s.handlePull)
	mux.HandleFunc("POST /admin/sync/{collection}/{id}", s.handleSyncRecord)
	mux.HandleFunc("POST /admin/reconcile/players", s.handleReconcile)
	mux.HandleFunc("GET /admin/due-payments", s.handleDuePayments)
	mux.HandleFunc("POST /admin/due-payments/push", s.handlePushDuePayments)
	mux.HandleFunc("PATCH /admin/forms/{id}", s.handleUpdateForm)
	mux.HandleFunc("PATCH /admin/payments/{id}", s.handleUpdateRecord(models.CollectionPayments))
	mux.HandleFunc("PATCH /admin/users/{id}", s.handleUpdateRecord(models.CollectionUsers))
	mux.HandleFunc("GET /admin/dead-letters", s.handleDeadLetters)

	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})
	return c.Handler(s.logRequests(mux))
}

// Start serves until Shutdown. It returns http.ErrServerClosed after a clean stop
func (s *Server) Start() error {
	s.logger.Info("Admin API listening", "addr", s.http.Addr)
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		if r.URL.Path == "/health" || r.URL.Path == "/metrics" {
			return
		}
		s.logger.Info("Admin request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
