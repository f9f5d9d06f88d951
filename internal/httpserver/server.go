package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gaborv/szamla/backend/internal/config"
	"github.com/gaborv/szamla/backend/internal/email"
	"github.com/gaborv/szamla/backend/internal/gmailaccounts"
	"github.com/gaborv/szamla/backend/internal/gmailsync"
	"github.com/gaborv/szamla/backend/internal/invoices"
	"github.com/gaborv/szamla/backend/internal/middleware"
	"github.com/gaborv/szamla/backend/internal/recurringinvoices"
	"github.com/gaborv/szamla/backend/migrations"
)

// shutdownSchedulerTimeout bounds how long Shutdown waits for an in-flight
// generation run to finish.
const shutdownSchedulerTimeout = 10 * time.Second

// Server wraps the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	pool       *pgxpool.Pool
	scheduler  *recurringinvoices.Scheduler
	logger     *slog.Logger
}

// New creates a new HTTP server with all routes configured.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	// Connect to database. Amounts are NUMERIC columns, so register the
	// decimal codec on every connection.
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	logger.Info("connected to database")

	// Apply schema
	if err := migrations.Apply(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	// Create email sender
	emailCfg := &email.Config{
		Provider:      cfg.EmailProvider,
		SMTPHost:      cfg.SMTPHost,
		SMTPPort:      cfg.SMTPPort,
		SMTPUsername:  cfg.SMTPUsername,
		SMTPPassword:  cfg.SMTPPassword,
		APIKey:        cfg.EmailAPIKey,
		FromAddress:   cfg.EmailFromAddress,
		FromName:      cfg.EmailFromName,
		NotifyAddress: cfg.EmailNotifyAddress,
	}
	emailSender, err := email.NewSender(emailCfg, logger)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create email sender: %w", err)
	}

	// Create repositories
	invoiceRepo := invoices.NewRepository(pool, cfg.DefaultCurrency)
	recurringRepo := recurringinvoices.NewRepository(pool, cfg.DefaultCurrency)
	accountRepo := gmailaccounts.NewRepository(pool)

	// Recurring invoice generation pipeline
	generator := recurringinvoices.NewGenerator(recurringRepo, logger)
	runner := recurringinvoices.NewRunner(generator)

	var scheduler *recurringinvoices.Scheduler
	if cfg.SchedulerEnabled {
		scheduler = recurringinvoices.NewScheduler(runner, emailSender, cfg.SchedulerInterval, logger)
		go scheduler.Start(ctx)
	} else {
		logger.Info("recurring invoice scheduler disabled")
	}

	// Gmail sync service. Message retrieval is a no-op until an account is
	// connected through the OAuth flow.
	syncService := gmailsync.NewService(accountRepo, invoiceRepo, gmailsync.NoopSource{}, cfg.GmailSyncMaxResults, logger)

	// Create handlers
	invoicesHandler := invoices.NewHandler(invoiceRepo, logger)
	recurringHandler := recurringinvoices.NewHandler(recurringRepo, runner, recurringinvoices.SchedulerInfo{
		Enabled:         cfg.SchedulerEnabled,
		IntervalSeconds: int(cfg.SchedulerInterval.Seconds()),
	}, logger)
	accountsHandler := gmailaccounts.NewHandler(accountRepo, cfg.MaxGmailAccounts, logger)
	syncHandler := gmailsync.NewHandler(syncService, logger)

	// Setup routes
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("GET /health", handleHealth)

	// Version endpoint
	mux.HandleFunc("GET /version", handleVersion)

	// Invoice endpoints
	mux.HandleFunc("GET /api/invoices", invoicesHandler.HandleList)
	mux.HandleFunc("POST /api/invoices", invoicesHandler.HandleCreate)
	mux.HandleFunc("GET /api/invoices/{id}", invoicesHandler.HandleGet)
	mux.HandleFunc("POST /api/invoices/{id}/pay", invoicesHandler.HandlePay)
	mux.HandleFunc("GET /api/invoices/{id}/qr", invoicesHandler.HandleQR)
	mux.HandleFunc("DELETE /api/invoices/{id}", invoicesHandler.HandleDelete)

	// Recurring invoice endpoints (order matters to avoid route conflicts)
	mux.HandleFunc("GET /api/recurring", recurringHandler.HandleList)
	mux.HandleFunc("POST /api/recurring", recurringHandler.HandleCreate)
	mux.HandleFunc("POST /api/recurring/run-now", recurringHandler.HandleRunNow)
	mux.HandleFunc("GET /api/recurring/run-status", recurringHandler.HandleRunStatus)
	mux.HandleFunc("GET /api/recurring/{id}", recurringHandler.HandleGet)
	mux.HandleFunc("PUT /api/recurring/{id}", recurringHandler.HandleUpdate)
	mux.HandleFunc("DELETE /api/recurring/{id}", recurringHandler.HandleDelete)
	mux.HandleFunc("POST /api/recurring/{id}/pause", recurringHandler.HandlePause)
	mux.HandleFunc("GET /api/recurring/{id}/forecast", recurringHandler.HandleForecast)

	// Gmail account endpoints
	mux.HandleFunc("GET /api/accounts", accountsHandler.HandleList)
	mux.HandleFunc("POST /api/accounts", accountsHandler.HandleCreate)
	mux.HandleFunc("GET /api/accounts/{id}", accountsHandler.HandleGet)
	mux.HandleFunc("PUT /api/accounts/{id}/filters", accountsHandler.HandleUpdateFilters)
	mux.HandleFunc("POST /api/accounts/{id}/deactivate", accountsHandler.HandleDeactivate)
	mux.HandleFunc("POST /api/accounts/{id}/sync", syncHandler.HandleSync)

	// Apply middleware
	var handler http.Handler = mux
	handler = middleware.NoCache()(handler)
	handler = middleware.Logging(logger)(handler)
	handler = middleware.CORS(cfg.AllowedOrigins)(handler)
	handler = middleware.Recovery(logger)(handler)

	httpServer := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		pool:       pool,
		scheduler:  scheduler,
		logger:     logger,
	}, nil
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.scheduler != nil {
		s.scheduler.Stop(shutdownSchedulerTimeout)
	}
	s.logger.Info("closing database connection pool")
	s.pool.Close()
	return s.httpServer.Shutdown(ctx)
}

// Addr returns the server address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Build-time variables injected via ldflags
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status": "healthy",
	})
}

func handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"version":   Version,
		"commit":    Commit,
		"buildTime": BuildTime,
	})
}
