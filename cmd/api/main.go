package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/text/language"

	"github.com/terrakit/terrakit/internal/appointment"
	appointmentStore "github.com/terrakit/terrakit/internal/appointment/store"
	"github.com/terrakit/terrakit/internal/audit"
	auditStore "github.com/terrakit/terrakit/internal/audit/store"
	"github.com/terrakit/terrakit/internal/changefeed"
	"github.com/terrakit/terrakit/internal/config"
	"github.com/terrakit/terrakit/internal/database"
	"github.com/terrakit/terrakit/internal/grouping"
	terrakitHttp "github.com/terrakit/terrakit/internal/http"
	appointmentHandler "github.com/terrakit/terrakit/internal/http/appointment"
	auditHandler "github.com/terrakit/terrakit/internal/http/audit"
	changesHandler "github.com/terrakit/terrakit/internal/http/changes"
	confirmationHandler "github.com/terrakit/terrakit/internal/http/confirmation"
	importHandler "github.com/terrakit/terrakit/internal/http/importparcels"
	planHandler "github.com/terrakit/terrakit/internal/http/planquote"
	saleHandler "github.com/terrakit/terrakit/internal/http/sale"
	"github.com/terrakit/terrakit/internal/importer"
	"github.com/terrakit/terrakit/internal/notify"
	"github.com/terrakit/terrakit/internal/parcel"
	parcelStore "github.com/terrakit/terrakit/internal/parcel/store"
	"github.com/terrakit/terrakit/internal/sale"
	salesStore "github.com/terrakit/terrakit/internal/sale/store"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.New(cfg.ConnectionString())
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	caps, err := database.DetectCapabilities(ctx, db)
	if err != nil {
		slog.Error("failed to detect schema capabilities", "error", err)
		os.Exit(1)
	}

	slog.Info("schema capabilities detected", "promise_columns", caps.PromiseColumns)

	var notifier notify.Notifier = notify.Noop{}
	if cfg.Notify.WebhookURL != "" {
		notifier = notify.NewWebhook(cfg.Notify.WebhookURL, cfg.Notify.Token)
	}

	var (
		auditService       = audit.NewService(auditStore.New(db))
		saleService        = sale.NewService(salesStore.New(db, caps))
		parcelService      = parcel.NewService(parcelStore.New(db))
		appointmentService = appointment.NewService(appointmentStore.New(db), auditService)
		importService      = importer.NewService()
		groupingEngine     = grouping.New(language.Make(cfg.App.Locale))
	)

	saleService.AfterCommit(sale.AuditHook(auditService))
	saleService.AfterCommit(sale.NotifyHook(notifier))

	hub := changefeed.NewHub()
	listener := changefeed.NewListener(cfg.ConnectionString(), hub)

	go listener.Run(ctx)

	var (
		salesH        = saleHandler.NewHandler(saleService)
		confirmationH = confirmationHandler.NewHandler(saleService, groupingEngine)
		appointmentsH = appointmentHandler.NewHandler(appointmentService)
		auditH        = auditHandler.NewHandler(auditService)
		importH       = importHandler.NewHandler(importService, parcelService)
		plansH        = planHandler.NewHandler()
		changesH      = changesHandler.NewHandler(hub)
	)

	router := terrakitHttp.New(
		salesH,
		confirmationH,
		appointmentsH,
		auditH,
		importH,
		plansH,
		changesH,
		cfg.Auth.JWTSecret,
		cfg.CORS.AllowedOrigins,
	)

	addr := fmt.Sprintf(":%d", cfg.App.Port)

	server := &http.Server{
		Addr:        addr,
		Handler:     router,
		ReadTimeout: cfg.Server.Timeout,
		IdleTimeout: 2 * cfg.Server.Timeout,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.Timeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	slog.Info("starting server", "addr", addr, "app", cfg.App.Name)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
