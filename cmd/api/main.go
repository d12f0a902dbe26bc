package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nadirhuss/ledgercore/internal/api"
	"github.com/nadirhuss/ledgercore/internal/config"
	"github.com/nadirhuss/ledgercore/internal/service"
	"github.com/nadirhuss/ledgercore/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	pgStore, err := store.NewPostgresStore(cfg.DBSource)
	if err != nil {
		logger.Error("unable to connect to database", "error", err)
		os.Exit(1)
	}
	defer pgStore.Close()

	if err := pgStore.RunMigrations(context.Background()); err != nil {
		logger.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	// Initialize Layers
	clientSvc := service.NewClientService(pgStore, logger)
	ledgerSvc := service.NewLedgerService(pgStore, logger)
	notifySvc := service.NewNotificationService(pgStore, logger)
	handler := api.NewHandler(clientSvc, ledgerSvc, notifySvc, logger)

	// Router
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/health", handler.HealthCheckHandler).Methods("GET")

	apiV1 := r.PathPrefix("/api/v1").Subrouter()
	apiV1.HandleFunc("/clients", handler.CreateClientHandler).Methods("POST")
	apiV1.HandleFunc("/clients/{clientId}", handler.GetClientHandler).Methods("GET")
	apiV1.HandleFunc("/ledgers/summary", handler.LedgerSummaryHandler).Methods("GET")
	apiV1.HandleFunc("/ledgers/{clientId}", handler.GetLedgerHandler).Methods("GET")
	apiV1.HandleFunc("/ledgers/{clientId}/entries", handler.PostEntriesHandler).Methods("POST")
	apiV1.HandleFunc("/ledgers/{clientId}/verify", handler.VerifyClientHandler).Methods("POST")
	apiV1.HandleFunc("/notifications", handler.ListNotificationsHandler).Methods("GET")
	apiV1.HandleFunc("/notifications", handler.CreateNotificationHandler).Methods("POST")
	apiV1.HandleFunc("/notifications/{id}/dismiss", handler.DismissNotificationHandler).Methods("POST")

	logger.Info("server starting", "port", cfg.Port, "env", cfg.Env)
	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
