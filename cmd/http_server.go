package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	"github.com/spf13/cobra"

	"github.com/thaohienhomes/phochat-payments/internal/auth"
	"github.com/thaohienhomes/phochat-payments/internal/ledger"
	ledgerRepository "github.com/thaohienhomes/phochat-payments/internal/ledger/postgres"
	"github.com/thaohienhomes/phochat-payments/internal/order"
	"github.com/thaohienhomes/phochat-payments/internal/paymentgateway"
	"github.com/thaohienhomes/phochat-payments/internal/reconcile"
	"github.com/thaohienhomes/phochat-payments/internal/transport"
	"github.com/thaohienhomes/phochat-payments/internal/transport/rest"
	"github.com/thaohienhomes/phochat-payments/internal/transport/swagger"
	"github.com/thaohienhomes/phochat-payments/internal/webhook"
	webhookTx "github.com/thaohienhomes/phochat-payments/internal/webhook/postgres"
)

var openAPIPath string

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server for order admission, webhooks and admin sweeps`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

func init() {
	httpServerCmd.Flags().StringVar(&openAPIPath, "openapi", "./api/openapi.yml", "OpenAPI document served at /openapi.yml (empty disables it)")
}

func startHTTPServer() {
	ctx := context.Background()
	deps, err := initializeDependencies(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}
	lg := deps.Logger

	router := chi.NewRouter()
	if err := setupRoutes(ctx, deps, router); err != nil {
		lg.Error("failed to set up routes", "error", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	lg.Info("Starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		lg.Info("Received signal, shutting down...", "signal", sig)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", "error", err)
		}
		deps.Close(shutdownCtx)
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			lg.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}

	lg.Info("Server stopped")
}

func setupRoutes(ctx context.Context, deps *Dependencies, router *chi.Mux) error {
	cfg := deps.Config
	base := transport.NewBaseHandler(deps.Logger)

	publicKey, err := cfg.Security.GetPublicKey()
	if err != nil {
		return err
	}
	guard, err := auth.NewAdminTokenGuard(cfg.Security.AdminTokenHash)
	if err != nil {
		return err
	}

	if openAPIPath != "" {
		if _, err := swagger.LoadSpec(ctx, openAPIPath); err != nil {
			return err
		}
	}

	health := rest.NewHealthHandler(deps.DB)
	if deps.Redis != nil {
		health.WithCheck("redis", deps.Redis)
	}

	ledgerService := ledger.NewService(ledgerRepository.NewWebhookEventRepository(deps.Gorm), deps.Logger)
	ingest := webhook.NewService(webhookTx.NewTxRunner(deps.Gorm), deps.EventBus, deps.Logger)

	metricsPath := ""
	if cfg.Observability.Metrics.Enabled {
		metricsPath = cfg.Observability.Metrics.Path
	}

	rest.RegisterAllRoutes(router, rest.Routes{
		Health:         health,
		Webhook:        webhook.NewHandler(base, ingest, paymentgateway.NewChecksumVerifier(cfg.Payment.ChecksumKey), deps.Metrics),
		Orders:         order.NewHandler(base, deps.Orders, deps.Gateway, cfg.Server.BaseURL),
		Reconcile:      reconcile.NewHandler(base, deps.Sweep(), cfg.Reconcile.OlderThan),
		Ledger:         ledger.NewHandler(base, ledgerService),
		Tokens:         auth.NewRS256Verifier(publicKey),
		AdminGuard:     guard,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		MetricsPath:    metricsPath,
		Gatherer:       deps.Registry,
		OpenAPIPath:    openAPIPath,
	}, deps.Logger)
	return nil
}
