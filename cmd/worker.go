package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/thaohienhomes/phochat-payments/internal/cron"
	"github.com/thaohienhomes/phochat-payments/internal/metrics"
	"github.com/thaohienhomes/phochat-payments/internal/reconcile"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start background workers",
	Long:  `Start long running workers such as the scheduled reconcile sweep`,
}

var reconcileWorkerCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Run the reconcile sweep on a schedule",
	Long:  `Sweep stale pending orders every interval. With redis configured, only one replica sweeps per cycle.`,
	Run: func(cmd *cobra.Command, args []string) {
		startReconcileWorker()
	},
}

var (
	workerInterval time.Duration
	workerOnce     bool
	workerMetrics  string
)

// workerMetricsServer exposes the worker's collectors on addr. The worker has
// no HTTP surface of its own, so this is its only scrape target.
func workerMetricsServer(addr, path string, gatherer prometheus.Gatherer) *http.Server {
	if path == "" {
		path = "/metrics"
	}
	router := chi.NewRouter()
	router.Handle(path, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func startReconcileWorker() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := initializeDependencies(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}
	lg := deps.Logger

	var lock cron.Lock = cron.NoopLock{}
	if deps.Redis != nil {
		redisLock, err := cron.NewRedisLock(deps.Redis, deps.Config.Reconcile.LockKey, deps.Config.Reconcile.LockTTL)
		if err != nil {
			lg.Error("failed to create sweep lock", "error", err)
			os.Exit(1)
		}
		lock = redisLock
	} else {
		lg.Warn("redis not configured, sweeping without a cross-replica lock")
	}

	interval := deps.Config.Reconcile.Interval
	if workerInterval > 0 {
		interval = workerInterval
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   lg,
		Registry: cron.NewRegistry(reconcile.NewJob(deps.Sweep(), deps.Config.Reconcile.OlderThan, lg)),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(deps.Registry),
		Interval: interval,
	})
	if err != nil {
		lg.Error("failed to create scheduler", "error", err)
		os.Exit(1)
	}

	var metricsServer *http.Server
	if workerMetrics != "" {
		metricsServer = workerMetricsServer(workerMetrics, deps.Config.Observability.Metrics.Path, deps.Registry)
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				lg.Error("worker metrics listener failed", "error", err)
			}
		}()
		lg.Info("worker metrics listening", "addr", workerMetrics)
	}

	lg.Info("reconcile worker started",
		"interval", interval,
		"older_than", deps.Config.Reconcile.OlderThan,
		"status_lookup", deps.Config.Payment.StatusLookup)

	if workerOnce {
		err = service.RunOnce(ctx)
	} else {
		err = service.Run(ctx)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		lg.Error("reconcile worker stopped", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			lg.Error("worker metrics shutdown failed", "error", err)
		}
	}
	deps.Close(shutdownCtx)
	lg.Info("reconcile worker shutdown complete")
}

func init() {
	reconcileWorkerCmd.Flags().DurationVar(&workerInterval, "interval", 0, "sweep interval (overrides config)")
	reconcileWorkerCmd.Flags().BoolVar(&workerOnce, "once", false, "run a single cycle and exit")
	reconcileWorkerCmd.Flags().StringVar(&workerMetrics, "metrics-addr", "", "serve prometheus metrics on this address, e.g. :9091")

	workerCmd.AddCommand(reconcileWorkerCmd)

	rootCmd.AddCommand(workerCmd)
}
