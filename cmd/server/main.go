// Command server boots the trading core: it loads configuration, wires
// the oracle, order book, matching engine, position ledger, event bus,
// risk/notification/audit collaborators, trigger watcher and orchestrator
// together, starts the TCP transport adapter and the Prometheus metrics
// endpoint, and blocks until SIGINT/SIGTERM.
//
// Grounded on the teacher's cmd/main.go signal.NotifyContext shutdown
// pattern, generalized into a github.com/spf13/cobra command the way
// VictorVVedtion-perp-dex structures its CLI, so a --config flag and
// future subcommands (migrate, inspect, ...) have somewhere to live.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"fenrir/internal/collab/logsink"
	"fenrir/internal/collab/memprefs"
	"fenrir/internal/config"
	"fenrir/internal/eventbus"
	"fenrir/internal/matching"
	"fenrir/internal/metrics"
	"fenrir/internal/oracle"
	"fenrir/internal/orchestration"
	"fenrir/internal/orders"
	"fenrir/internal/position"
	"fenrir/internal/risk"
	"fenrir/internal/session"
	"fenrir/internal/transport"
	"fenrir/internal/trigger"
)

func main() {
	var configPath string

	root := &cobra.Command{
		Use:   "server",
		Short: "Run the trading core's TCP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath)
		},
	}
	root.Flags().StringVar(&configPath, "config", "configs/config.yaml", "path to the YAML config file")

	if err := root.Execute(); err != nil {
		log.Fatal().Err(err).Msg("server exited with error")
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	configureLogging(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	minSize, maxSize, err := cfg.Orders.Decimals()
	if err != nil {
		return err
	}
	maxPosition, err := cfg.Risk.Decimal()
	if err != nil {
		return err
	}
	sessionStart, sessionEnd, sessionLoc, err := config.ParseSessionHours(cfg.Session)
	if err != nil {
		return err
	}
	calendar := session.New(session.Hours{Start: sessionStart, End: sessionEnd, Location: sessionLoc})

	priceOracle, err := buildOracle(ctx, cfg.Oracle)
	if err != nil {
		return fmt.Errorf("build oracle: %w", err)
	}

	reg := prometheus.NewRegistry()
	metricsRegistry := metrics.NewRegistry(reg)

	bus := eventbus.New(metricsRegistry)
	ledger := position.New(priceOracle)
	manager := orders.New(orders.Config{MinOrderSize: minSize, MaxOrderSize: maxSize}, priceOracle, ledger, bus)

	prefStore := memprefs.New()
	riskEvaluator := risk.New(risk.Config{MaxPositionSize: maxPosition, ConcentrationFraction: decimal.NewFromFloat(cfg.Risk.ConcentrationFraction)})
	notifier := logsink.NewNotifier()
	auditor := logsink.NewAuditor()

	orch := orchestration.New(notifier, auditor, riskEvaluator, prefStore, ledger)
	orch.Attach(bus)

	watcher := trigger.New(manager)
	watcher.Attach(bus)

	bus.Run(ctx)
	defer bus.Stop()

	go runDayOrderSweep(ctx, calendar, manager)

	srv := transport.New(cfg.Server.ListenAddr, manager)
	serverErr := make(chan error, 1)
	go func() { serverErr <- srv.Run(ctx) }()

	metricsSrv := &http.Server{Addr: cfg.Server.MetricsAddr, Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{})}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()

	log.Info().Str("listenAddr", cfg.Server.ListenAddr).Str("metricsAddr", cfg.Server.MetricsAddr).Msg("trading core started")

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			log.Error().Err(err).Msg("transport server exited unexpectedly")
		}
	}

	srv.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	metricsSrv.Shutdown(shutdownCtx)
	if closer, ok := priceOracle.(interface{ Close() error }); ok {
		closer.Close()
	}
	return nil
}

// runDayOrderSweep cancels resting "day" time-in-force orders at every
// session close until ctx is cancelled (spec.md §4.2's day-order expiry,
// SPEC_FULL.md "Supplemented Features" #1).
func runDayOrderSweep(ctx context.Context, calendar *session.Calendar, manager *orders.Manager) {
	for {
		wait := calendar.DurationUntilNextClose(time.Now())
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			cancelled := manager.CancelDayOrders()
			if len(cancelled) > 0 {
				log.Info().Int("count", len(cancelled)).Msg("session close: cancelled resting day orders")
			}
		}
	}
}

// oraclePort is the common surface the rest of main needs regardless of
// which oracle.Oracle implementation buildOracle picks.
type oraclePort interface {
	matching.PriceOracle
}

func buildOracle(ctx context.Context, cfg config.OracleConfig) (oraclePort, error) {
	switch cfg.Mode {
	case "live":
		return oracle.NewLiveOracle(ctx, cfg.FeedURL)
	default:
		return oracle.NewStaticOracle(), nil
	}
}

func configureLogging(cfg config.LoggingConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.Format == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}
}
