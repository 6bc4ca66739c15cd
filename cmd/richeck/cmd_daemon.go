package main

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/exporters/prometheus"

	"github.com/yairfalse/richeck/internal/daemon"
	"github.com/yairfalse/richeck/internal/emitter"
	"github.com/yairfalse/richeck/internal/telemetry"
)

var (
	daemonInterval    time.Duration
	daemonMetricsAddr string
)

// daemonCmd represents the daemon command
var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the reservation check on an interval",
	Long: `Run richeck in daemon mode.

The daemon runs one check at startup and then once per interval. A failed
check is logged and retried on the next tick.

Features:
- Prometheus metrics on /metrics
- Liveness on /healthz, readiness on /readyz (ready after one successful check)
- Daemon status as JSON on /health
- Graceful shutdown on SIGTERM/SIGINT`,
	Example: `  richeck daemon                          # Check every 24h
  richeck daemon --interval 6h            # Check every 6 hours
  richeck daemon --metrics-addr :2112     # Custom metrics address`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(daemonCmd)

	daemonCmd.Flags().DurationVar(&daemonInterval, "interval", 0, "Check interval (default from config, 24h)")
	daemonCmd.Flags().StringVar(&daemonMetricsAddr, "metrics-addr", "", "Metrics HTTP server address (default from config, :9090)")
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("interval") {
		cfg.Schedule.Interval = daemonInterval
	}
	if cmd.Flags().Changed("metrics-addr") {
		cfg.Schedule.MetricsAddr = daemonMetricsAddr
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// OTEL metrics are exported both to Prometheus and, when configured, OTLP.
	promExporter, err := prometheus.New()
	if err != nil {
		return err
	}

	tp, err := telemetry.NewProvider(ctx, cfg.OTEL, promExporter)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("telemetry shutdown")
		}
	}()

	promEmitter, err := emitter.NewPrometheusEmitterWithMeter(tp.Meter())
	if err != nil {
		return err
	}
	emit := emitter.NewMultiEmitter(
		emitter.NewLogEmitter(log.Logger),
		promEmitter,
		newSlackEmitter(cfg),
	)
	defer func() { _ = emit.Close() }()

	c, err := buildChecker(ctx, cfg, emit, tp)
	if err != nil {
		return err
	}

	d, err := daemon.NewDaemon(daemon.Config{
		Interval:   cfg.Schedule.Interval,
		Region:     cfg.AWS.Region,
		RunOnStart: true,
	}, c)
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", cfg.Schedule.MetricsAddr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           newMux(d),
		ReadHeaderTimeout: 5 * time.Second,
	}

	var g run.Group
	{
		g.Add(func() error {
			return d.Start(ctx)
		}, func(error) {
			cancel()
		})
	}
	{
		g.Add(func() error {
			log.Info().Str("addr", ln.Addr().String()).Msg("starting metrics server")
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		}, func(error) {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		})
	}
	g.Add(run.SignalHandler(ctx, syscall.SIGINT, syscall.SIGTERM))

	err = g.Run()
	var sigErr run.SignalError
	if errors.As(err, &sigErr) {
		log.Info().Str("signal", sigErr.Signal.String()).Msg("shutting down")
		return nil
	}
	return err
}

// healthReporter is the part of the daemon the HTTP handlers need.
type healthReporter interface {
	Health() daemon.HealthStatus
	Ready() bool
}

func newMux(d healthReporter) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", handleHealthz)
	mux.HandleFunc("/readyz", handleReadyz(d))
	mux.HandleFunc("/health", handleHealth(d))
	return mux
}

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReadyz(d healthReporter) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if !d.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("no successful check yet"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}

func handleHealth(d healthReporter) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(d.Health()); err != nil {
			log.Error().Err(err).Msg("encode health")
		}
	}
}
