// Package daemon re-runs the reservation check on a fixed interval.
package daemon

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/yairfalse/richeck/pkg/reservation"
)

// Runner performs one reservation check.
type Runner interface {
	Run(ctx context.Context) (reservation.Report, error)
}

// Config holds daemon configuration
type Config struct {
	Interval   time.Duration
	Region     string
	RunOnStart bool // Run a check immediately instead of waiting one interval
}

// Daemon manages scheduled reservation checks
type Daemon struct {
	runner     Runner
	interval   time.Duration
	region     string
	runOnStart bool
	startTime  time.Time
	metrics    *DaemonMetrics

	checkCount   atomic.Int64
	failureCount atomic.Int64
	lastSuccess  atomic.Int64 // unix nanos, zero until the first successful check
}

// NewDaemon creates a new daemon instance
func NewDaemon(config Config, runner Runner) (*Daemon, error) {
	if runner == nil {
		return nil, errors.New("daemon: runner required")
	}
	if config.Interval <= 0 {
		return nil, errors.New("daemon: interval must be positive")
	}

	metrics, err := NewDaemonMetrics()
	if err != nil {
		return nil, err
	}

	return &Daemon{
		runner:     runner,
		interval:   config.Interval,
		region:     config.Region,
		runOnStart: config.RunOnStart,
		startTime:  time.Now(),
		metrics:    metrics,
	}, nil
}

// Start begins the daemon's check loop. It returns nil when ctx is cancelled.
func (d *Daemon) Start(ctx context.Context) error {
	log.Info().Dur("interval", d.interval).Str("region", d.region).Msg("daemon started")

	if d.runOnStart {
		d.runCheck(ctx)
	}

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Int64("checks", d.checkCount.Load()).Msg("daemon stopped")
			return nil
		case <-ticker.C:
			d.runCheck(ctx)
		}
	}
}

// runCheck runs one check; failures are logged and the loop carries on.
func (d *Daemon) runCheck(ctx context.Context) {
	d.checkCount.Add(1)
	start := time.Now()

	report, err := d.runner.Run(ctx)
	elapsed := time.Since(start)

	if err != nil {
		d.failureCount.Add(1)
		d.metrics.RecordCheck(ctx, "failure", d.region)
		d.metrics.RecordCheckDuration(ctx, elapsed.Seconds(), "failure")
		log.Error().Err(err).Dur("duration", elapsed).Msg("reservation check failed")
		return
	}

	now := time.Now()
	d.lastSuccess.Store(now.UnixNano())
	d.metrics.RecordCheck(ctx, "success", d.region)
	d.metrics.RecordCheckDuration(ctx, elapsed.Seconds(), "success")
	d.metrics.RecordLastSuccess(ctx, now.Unix())
	for _, fr := range report.Families {
		d.metrics.RecordUnreserved(ctx, int64(len(fr.Unreserved)), string(fr.Family), d.region)
	}

	log.Info().
		Int("unreserved", report.UnreservedCount()).
		Int("excluded", report.ExcludedCount()).
		Dur("duration", elapsed).
		Msg("reservation check complete")
}

// Health returns daemon health status
func (d *Daemon) Health() HealthStatus {
	h := HealthStatus{
		Status:   "healthy",
		Uptime:   int64(time.Since(d.startTime).Seconds()),
		Checks:   d.checkCount.Load(),
		Failures: d.failureCount.Load(),
	}
	if ts := d.lastSuccess.Load(); ts != 0 {
		h.LastSuccess = time.Unix(0, ts).UTC()
	}
	return h
}

// Ready reports whether at least one check has succeeded.
func (d *Daemon) Ready() bool {
	return d.lastSuccess.Load() != 0
}

// HealthStatus represents daemon health
type HealthStatus struct {
	Status      string    `json:"status"`
	Uptime      int64     `json:"uptime_seconds"`
	Checks      int64     `json:"checks"`
	Failures    int64     `json:"failures"`
	LastSuccess time.Time `json:"last_success,omitzero"`
}

// CheckCount returns total checks run
func (d *Daemon) CheckCount() int64 {
	return d.checkCount.Load()
}

// FailureCount returns total failed checks
func (d *Daemon) FailureCount() int64 {
	return d.failureCount.Load()
}
