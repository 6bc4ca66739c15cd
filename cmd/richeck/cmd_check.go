package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/yairfalse/richeck/internal/emitter"
	"github.com/yairfalse/richeck/internal/telemetry"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run one reservation check and notify Slack",
	Long: `Fetch active reservations and running resources for every selected
family, match them and post the unreserved resources to the Slack webhook.

Any provider error aborts the run before anything is posted.`,
	Example: `  richeck check                                  # All families, us-east-1
  richeck check --region eu-west-1 --families ec2,rds
  richeck check --exclude '^(batch|tmp)-'        # Report matching names separately
  richeck check --dry-run                        # Print the payload, post nothing`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp, err := telemetry.NewProvider(ctx, cfg.OTEL)
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

	emit := emitter.NewMultiEmitter(
		emitter.NewLogEmitter(log.Logger),
		newSlackEmitter(cfg),
	)
	defer func() { _ = emit.Close() }()

	c, err := buildChecker(ctx, cfg, emit, tp)
	if err != nil {
		return err
	}

	_, err = c.Run(ctx)
	return err
}
