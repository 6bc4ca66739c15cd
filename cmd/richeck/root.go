package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/yairfalse/richeck/internal/checker"
	"github.com/yairfalse/richeck/internal/config"
	"github.com/yairfalse/richeck/internal/emitter"
	"github.com/yairfalse/richeck/internal/filter"
	"github.com/yairfalse/richeck/internal/plugin"
	"github.com/yairfalse/richeck/internal/plugin/aws"
)

var (
	version = "0.1.0"

	configPath   string
	flagRegion   string
	flagProfile  string
	flagFamilies string
	flagExclude  string
	flagChannel  string
	flagUnused   bool
	flagDryRun   bool
	flagDebug    bool

	rootCmd = &cobra.Command{
		Use:   "richeck",
		Short: "Reserved instance coverage checker",
		Long: `richeck - Reserved Instance Checker

richeck lists running EC2, RDS, ElastiCache and Redshift capacity that no
active reservation covers and posts the result to a Slack webhook.

Reservations are matched greedily, first fit, one unit per running resource.
Resources whose name matches the exclude pattern are reported separately.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.SetVersionTemplate(`richeck {{.Version}} - Reserved Instance Checker
`)

	registerFlags(rootCmd.PersistentFlags())
}

func registerFlags(flags *pflag.FlagSet) {
	flags.StringVar(&configPath, "config", "", "Path to TOML config file")
	flags.StringVar(&flagRegion, "region", "", "AWS region (default us-east-1, env "+config.EnvRegion+")")
	flags.StringVar(&flagProfile, "profile", "", "AWS shared config profile")
	flags.StringVar(&flagFamilies, "families", "", "Comma separated families to check: ec2, rds, elasticache, redshift (default all)")
	flags.StringVar(&flagExclude, "exclude", "", "Exclude resources whose name matches this regexp")
	flags.StringVar(&flagChannel, "channel", "", "Slack channel override")
	flags.BoolVar(&flagUnused, "report-unused", false, "Also report reservation capacity left unused")
	flags.BoolVar(&flagDryRun, "dry-run", false, "Print the Slack payload as JSON instead of posting it")
	flags.BoolVar(&flagDebug, "debug", false, "Enable debug logging")
}

// loadConfig layers the config file, RICHECKER_* environment and flags, then
// validates the result and sets up logging.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	cfg.FromEnv(nil)
	applyFlags(cmd, cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	setupLogging(cfg.Log.Level)
	return cfg, nil
}

func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("region") {
		cfg.AWS.Region = flagRegion
	}
	if flags.Changed("profile") {
		cfg.AWS.Profile = flagProfile
	}
	if flags.Changed("families") {
		cfg.AWS.Families = config.SplitList(flagFamilies)
	}
	if flags.Changed("exclude") {
		cfg.Filter.ExcludePattern = flagExclude
	}
	if flags.Changed("channel") {
		cfg.Slack.Channel = flagChannel
	}
	if flags.Changed("report-unused") {
		cfg.Slack.ReportUnused = flagUnused
	}
	if flagDryRun {
		cfg.Slack.DryRun = true
	}
	if flagDebug {
		cfg.Log.Level = "debug"
	}
}

func setupLogging(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}

// newSlackEmitter builds the Slack emitter; dry-run output goes to stdout.
func newSlackEmitter(cfg *config.Config) *emitter.SlackEmitter {
	sc := emitter.SlackConfig{
		WebhookURL:   cfg.Slack.WebhookURL,
		Channel:      cfg.Slack.Channel,
		Username:     cfg.Slack.Username,
		ReportUnused: cfg.Slack.ReportUnused,
	}
	if cfg.Slack.DryRun {
		sc.DryRun = os.Stdout
	}
	return emitter.NewSlackEmitter(sc)
}

// buildChecker registers the AWS providers and wires them to the filter and
// emitter.
func buildChecker(ctx context.Context, cfg *config.Config, emit emitter.Emitter, rec checker.Recorder) (*checker.Checker, error) {
	f, err := filter.New(cfg.Filter.ExcludePattern)
	if err != nil {
		return nil, err
	}

	providers, err := aws.New(ctx, aws.Config{
		Region:   cfg.AWS.Region,
		Profile:  cfg.AWS.Profile,
		Families: cfg.FamilyList(),
	})
	if err != nil {
		return nil, fmt.Errorf("create aws providers: %w", err)
	}

	plugin.Clear()
	for _, p := range providers {
		plugin.Register(p)
	}

	log.Info().
		Str("region", cfg.AWS.Region).
		Strs("families", plugin.Names()).
		Str("exclude", f.Pattern()).
		Bool("dry_run", cfg.Slack.DryRun).
		Msg("richeck starting")

	return checker.New(checker.Config{
		Region:    cfg.AWS.Region,
		Providers: plugin.All(),
		Filter:    f,
		Emitter:   emit,
		Recorder:  rec,
	})
}
