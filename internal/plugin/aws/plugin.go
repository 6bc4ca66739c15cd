// Package aws implements the AWS reservation providers for richeck.
package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/elasticache"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/redshift"
	"github.com/rs/zerolog/log"

	"github.com/yairfalse/richeck/internal/plugin"
	"github.com/yairfalse/richeck/pkg/reservation"
)

// Config holds AWS provider configuration.
type Config struct {
	Region   string
	Profile  string
	Families []reservation.Family // Empty means all families
}

// New loads the AWS configuration and builds one provider per family.
func New(ctx context.Context, cfg Config) ([]plugin.Provider, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(cfg.Profile))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return newProviders(awsCfg, cfg.Region, cfg.Families)
}

func newProviders(awsCfg aws.Config, region string, families []reservation.Family) ([]plugin.Provider, error) {
	if len(families) == 0 {
		families = reservation.Families
	}

	providers := make([]plugin.Provider, 0, len(families))
	for _, family := range families {
		var p plugin.Provider
		switch family {
		case reservation.Compute:
			p = NewEC2Provider(region, ec2.NewFromConfig(awsCfg))
		case reservation.Database:
			p = NewRDSProvider(region, rds.NewFromConfig(awsCfg))
		case reservation.Cache:
			p = NewElastiCacheProvider(region, elasticache.NewFromConfig(awsCfg))
		case reservation.Warehouse:
			p = NewRedshiftProvider(region, redshift.NewFromConfig(awsCfg))
		default:
			return nil, fmt.Errorf("unknown family %q", family)
		}
		providers = append(providers, p)
	}

	log.Debug().Str("region", region).Int("providers", len(providers)).Msg("aws providers created")
	return providers, nil
}

// consoleURL builds the regional AWS console link for a service path.
func consoleURL(region, path string) string {
	return fmt.Sprintf("https://%s.console.aws.amazon.com/%s", region, path)
}
