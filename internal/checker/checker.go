// Package checker runs one reservation check: fetch every family, match
// running resources against reservations, divert excluded names and emit the
// report.
package checker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/yairfalse/richeck/internal/emitter"
	"github.com/yairfalse/richeck/internal/filter"
	"github.com/yairfalse/richeck/internal/plugin"
	"github.com/yairfalse/richeck/pkg/reservation"
)

// Recorder receives fetch metrics. *telemetry.Provider implements it.
type Recorder interface {
	RecordFetchDuration(ctx context.Context, region string, family reservation.Family, d time.Duration)
	RecordFetched(ctx context.Context, region string, family reservation.Family, reservations, running int)
	RecordError(ctx context.Context, region string, family reservation.Family)
}

// Config holds checker dependencies.
type Config struct {
	Region    string
	Providers []plugin.Provider
	Filter    *filter.Filter  // nil means no exclusion
	Emitter   emitter.Emitter // nil means the report is only returned
	Recorder  Recorder        // optional
}

// Checker wires providers, matcher, filter and emitter for one region.
type Checker struct {
	region    string
	providers []plugin.Provider
	filter    *filter.Filter
	emitter   emitter.Emitter
	recorder  Recorder
	now       func() time.Time
}

// New creates a checker.
func New(cfg Config) (*Checker, error) {
	if len(cfg.Providers) == 0 {
		return nil, errors.New("checker: at least one provider required")
	}

	return &Checker{
		region:    cfg.Region,
		providers: cfg.Providers,
		filter:    cfg.Filter,
		emitter:   cfg.Emitter,
		recorder:  cfg.Recorder,
		now:       time.Now,
	}, nil
}

// Run performs one check. Families are fetched concurrently; if any of them
// fails nothing is emitted and the first error is returned.
func (c *Checker) Run(ctx context.Context) (reservation.Report, error) {
	ctx, span := otel.Tracer("richeck").Start(ctx, "checker.Run")
	defer span.End()

	started := c.now()
	results := make([]reservation.FamilyResult, len(c.providers))

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range c.providers {
		i, p := i, p
		g.Go(func() error {
			fr, err := c.checkFamily(gctx, p)
			if err != nil {
				return fmt.Errorf("check %s: %w", p.Family(), err)
			}
			results[i] = fr
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return reservation.Report{}, err
	}

	report := reservation.Report{
		Region:   c.region,
		Families: results,
		Started:  started,
		Duration: c.now().Sub(started),
	}
	span.SetAttributes(
		attribute.String("region", c.region),
		attribute.Int("unreserved", report.UnreservedCount()),
	)

	if c.emitter != nil {
		if err := c.emitter.Emit(ctx, report); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return report, fmt.Errorf("emit report: %w", err)
		}
	}

	return report, nil
}

func (c *Checker) checkFamily(ctx context.Context, p plugin.Provider) (reservation.FamilyResult, error) {
	family := p.Family()
	ctx, span := otel.Tracer("richeck").Start(ctx, "checker.checkFamily")
	defer span.End()
	span.SetAttributes(attribute.String("family", string(family)))

	start := time.Now()

	reservations, err := p.Reservations(ctx)
	if err != nil {
		c.recordError(ctx, family)
		return reservation.FamilyResult{}, fmt.Errorf("fetch reservations: %w", err)
	}

	running, err := p.Running(ctx)
	if err != nil {
		c.recordError(ctx, family)
		return reservation.FamilyResult{}, fmt.Errorf("fetch running resources: %w", err)
	}

	if c.recorder != nil {
		c.recorder.RecordFetchDuration(ctx, c.region, family, time.Since(start))
		c.recorder.RecordFetched(ctx, c.region, family, len(reservations), len(running))
	}

	unreserved := reservation.FindUnreserved(reservations, running, p.Equivalence())
	kept, excluded := c.filter.Partition(unreserved)

	log.Debug().
		Str("family", string(family)).
		Int("reservations", len(reservations)).
		Int("running", len(running)).
		Int("unreserved", len(kept)).
		Int("excluded", len(excluded)).
		Msg("family checked")

	return reservation.FamilyResult{
		Family:     family,
		Running:    len(running),
		Unreserved: kept,
		Excluded:   excluded,
		Unused:     reservation.Unused(reservations),
		DetailURL:  p.DetailURL(kept),
	}, nil
}

func (c *Checker) recordError(ctx context.Context, family reservation.Family) {
	if c.recorder != nil {
		c.recorder.RecordError(ctx, c.region, family)
	}
}
