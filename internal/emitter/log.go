package emitter

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/yairfalse/richeck/pkg/reservation"
)

// LogEmitter writes a per-family summary of the report to a zerolog logger.
type LogEmitter struct {
	logger zerolog.Logger
}

// NewLogEmitter creates a log emitter.
func NewLogEmitter(logger zerolog.Logger) *LogEmitter {
	return &LogEmitter{logger: logger}
}

// Emit logs one line per family and one per unreserved resource at debug level.
func (e *LogEmitter) Emit(_ context.Context, report reservation.Report) error {
	for _, fr := range report.Families {
		e.logger.Info().
			Str("region", report.Region).
			Str("family", string(fr.Family)).
			Int("running", fr.Running).
			Int("unreserved", len(fr.Unreserved)).
			Int("excluded", len(fr.Excluded)).
			Int("unused_units", reservation.Units(fr.Unused)).
			Msg("reservation check")

		for _, r := range fr.Unreserved {
			e.logger.Debug().
				Str("family", string(fr.Family)).
				Str("id", r.ResourceID).
				Str("name", r.ResourceName).
				Str("type", r.ResourceType).
				Str("group", r.GroupKey).
				Time("launched", r.LaunchTime).
				Msg("unreserved resource")
		}
	}

	e.logger.Info().
		Str("region", report.Region).
		Int("unreserved", report.UnreservedCount()).
		Int("excluded", report.ExcludedCount()).
		Dur("duration", report.Duration).
		Msg("check complete")

	return nil
}

// Close is a no-op for the log emitter.
func (e *LogEmitter) Close() error {
	return nil
}
