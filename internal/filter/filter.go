// Package filter diverts excluded resources out of the unreserved report.
package filter

import (
	"fmt"
	"regexp"

	"github.com/yairfalse/richeck/pkg/reservation"
)

// Filter routes resources by name against an optional exclude pattern.
type Filter struct {
	pattern *regexp.Regexp
}

// New compiles the exclude pattern. An empty pattern means no exclusion.
func New(pattern string) (*Filter, error) {
	if pattern == "" {
		return &Filter{}, nil
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile exclude pattern %q: %w", pattern, err)
	}
	return &Filter{pattern: re}, nil
}

// IsEmpty returns true if no pattern is configured.
func (f *Filter) IsEmpty() bool {
	return f == nil || f.pattern == nil
}

// Pattern returns the configured pattern, or "" when none.
func (f *Filter) Pattern() string {
	if f.IsEmpty() {
		return ""
	}
	return f.pattern.String()
}

// ShouldExclude returns true if the resource name matches the pattern.
// A resource without a name is never excluded.
func (f *Filter) ShouldExclude(r reservation.RunningResource) bool {
	if f.IsEmpty() || r.ResourceName == "" {
		return false
	}
	return f.pattern.MatchString(r.ResourceName)
}

// Partition splits unreserved resources into kept and excluded, preserving
// order within each bucket.
func (f *Filter) Partition(unreserved []reservation.RunningResource) (kept, excluded []reservation.RunningResource) {
	if f.IsEmpty() {
		return unreserved, nil
	}

	kept = make([]reservation.RunningResource, 0, len(unreserved))
	for _, r := range unreserved {
		if f.ShouldExclude(r) {
			excluded = append(excluded, r)
		} else {
			kept = append(kept, r)
		}
	}
	return kept, excluded
}
