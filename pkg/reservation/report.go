package reservation

import "time"

// FamilyResult is the outcome of one matching pass for one family.
type FamilyResult struct {
	Family     Family
	Running    int               // Running resources fetched
	Unreserved []RunningResource // Not covered and not excluded
	Excluded   []RunningResource // Not covered but matched the exclude pattern
	Unused     []Reservation     // Reservations with capacity left over
	DetailURL  string            // Console link for Unreserved, empty when none
}

// Report holds the results of one check run.
type Report struct {
	Region   string
	Families []FamilyResult
	Started  time.Time
	Duration time.Duration
}

// UnreservedCount sums unreserved resources over all families.
func (r Report) UnreservedCount() int {
	n := 0
	for _, f := range r.Families {
		n += len(f.Unreserved)
	}
	return n
}

// ExcludedCount sums excluded resources over all families.
func (r Report) ExcludedCount() int {
	n := 0
	for _, f := range r.Families {
		n += len(f.Excluded)
	}
	return n
}
