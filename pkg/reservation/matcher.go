package reservation

// Equivalence is the family-specific secondary key check. The resource type
// is always compared by the matcher itself.
type Equivalence func(r Reservation, res RunningResource) bool

// ByZone matches on availability zone.
func ByZone(r Reservation, res RunningResource) bool {
	return r.AvailabilityZone == res.AvailabilityZone
}

// ByCompareKey matches on the family discriminator (Multi-AZ flag, node type).
func ByCompareKey(r Reservation, res RunningResource) bool {
	return r.CompareKey == res.CompareKey
}

// ByZoneOrRegional matches on zone, treating a reservation without a zone as
// region scoped and therefore valid in every zone.
func ByZoneOrRegional(r Reservation, res RunningResource) bool {
	return r.AvailabilityZone == "" || r.AvailabilityZone == res.AvailabilityZone
}

// FindUnreserved returns the running resources that no reservation covers.
//
// Matching is greedy first-fit: each resource, in order, takes one unit from
// the first reservation in list order with the same type, remaining capacity
// and an equivalent secondary key. The reservations slice is consumed in
// place; callers must pass a fresh slice per pass.
func FindUnreserved(reservations []Reservation, running []RunningResource, eq Equivalence) []RunningResource {
	if eq == nil {
		eq = ByZone
	}

	var unreserved []RunningResource
	for _, res := range running {
		if !consume(reservations, res, eq) {
			unreserved = append(unreserved, res)
		}
	}
	return unreserved
}

func consume(reservations []Reservation, res RunningResource, eq Equivalence) bool {
	for i := range reservations {
		r := &reservations[i]
		if r.InstanceCount <= 0 || r.ResourceType != res.ResourceType {
			continue
		}
		if !eq(*r, res) {
			continue
		}
		r.InstanceCount--
		return true
	}
	return false
}

// Unused returns reservations that still hold capacity, in list order.
// Meaningful only after a FindUnreserved pass over the same slice.
func Unused(reservations []Reservation) []Reservation {
	var unused []Reservation
	for _, r := range reservations {
		if r.InstanceCount > 0 {
			unused = append(unused, r)
		}
	}
	return unused
}

// Units sums remaining capacity.
func Units(reservations []Reservation) int {
	total := 0
	for _, r := range reservations {
		if r.InstanceCount > 0 {
			total += r.InstanceCount
		}
	}
	return total
}
