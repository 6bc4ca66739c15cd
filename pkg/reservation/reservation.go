// Package reservation defines the reservation model and the matcher that
// finds running resources not covered by any reservation.
package reservation

import "time"

// Family identifies a class of reservable resources.
type Family string

const (
	Compute   Family = "ec2"
	Database  Family = "rds"
	Cache     Family = "elasticache"
	Warehouse Family = "redshift"
)

// Families lists every known family in report order.
var Families = []Family{Compute, Database, Cache, Warehouse}

// Noun returns the plural display name used in notifications.
func (f Family) Noun() string {
	switch f {
	case Compute:
		return "EC2 instances"
	case Database:
		return "RDS instances"
	case Cache:
		return "ElastiCache nodes"
	case Warehouse:
		return "Redshift nodes"
	default:
		return string(f) + " resources"
	}
}

// Valid reports whether f is a known family.
func (f Family) Valid() bool {
	for _, known := range Families {
		if f == known {
			return true
		}
	}
	return false
}

// RunningResource is a currently active instance, normalized across families.
type RunningResource struct {
	GroupKey         string    `json:"group_key"`         // Display label, e.g. "t2.medium @ us-east-1a"
	ResourceID       string    `json:"resource_id"`       // Unique identifier
	ResourceType     string    `json:"resource_type"`     // Instance or node class
	AvailabilityZone string    `json:"availability_zone"` // Empty when not applicable
	LaunchTime       time.Time `json:"launch_time"`
	ResourceName     string    `json:"resource_name,omitempty"` // Empty means absent
	CompareKey       string    `json:"compare_key,omitempty"`
}

// DisplayName returns the name if present, the id otherwise.
func (r RunningResource) DisplayName() string {
	if r.ResourceName != "" {
		return r.ResourceName
	}
	return r.ResourceID
}

// Reservation is a purchased capacity commitment.
// InstanceCount is remaining capacity and is consumed by FindUnreserved.
type Reservation struct {
	ReservationID    string `json:"reservation_id,omitempty"`
	ResourceType     string `json:"resource_type"`
	AvailabilityZone string `json:"availability_zone"`
	InstanceCount    int    `json:"instance_count"`
	CompareKey       string `json:"compare_key,omitempty"`
}
