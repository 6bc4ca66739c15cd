package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	rdstypes "github.com/aws/aws-sdk-go-v2/service/rds/types"
	"github.com/rs/zerolog/log"

	"github.com/yairfalse/richeck/pkg/reservation"
)

// RDSProvider reports reserved DB instances and available DB instances.
// Reservations apply region wide and are keyed by the Multi-AZ flag.
type RDSProvider struct {
	region string
	client RDSAPI
}

// NewRDSProvider creates the database provider.
func NewRDSProvider(region string, client RDSAPI) *RDSProvider {
	return &RDSProvider{region: region, client: client}
}

// Family returns the database family.
func (p *RDSProvider) Family() reservation.Family {
	return reservation.Database
}

// Equivalence matches on the Multi-AZ compare key.
func (p *RDSProvider) Equivalence() reservation.Equivalence {
	return reservation.ByCompareKey
}

// Reservations returns active reserved DB instances.
func (p *RDSProvider) Reservations(ctx context.Context) ([]reservation.Reservation, error) {
	var reservations []reservation.Reservation
	var marker *string

	for {
		output, err := p.client.DescribeReservedDBInstances(ctx, &rds.DescribeReservedDBInstancesInput{Marker: marker})
		if err != nil {
			return nil, fmt.Errorf("describe reserved db instances: %w", err)
		}

		for _, ri := range output.ReservedDBInstances {
			if aws.ToString(ri.State) != "active" {
				continue
			}
			reservations = append(reservations, reservation.Reservation{
				ReservationID: aws.ToString(ri.ReservedDBInstanceId),
				ResourceType:  aws.ToString(ri.DBInstanceClass),
				InstanceCount: int(aws.ToInt32(ri.DBInstanceCount)),
				CompareKey:    multiAZKey(aws.ToBool(ri.MultiAZ)),
			})
		}

		if output.Marker == nil {
			break
		}
		marker = output.Marker
	}

	log.Debug().Str("family", string(p.Family())).Int("count", len(reservations)).Msg("reservations fetched")
	return reservations, nil
}

// Running returns DB instances in the available state.
func (p *RDSProvider) Running(ctx context.Context) ([]reservation.RunningResource, error) {
	var resources []reservation.RunningResource
	var marker *string

	for {
		output, err := p.client.DescribeDBInstances(ctx, &rds.DescribeDBInstancesInput{Marker: marker})
		if err != nil {
			return nil, fmt.Errorf("describe db instances: %w", err)
		}

		for _, instance := range output.DBInstances {
			if aws.ToString(instance.DBInstanceStatus) != "available" {
				continue
			}
			resources = append(resources, convertDBInstance(instance))
		}

		if output.Marker == nil {
			break
		}
		marker = output.Marker
	}

	log.Debug().Str("family", string(p.Family())).Int("count", len(resources)).Msg("running resources fetched")
	return resources, nil
}

func convertDBInstance(instance rdstypes.DBInstance) reservation.RunningResource {
	class := aws.ToString(instance.DBInstanceClass)
	multiAZ := aws.ToBool(instance.MultiAZ)

	with := "without"
	if multiAZ {
		with = "with"
	}

	return reservation.RunningResource{
		GroupKey:     fmt.Sprintf("%s %s MultiAZ", class, with),
		ResourceID:   aws.ToString(instance.DbiResourceId),
		ResourceType: class,
		LaunchTime:   aws.ToTime(instance.InstanceCreateTime),
		ResourceName: aws.ToString(instance.DBInstanceIdentifier),
		CompareKey:   multiAZKey(multiAZ),
	}
}

func multiAZKey(multiAZ bool) string {
	return fmt.Sprintf("MultiAZ-%t", multiAZ)
}

// DetailURL links to the RDS console.
func (p *RDSProvider) DetailURL(resources []reservation.RunningResource) string {
	if len(resources) == 0 {
		return ""
	}
	return consoleURL(p.region, "rds/home?region="+p.region)
}
