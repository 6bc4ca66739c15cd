package aws

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/rs/zerolog/log"

	"github.com/yairfalse/richeck/pkg/reservation"
)

// EC2Provider reports EC2 reserved instances and running instances.
type EC2Provider struct {
	region string
	client EC2API
}

// NewEC2Provider creates the compute provider.
func NewEC2Provider(region string, client EC2API) *EC2Provider {
	return &EC2Provider{region: region, client: client}
}

// Family returns the compute family.
func (p *EC2Provider) Family() reservation.Family {
	return reservation.Compute
}

// Equivalence matches on zone; region scoped reservations carry no zone and
// apply to every zone.
func (p *EC2Provider) Equivalence() reservation.Equivalence {
	return reservation.ByZoneOrRegional
}

// Reservations returns active reserved instances.
func (p *EC2Provider) Reservations(ctx context.Context) ([]reservation.Reservation, error) {
	output, err := p.client.DescribeReservedInstances(ctx, &ec2.DescribeReservedInstancesInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("state"), Values: []string{"active"}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("describe reserved instances: %w", err)
	}

	reservations := make([]reservation.Reservation, 0, len(output.ReservedInstances))
	for _, ri := range output.ReservedInstances {
		reservations = append(reservations, convertReservedInstance(ri))
	}

	log.Debug().Str("family", string(p.Family())).Int("count", len(reservations)).Msg("reservations fetched")
	return reservations, nil
}

func convertReservedInstance(ri ec2types.ReservedInstances) reservation.Reservation {
	r := reservation.Reservation{
		ReservationID: aws.ToString(ri.ReservedInstancesId),
		ResourceType:  string(ri.InstanceType),
		InstanceCount: int(aws.ToInt32(ri.InstanceCount)),
	}
	if ri.Scope != ec2types.ScopeRegional {
		r.AvailabilityZone = aws.ToString(ri.AvailabilityZone)
	}
	return r
}

// Running returns running instances.
func (p *EC2Provider) Running(ctx context.Context) ([]reservation.RunningResource, error) {
	var resources []reservation.RunningResource
	var nextToken *string

	for {
		output, err := p.client.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
			Filters: []ec2types.Filter{
				{Name: aws.String("instance-state-name"), Values: []string{"running"}},
			},
			NextToken: nextToken,
		})
		if err != nil {
			return nil, fmt.Errorf("describe instances: %w", err)
		}

		for _, group := range output.Reservations {
			for _, instance := range group.Instances {
				resources = append(resources, convertEC2Instance(instance))
			}
		}

		if output.NextToken == nil {
			break
		}
		nextToken = output.NextToken
	}

	log.Debug().Str("family", string(p.Family())).Int("count", len(resources)).Msg("running resources fetched")
	return resources, nil
}

func convertEC2Instance(instance ec2types.Instance) reservation.RunningResource {
	var az string
	if instance.Placement != nil {
		az = aws.ToString(instance.Placement.AvailabilityZone)
	}
	typ := string(instance.InstanceType)
	return reservation.RunningResource{
		GroupKey:         fmt.Sprintf("%s @ %s", typ, az),
		ResourceID:       aws.ToString(instance.InstanceId),
		ResourceType:     typ,
		AvailabilityZone: az,
		LaunchTime:       aws.ToTime(instance.LaunchTime),
		ResourceName:     extractNameTag(instance.Tags),
	}
}

// DetailURL links to the instances view filtered to the given ids.
func (p *EC2Provider) DetailURL(resources []reservation.RunningResource) string {
	if len(resources) == 0 {
		return ""
	}

	ids := make([]string, 0, len(resources))
	for _, r := range resources {
		ids = append(ids, r.ResourceID)
	}
	path := fmt.Sprintf("ec2/v2/home?region=%s#Instances:instanceId=%s;sort=instanceId", p.region, strings.Join(ids, ","))
	return consoleURL(p.region, path)
}

// extractNameTag extracts the Name tag from EC2 tags.
func extractNameTag(tags []ec2types.Tag) string {
	for _, tag := range tags {
		if aws.ToString(tag.Key) == "Name" {
			return aws.ToString(tag.Value)
		}
	}
	return ""
}
