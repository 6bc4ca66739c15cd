package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/redshift"
	redshifttypes "github.com/aws/aws-sdk-go-v2/service/redshift/types"
	"github.com/rs/zerolog/log"

	"github.com/yairfalse/richeck/pkg/reservation"
)

// RedshiftProvider reports reserved nodes and available cluster nodes.
type RedshiftProvider struct {
	region string
	client RedshiftAPI
}

// NewRedshiftProvider creates the warehouse provider.
func NewRedshiftProvider(region string, client RedshiftAPI) *RedshiftProvider {
	return &RedshiftProvider{region: region, client: client}
}

// Family returns the warehouse family.
func (p *RedshiftProvider) Family() reservation.Family {
	return reservation.Warehouse
}

// Equivalence matches on the node type compare key.
func (p *RedshiftProvider) Equivalence() reservation.Equivalence {
	return reservation.ByCompareKey
}

// Reservations returns active reserved nodes.
func (p *RedshiftProvider) Reservations(ctx context.Context) ([]reservation.Reservation, error) {
	var reservations []reservation.Reservation
	var marker *string

	for {
		output, err := p.client.DescribeReservedNodes(ctx, &redshift.DescribeReservedNodesInput{Marker: marker})
		if err != nil {
			return nil, fmt.Errorf("describe reserved nodes: %w", err)
		}

		for _, node := range output.ReservedNodes {
			if aws.ToString(node.State) != "active" {
				continue
			}
			nodeType := aws.ToString(node.NodeType)
			reservations = append(reservations, reservation.Reservation{
				ReservationID: aws.ToString(node.ReservedNodeId),
				ResourceType:  nodeType,
				InstanceCount: int(aws.ToInt32(node.NodeCount)),
				CompareKey:    nodeType,
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

// Running returns one resource per node of every available cluster.
func (p *RedshiftProvider) Running(ctx context.Context) ([]reservation.RunningResource, error) {
	var resources []reservation.RunningResource
	var marker *string

	for {
		output, err := p.client.DescribeClusters(ctx, &redshift.DescribeClustersInput{Marker: marker})
		if err != nil {
			return nil, fmt.Errorf("describe clusters: %w", err)
		}

		for _, cluster := range output.Clusters {
			if aws.ToString(cluster.ClusterStatus) != "available" {
				continue
			}
			resources = append(resources, convertRedshiftCluster(cluster)...)
		}

		if output.Marker == nil {
			break
		}
		marker = output.Marker
	}

	log.Debug().Str("family", string(p.Family())).Int("count", len(resources)).Msg("running resources fetched")
	return resources, nil
}

func convertRedshiftCluster(cluster redshifttypes.Cluster) []reservation.RunningResource {
	id := aws.ToString(cluster.ClusterIdentifier)
	nodeType := aws.ToString(cluster.NodeType)
	base := reservation.RunningResource{
		GroupKey:         nodeType,
		ResourceID:       id,
		ResourceType:     nodeType,
		AvailabilityZone: aws.ToString(cluster.AvailabilityZone),
		LaunchTime:       aws.ToTime(cluster.ClusterCreateTime),
		ResourceName:     id,
		CompareKey:       nodeType,
	}
	return expandNodes(base, int(aws.ToInt32(cluster.NumberOfNodes)))
}

// DetailURL links to the Redshift clusters view.
func (p *RedshiftProvider) DetailURL(resources []reservation.RunningResource) string {
	if len(resources) == 0 {
		return ""
	}
	return consoleURL(p.region, "redshiftv2/home?region="+p.region+"#clusters")
}
