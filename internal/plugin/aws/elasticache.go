package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/elasticache"
	ectypes "github.com/aws/aws-sdk-go-v2/service/elasticache/types"
	"github.com/rs/zerolog/log"

	"github.com/yairfalse/richeck/pkg/reservation"
)

// ElastiCacheProvider reports reserved cache nodes and cache cluster nodes.
type ElastiCacheProvider struct {
	region string
	client ElastiCacheAPI
}

// NewElastiCacheProvider creates the cache provider.
func NewElastiCacheProvider(region string, client ElastiCacheAPI) *ElastiCacheProvider {
	return &ElastiCacheProvider{region: region, client: client}
}

// Family returns the cache family.
func (p *ElastiCacheProvider) Family() reservation.Family {
	return reservation.Cache
}

// Equivalence matches on the node type compare key.
func (p *ElastiCacheProvider) Equivalence() reservation.Equivalence {
	return reservation.ByCompareKey
}

// Reservations returns active reserved cache nodes.
func (p *ElastiCacheProvider) Reservations(ctx context.Context) ([]reservation.Reservation, error) {
	var reservations []reservation.Reservation
	var marker *string

	for {
		output, err := p.client.DescribeReservedCacheNodes(ctx, &elasticache.DescribeReservedCacheNodesInput{Marker: marker})
		if err != nil {
			return nil, fmt.Errorf("describe reserved cache nodes: %w", err)
		}

		for _, node := range output.ReservedCacheNodes {
			if aws.ToString(node.State) != "active" {
				continue
			}
			nodeType := aws.ToString(node.CacheNodeType)
			reservations = append(reservations, reservation.Reservation{
				ReservationID: aws.ToString(node.ReservedCacheNodeId),
				ResourceType:  nodeType,
				InstanceCount: int(aws.ToInt32(node.CacheNodeCount)),
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

// Running returns one resource per cache node. Single node clusters keep the
// cluster id; multi node clusters suffix the node index.
func (p *ElastiCacheProvider) Running(ctx context.Context) ([]reservation.RunningResource, error) {
	var resources []reservation.RunningResource
	var marker *string

	for {
		output, err := p.client.DescribeCacheClusters(ctx, &elasticache.DescribeCacheClustersInput{Marker: marker})
		if err != nil {
			return nil, fmt.Errorf("describe cache clusters: %w", err)
		}

		for _, cluster := range output.CacheClusters {
			resources = append(resources, convertCacheCluster(cluster)...)
		}

		if output.Marker == nil {
			break
		}
		marker = output.Marker
	}

	log.Debug().Str("family", string(p.Family())).Int("count", len(resources)).Msg("running resources fetched")
	return resources, nil
}

func convertCacheCluster(cluster ectypes.CacheCluster) []reservation.RunningResource {
	id := aws.ToString(cluster.CacheClusterId)
	nodeType := aws.ToString(cluster.CacheNodeType)
	base := reservation.RunningResource{
		GroupKey:     nodeType,
		ResourceID:   id,
		ResourceType: nodeType,
		LaunchTime:   aws.ToTime(cluster.CacheClusterCreateTime),
		ResourceName: id,
		CompareKey:   nodeType,
	}
	return expandNodes(base, int(aws.ToInt32(cluster.NumCacheNodes)))
}

// expandNodes yields one resource per node, each consuming its own
// reservation unit.
func expandNodes(base reservation.RunningResource, nodes int) []reservation.RunningResource {
	if nodes <= 1 {
		return []reservation.RunningResource{base}
	}

	out := make([]reservation.RunningResource, 0, nodes)
	for i := 1; i <= nodes; i++ {
		r := base
		r.ResourceID = fmt.Sprintf("%s#%d", base.ResourceID, i)
		out = append(out, r)
	}
	return out
}

// DetailURL links to the ElastiCache console.
func (p *ElastiCacheProvider) DetailURL(resources []reservation.RunningResource) string {
	if len(resources) == 0 {
		return ""
	}
	return consoleURL(p.region, "elasticache/home?region="+p.region)
}
