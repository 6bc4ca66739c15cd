package aws

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/redshift"
	redshifttypes "github.com/aws/aws-sdk-go-v2/service/redshift/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/richeck/pkg/reservation"
)

type mockRedshiftClient struct {
	DescribeReservedNodesFunc func(ctx context.Context, params *redshift.DescribeReservedNodesInput, optFns ...func(*redshift.Options)) (*redshift.DescribeReservedNodesOutput, error)
	DescribeClustersFunc      func(ctx context.Context, params *redshift.DescribeClustersInput, optFns ...func(*redshift.Options)) (*redshift.DescribeClustersOutput, error)
}

func (m *mockRedshiftClient) DescribeReservedNodes(ctx context.Context, params *redshift.DescribeReservedNodesInput, optFns ...func(*redshift.Options)) (*redshift.DescribeReservedNodesOutput, error) {
	if m.DescribeReservedNodesFunc != nil {
		return m.DescribeReservedNodesFunc(ctx, params, optFns...)
	}
	return &redshift.DescribeReservedNodesOutput{}, nil
}

func (m *mockRedshiftClient) DescribeClusters(ctx context.Context, params *redshift.DescribeClustersInput, optFns ...func(*redshift.Options)) (*redshift.DescribeClustersOutput, error) {
	if m.DescribeClustersFunc != nil {
		return m.DescribeClustersFunc(ctx, params, optFns...)
	}
	return &redshift.DescribeClustersOutput{}, nil
}

func TestRedshiftReservations(t *testing.T) {
	mock := &mockRedshiftClient{
		DescribeReservedNodesFunc: func(_ context.Context, _ *redshift.DescribeReservedNodesInput, _ ...func(*redshift.Options)) (*redshift.DescribeReservedNodesOutput, error) {
			return &redshift.DescribeReservedNodesOutput{
				ReservedNodes: []redshifttypes.ReservedNode{
					{ReservedNodeId: aws.String("rn-1"), NodeType: aws.String("ra3.xlplus"), NodeCount: aws.Int32(2), State: aws.String("active")},
					{ReservedNodeId: aws.String("rn-2"), NodeType: aws.String("dc2.large"), NodeCount: aws.Int32(4), State: aws.String("retired")},
				},
			}, nil
		},
	}

	p := NewRedshiftProvider("us-east-1", mock)
	reservations, err := p.Reservations(context.Background())

	require.NoError(t, err)
	require.Len(t, reservations, 1)
	assert.Equal(t, reservation.Reservation{
		ReservationID: "rn-1",
		ResourceType:  "ra3.xlplus",
		InstanceCount: 2,
		CompareKey:    "ra3.xlplus",
	}, reservations[0])
}

func TestRedshiftReservations_Error(t *testing.T) {
	mock := &mockRedshiftClient{
		DescribeReservedNodesFunc: func(_ context.Context, _ *redshift.DescribeReservedNodesInput, _ ...func(*redshift.Options)) (*redshift.DescribeReservedNodesOutput, error) {
			return nil, errors.New("access denied")
		},
	}

	p := NewRedshiftProvider("us-east-1", mock)
	_, err := p.Reservations(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "describe reserved nodes")
}

func TestRedshiftRunning(t *testing.T) {
	mock := &mockRedshiftClient{
		DescribeClustersFunc: func(_ context.Context, _ *redshift.DescribeClustersInput, _ ...func(*redshift.Options)) (*redshift.DescribeClustersOutput, error) {
			return &redshift.DescribeClustersOutput{
				Clusters: []redshifttypes.Cluster{
					{ClusterIdentifier: aws.String("warehouse"), NodeType: aws.String("ra3.xlplus"), NumberOfNodes: aws.Int32(3), ClusterStatus: aws.String("available"), AvailabilityZone: aws.String("us-east-1b")},
					{ClusterIdentifier: aws.String("paused"), NodeType: aws.String("ra3.xlplus"), NumberOfNodes: aws.Int32(2), ClusterStatus: aws.String("paused")},
				},
			}, nil
		},
	}

	p := NewRedshiftProvider("us-east-1", mock)
	resources, err := p.Running(context.Background())

	require.NoError(t, err)
	require.Len(t, resources, 3)
	assert.Equal(t, "warehouse#1", resources[0].ResourceID)
	assert.Equal(t, "warehouse", resources[0].ResourceName)
	assert.Equal(t, "ra3.xlplus", resources[0].CompareKey)
	assert.Equal(t, "us-east-1b", resources[0].AvailabilityZone)

	reservations := []reservation.Reservation{{ResourceType: "ra3.xlplus", CompareKey: "ra3.xlplus", InstanceCount: 2}}
	unreserved := reservation.FindUnreserved(reservations, resources, p.Equivalence())
	require.Len(t, unreserved, 1)
	assert.Equal(t, "warehouse#3", unreserved[0].ResourceID)
}

func TestRedshiftRunning_Error(t *testing.T) {
	mock := &mockRedshiftClient{
		DescribeClustersFunc: func(_ context.Context, _ *redshift.DescribeClustersInput, _ ...func(*redshift.Options)) (*redshift.DescribeClustersOutput, error) {
			return nil, errors.New("access denied")
		},
	}

	p := NewRedshiftProvider("us-east-1", mock)
	_, err := p.Running(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "describe clusters: access denied")
}

func TestRedshiftDetailURL(t *testing.T) {
	p := NewRedshiftProvider("us-west-2", &mockRedshiftClient{})

	assert.Equal(t, "", p.DetailURL(nil))
	assert.Equal(t, "https://us-west-2.console.aws.amazon.com/redshiftv2/home?region=us-west-2#clusters",
		p.DetailURL([]reservation.RunningResource{{ResourceID: "warehouse#1"}}))
}
