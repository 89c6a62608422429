package services

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestServiceMetrics(t *testing.T) {
	mockClient := new(MockCloudWatchClient)
	ctx := context.Background()

	mockClient.On("GetMetricStatistics", ctx, mock.MatchedBy(func(input *cloudwatch.GetMetricStatisticsInput) bool {
		return *input.MetricName == "CPUUtilization"
	}), mock.Anything).Return(&cloudwatch.GetMetricStatisticsOutput{
		Datapoints: []cwtypes.Datapoint{{Average: aws.Float64(42.5)}},
	}, nil).Once()

	mockClient.On("GetMetricStatistics", ctx, mock.MatchedBy(func(input *cloudwatch.GetMetricStatisticsInput) bool {
		return *input.MetricName == "MemoryUtilization"
	}), mock.Anything).Return(&cloudwatch.GetMetricStatisticsOutput{
		Datapoints: []cwtypes.Datapoint{{Average: aws.Float64(71.0)}},
	}, nil).Once()

	metrics, err := ServiceMetrics(ctx, mockClient, "live", "web")

	assert.NoError(t, err)
	assert.Equal(t, 42.5, metrics.CPUUtilization)
	assert.Equal(t, 71.0, metrics.MemoryUtilization)
	mockClient.AssertExpectations(t)
}

func TestServiceMetricsNoDatapoints(t *testing.T) {
	mockClient := new(MockCloudWatchClient)
	ctx := context.Background()

	mockClient.On("GetMetricStatistics", ctx, mock.Anything, mock.Anything).Return(&cloudwatch.GetMetricStatisticsOutput{}, nil).Times(2)

	metrics, err := ServiceMetrics(ctx, mockClient, "live", "web")

	assert.NoError(t, err)
	assert.Equal(t, 0.0, metrics.CPUUtilization)
	assert.Equal(t, 0.0, metrics.MemoryUtilization)
}
