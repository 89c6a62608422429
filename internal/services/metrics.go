package services

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/okrause/ecsctl/internal/awsapi"
)

const metricsWindow = 5 * time.Minute

// Metrics holds a service's average utilization over the last metrics
// window.
type Metrics struct {
	CPUUtilization    float64
	MemoryUtilization float64
}

// ServiceMetrics reads a service's average CPU and memory utilization from
// CloudWatch.
func ServiceMetrics(ctx context.Context, client awsapi.CloudWatchAPI, cluster, service string) (*Metrics, error) {
	endTime := time.Now()
	startTime := endTime.Add(-metricsWindow)

	cpu, err := getMetric(ctx, client, "CPUUtilization", cluster, service, startTime, endTime)
	if err != nil {
		return nil, fmt.Errorf("fetching CPUUtilization: %w", err)
	}

	memory, err := getMetric(ctx, client, "MemoryUtilization", cluster, service, startTime, endTime)
	if err != nil {
		return nil, fmt.Errorf("fetching MemoryUtilization: %w", err)
	}

	return &Metrics{CPUUtilization: cpu, MemoryUtilization: memory}, nil
}

func getMetric(ctx context.Context, client awsapi.CloudWatchAPI, metricName, cluster, service string, startTime, endTime time.Time) (float64, error) {
	out, err := client.GetMetricStatistics(ctx, &cloudwatch.GetMetricStatisticsInput{
		Namespace:  aws.String("AWS/ECS"),
		MetricName: aws.String(metricName),
		StartTime:  aws.Time(startTime),
		EndTime:    aws.Time(endTime),
		Period:     aws.Int32(int32(metricsWindow / time.Second)),
		Statistics: []cwtypes.Statistic{cwtypes.StatisticAverage},
		Dimensions: []cwtypes.Dimension{
			{Name: aws.String("ClusterName"), Value: aws.String(cluster)},
			{Name: aws.String("ServiceName"), Value: aws.String(service)},
		},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to get metric %s: %w", metricName, err)
	}

	if len(out.Datapoints) == 0 {
		return 0, nil
	}
	return aws.ToFloat64(out.Datapoints[0].Average), nil
}
