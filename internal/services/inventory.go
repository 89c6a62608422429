// Package services implements the bulk operations run against a cluster's
// services: inventory reads, dependency audits, cluster diffing and the
// sync/update orchestration.
package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"

	"github.com/okrause/ecsctl/internal/awsapi"
	"github.com/okrause/ecsctl/internal/retry"
	"github.com/okrause/ecsctl/pkg"
)

// ServiceName returns the name of a described service. A descriptor without
// a name cannot be acted on.
func ServiceName(svc ecstypes.Service) (string, error) {
	if svc.ServiceName == nil || *svc.ServiceName == "" {
		return "", fmt.Errorf("no service name found for %s", aws.ToString(svc.ServiceArn))
	}
	return *svc.ServiceName, nil
}

// ListServiceARNs pages through every service in cluster, in the order the
// control plane returns them.
func ListServiceARNs(ctx context.Context, client awsapi.ECSAPI, cluster string) ([]string, error) {
	var arns []string
	var token *string

	for {
		out, err := retry.Do(ctx, fmt.Sprintf("listing services in %s", cluster), retry.ThrottledAPIError,
			func() (*ecs.ListServicesOutput, error) {
				return client.ListServices(ctx, &ecs.ListServicesInput{
					Cluster:   aws.String(cluster),
					NextToken: token,
				})
			})
		if err != nil {
			return nil, err
		}

		arns = append(arns, out.ServiceArns...)

		if out.NextToken == nil {
			return arns, nil
		}
		token = out.NextToken
	}
}

// DescribeService fetches one service's full descriptor. A named service
// that cannot be described is a data-integrity error, not something to retry.
func DescribeService(ctx context.Context, client awsapi.ECSAPI, cluster, service string) (ecstypes.Service, error) {
	out, err := retry.Do(ctx, fmt.Sprintf("describing %s/%s", cluster, service), retry.ThrottledAPIError,
		func() (*ecs.DescribeServicesOutput, error) {
			return client.DescribeServices(ctx, &ecs.DescribeServicesInput{
				Cluster:  aws.String(cluster),
				Services: []string{service},
			})
		})
	if err != nil {
		return ecstypes.Service{}, err
	}

	if len(out.Failures) > 0 {
		return ecstypes.Service{}, fmt.Errorf("describing %s/%s: %s", cluster, service, formatFailures(out.Failures))
	}
	if len(out.Services) == 0 {
		return ecstypes.Service{}, fmt.Errorf("no service description for %s", service)
	}

	return out.Services[0], nil
}

// DescribeServices lists then describes every service in cluster,
// sequentially. The first describe failure aborts the whole call.
func DescribeServices(ctx context.Context, client awsapi.ECSAPI, cluster string) ([]ecstypes.Service, error) {
	arns, err := ListServiceARNs(ctx, client, cluster)
	if err != nil {
		return nil, err
	}

	services := make([]ecstypes.Service, 0, len(arns))
	for _, arn := range arns {
		svc, err := DescribeService(ctx, client, cluster, arn)
		if err != nil {
			return nil, err
		}
		services = append(services, svc)
	}
	return services, nil
}

// Summarize flattens descriptors into the rows used by info, export and the
// dashboard.
func Summarize(cluster string, services []ecstypes.Service) []pkg.ServiceSummary {
	summaries := make([]pkg.ServiceSummary, 0, len(services))
	for _, svc := range services {
		summaries = append(summaries, pkg.ServiceSummary{
			Cluster:        cluster,
			ServiceName:    aws.ToString(svc.ServiceName),
			TaskDefinition: aws.ToString(svc.TaskDefinition),
			RunningCount:   svc.RunningCount,
			DesiredCount:   svc.DesiredCount,
			Status:         aws.ToString(svc.Status),
		})
	}
	return summaries
}

// Poll re-describes cluster every interval and sends the fresh summaries
// until ctx is cancelled. Refresh errors are skipped; the next tick tries
// again.
func Poll(ctx context.Context, client awsapi.ECSAPI, cluster string, interval time.Duration) <-chan []pkg.ServiceSummary {
	updates := make(chan []pkg.ServiceSummary)

	go func() {
		defer close(updates)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				described, err := DescribeServices(ctx, client, cluster)
				if err != nil {
					continue
				}
				select {
				case updates <- Summarize(cluster, described):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return updates
}

func formatFailures(failures []ecstypes.Failure) string {
	parts := make([]string, 0, len(failures))
	for _, f := range failures {
		parts = append(parts, fmt.Sprintf("%s (%s)", aws.ToString(f.Arn), aws.ToString(f.Reason)))
	}
	return strings.Join(parts, ", ")
}
