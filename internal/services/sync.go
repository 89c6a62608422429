package services

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"
	"github.com/rs/zerolog/log"

	"github.com/okrause/ecsctl/internal/awsapi"
	"github.com/okrause/ecsctl/internal/retry"
)

const defaultRoleSuffix = "ECSServiceRole"

// Compare returns every source service whose name does not appear in the
// destination cluster, in source enumeration order. Names are compared
// exactly.
func Compare(ctx context.Context, source awsapi.ECSAPI, sourceCluster string, destination awsapi.ECSAPI, destinationCluster string) ([]ecstypes.Service, error) {
	sourceServices, err := DescribeServices(ctx, source, sourceCluster)
	if err != nil {
		return nil, err
	}
	destinationServices, err := DescribeServices(ctx, destination, destinationCluster)
	if err != nil {
		return nil, err
	}

	destinationNames := make(map[string]struct{}, len(destinationServices))
	for _, svc := range destinationServices {
		destinationNames[aws.ToString(svc.ServiceName)] = struct{}{}
	}

	var sourceOnly []ecstypes.Service
	for _, svc := range sourceServices {
		if _, ok := destinationNames[aws.ToString(svc.ServiceName)]; !ok {
			sourceOnly = append(sourceOnly, svc)
		}
	}
	return sourceOnly, nil
}

// CreateService clones template into cluster. When the template routes
// traffic through a load balancer and does not use awsvpc networking, the
// service role "<cluster>-<suffix>" is passed explicitly; otherwise the
// control plane infers it.
func CreateService(ctx context.Context, client awsapi.ECSAPI, cluster string, template ecstypes.Service, roleSuffix string) (*ecstypes.Service, error) {
	name, err := ServiceName(template)
	if err != nil {
		return nil, err
	}
	if template.TaskDefinition == nil {
		return nil, fmt.Errorf("no task definition found for %s", name)
	}

	hasLoadBalancer := len(template.LoadBalancers) > 0
	isAwsvpc := template.NetworkConfiguration != nil && template.NetworkConfiguration.AwsvpcConfiguration != nil

	var role *string
	if hasLoadBalancer && !isAwsvpc {
		suffix := roleSuffix
		if suffix == "" {
			suffix = defaultRoleSuffix
		}
		role = aws.String(fmt.Sprintf("%s-%s", cluster, suffix))
	}

	log.Info().Str("cluster", cluster).Str("service", name).Str("role", aws.ToString(role)).Msg("creating service")

	out, err := client.CreateService(ctx, &ecs.CreateServiceInput{
		Cluster:                       aws.String(cluster),
		ServiceName:                   aws.String(name),
		TaskDefinition:                template.TaskDefinition,
		DesiredCount:                  aws.Int32(template.DesiredCount),
		DeploymentConfiguration:       template.DeploymentConfiguration,
		HealthCheckGracePeriodSeconds: template.HealthCheckGracePeriodSeconds,
		LaunchType:                    template.LaunchType,
		LoadBalancers:                 template.LoadBalancers,
		NetworkConfiguration:          template.NetworkConfiguration,
		PlacementConstraints:          template.PlacementConstraints,
		PlacementStrategy:             template.PlacementStrategy,
		PlatformVersion:               template.PlatformVersion,
		Role:                          role,
	})
	if err != nil {
		return nil, err
	}
	if out.Service == nil {
		return nil, fmt.Errorf("created %s/%s but no descriptor was returned", cluster, name)
	}
	return out.Service, nil
}

// Modification describes how UpdateAll changes a service's desired count:
// either one uniform count, or a per-service lookup.
type Modification interface {
	desiredCount(service string) (int32, error)
}

// UniformCount applies the same desired count to every service.
type UniformCount int32

func (c UniformCount) desiredCount(string) (int32, error) { return int32(c), nil }

// CountMap applies a per-service desired count. A service missing from the
// map is a caller error, not a silent skip.
type CountMap map[string]int32

func (m CountMap) desiredCount(service string) (int32, error) {
	count, ok := m[service]
	if !ok {
		return 0, fmt.Errorf("no desired count given for service %s", service)
	}
	return count, nil
}

// SyncReport summarizes one sync run.
type SyncReport struct {
	Created []string
	// Skipped maps each unhealthy source-only service to its audit findings.
	Skipped map[string][]string
	Failed  []string
}

// Orchestrator runs the mutating bulk operations. Source holds the clients
// for the cluster being read (and audited); Destination receives created
// services during Sync. Pause is the wait inserted between mutating calls to
// stay under the control plane's rate limits; Sleep is swappable for tests.
type Orchestrator struct {
	Source      awsapi.ECSAPI
	SourceECR   awsapi.ECRAPI
	SourceELB   awsapi.ELBAPI
	Destination awsapi.ECSAPI

	Pause time.Duration
	Sleep func(time.Duration)
}

func (o *Orchestrator) pause() {
	if o.Pause <= 0 {
		return
	}
	sleep := o.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	sleep(o.Pause)
}

// Sync creates every healthy source-only service in the destination cluster.
// Unhealthy services are skipped and individual creation failures are logged
// and counted; the run continues past both.
func (o *Orchestrator) Sync(ctx context.Context, sourceCluster, destinationCluster, roleSuffix string) (*SyncReport, error) {
	sourceOnly, err := Compare(ctx, o.Source, sourceCluster, o.Destination, destinationCluster)
	if err != nil {
		return nil, err
	}

	report := &SyncReport{Skipped: make(map[string][]string)}
	for _, svc := range sourceOnly {
		name, err := ServiceName(svc)
		if err != nil {
			return nil, err
		}

		findings, err := Audit(ctx, o.Source, o.SourceECR, o.SourceELB, svc)
		if err != nil {
			return nil, err
		}
		if len(findings) > 0 {
			log.Warn().Str("service", name).Strs("findings", findings).Msg("skipping unhealthy service")
			report.Skipped[name] = findings
			continue
		}

		o.pause()

		if _, err := CreateService(ctx, o.Destination, destinationCluster, svc, roleSuffix); err != nil {
			log.Error().Err(err).Str("service", name).Msg("failed to create service")
			report.Failed = append(report.Failed, name)
			continue
		}
		report.Created = append(report.Created, name)
	}

	return report, nil
}

// UpdateAll applies mod to every service in cluster, sequentially, pausing
// between calls. The first failure aborts the run.
func (o *Orchestrator) UpdateAll(ctx context.Context, cluster string, mod Modification) error {
	described, err := DescribeServices(ctx, o.Source, cluster)
	if err != nil {
		return err
	}

	for i, svc := range described {
		if i > 0 {
			o.pause()
		}
		if err := o.updateDesiredCount(ctx, cluster, svc, mod); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) updateDesiredCount(ctx context.Context, cluster string, svc ecstypes.Service, mod Modification) error {
	name, err := ServiceName(svc)
	if err != nil {
		return err
	}
	count, err := mod.desiredCount(name)
	if err != nil {
		return err
	}

	log.Info().Msgf("Updating %s/%s's desired count to %d. It was %d", cluster, name, count, svc.DesiredCount)

	out, err := retry.Do(ctx, fmt.Sprintf("updating %s/%s", cluster, name), retry.ThrottledAPIError,
		func() (*ecs.UpdateServiceOutput, error) {
			return o.Source.UpdateService(ctx, &ecs.UpdateServiceInput{
				Cluster:      aws.String(cluster),
				Service:      aws.String(name),
				DesiredCount: aws.Int32(count),
			})
		})
	if err != nil {
		return err
	}
	if out.Service == nil {
		return fmt.Errorf("updated %s/%s but no descriptor was returned", cluster, name)
	}
	return nil
}

// Restart forces a new deployment of one service without changing anything
// else about it.
func Restart(ctx context.Context, client awsapi.ECSAPI, cluster, service string) error {
	_, err := retry.Do(ctx, fmt.Sprintf("restarting %s/%s", cluster, service), retry.ThrottledAPIError,
		func() (*ecs.UpdateServiceOutput, error) {
			return client.UpdateService(ctx, &ecs.UpdateServiceInput{
				Cluster:            aws.String(cluster),
				Service:            aws.String(service),
				ForceNewDeployment: true,
			})
		})
	return err
}

// UpdateDesiredCount sets one service's desired count. Used by the dashboard.
func UpdateDesiredCount(ctx context.Context, client awsapi.ECSAPI, cluster, service string, count int32) error {
	_, err := retry.Do(ctx, fmt.Sprintf("updating %s/%s", cluster, service), retry.ThrottledAPIError,
		func() (*ecs.UpdateServiceOutput, error) {
			return client.UpdateService(ctx, &ecs.UpdateServiceInput{
				Cluster:      aws.String(cluster),
				Service:      aws.String(service),
				DesiredCount: aws.Int32(count),
			})
		})
	return err
}
