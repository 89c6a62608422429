package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// clusterFixture wires a MockECSClient so that listing and describing
// cluster returns one service per name, with running == desired.
func clusterFixture(ctx context.Context, mockClient *MockECSClient, cluster string, names ...string) {
	arns := make([]string, 0, len(names))
	for _, name := range names {
		arns = append(arns, "arn:"+name)
	}

	mockClient.On("ListServices", ctx, mock.MatchedBy(func(input *ecs.ListServicesInput) bool {
		return *input.Cluster == cluster
	}), mock.Anything).Return(&ecs.ListServicesOutput{ServiceArns: arns}, nil)

	for _, name := range names {
		name := name
		mockClient.On("DescribeServices", ctx, mock.MatchedBy(func(input *ecs.DescribeServicesInput) bool {
			return *input.Cluster == cluster && input.Services[0] == "arn:"+name
		}), mock.Anything).Return(&ecs.DescribeServicesOutput{
			Services: []ecstypes.Service{{
				ServiceName:    aws.String(name),
				TaskDefinition: aws.String("arn:taskdef/" + name + ":1"),
				RunningCount:   1,
				DesiredCount:   1,
			}},
		}, nil)
	}
}

func serviceNames(t *testing.T, services []ecstypes.Service) []string {
	t.Helper()
	names := make([]string, 0, len(services))
	for _, svc := range services {
		name, err := ServiceName(svc)
		assert.NoError(t, err)
		names = append(names, name)
	}
	return names
}

func TestCompareReturnsSourceOnly(t *testing.T) {
	mockSource := new(MockECSClient)
	mockDestination := new(MockECSClient)
	ctx := context.Background()

	clusterFixture(ctx, mockSource, "live", "web", "worker")
	clusterFixture(ctx, mockDestination, "standby", "worker")

	sourceOnly, err := Compare(ctx, mockSource, "live", mockDestination, "standby")

	assert.NoError(t, err)
	assert.Equal(t, []string{"web"}, serviceNames(t, sourceOnly))
}

func TestCompareIdenticalClusters(t *testing.T) {
	mockClient := new(MockECSClient)
	ctx := context.Background()

	clusterFixture(ctx, mockClient, "live", "web", "worker")

	sourceOnly, err := Compare(ctx, mockClient, "live", mockClient, "live")

	assert.NoError(t, err)
	assert.Empty(t, sourceOnly)
}

func TestCreateServiceRoleInference(t *testing.T) {
	tests := []struct {
		name       string
		template   ecstypes.Service
		roleSuffix string
		wantRole   *string
	}{
		{
			name: "load balancer without awsvpc gets default role",
			template: ecstypes.Service{
				ServiceName:    aws.String("web"),
				TaskDefinition: aws.String("arn:taskdef/web:1"),
				LoadBalancers:  []ecstypes.LoadBalancer{{TargetGroupArn: aws.String("arn:tg/web")}},
			},
			wantRole: aws.String("standby-ECSServiceRole"),
		},
		{
			name: "custom role suffix",
			template: ecstypes.Service{
				ServiceName:    aws.String("web"),
				TaskDefinition: aws.String("arn:taskdef/web:1"),
				LoadBalancers:  []ecstypes.LoadBalancer{{TargetGroupArn: aws.String("arn:tg/web")}},
			},
			roleSuffix: "ServiceRole",
			wantRole:   aws.String("standby-ServiceRole"),
		},
		{
			name: "awsvpc networking leaves role inference to the control plane",
			template: ecstypes.Service{
				ServiceName:    aws.String("web"),
				TaskDefinition: aws.String("arn:taskdef/web:1"),
				LoadBalancers:  []ecstypes.LoadBalancer{{TargetGroupArn: aws.String("arn:tg/web")}},
				NetworkConfiguration: &ecstypes.NetworkConfiguration{
					AwsvpcConfiguration: &ecstypes.AwsVpcConfiguration{Subnets: []string{"subnet-1"}},
				},
			},
			wantRole: nil,
		},
		{
			name: "no load balancers",
			template: ecstypes.Service{
				ServiceName:    aws.String("worker"),
				TaskDefinition: aws.String("arn:taskdef/worker:1"),
			},
			wantRole: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockClient := new(MockECSClient)
			ctx := context.Background()

			mockClient.On("CreateService", ctx, mock.MatchedBy(func(input *ecs.CreateServiceInput) bool {
				if tt.wantRole == nil {
					return input.Role == nil
				}
				return aws.ToString(input.Role) == *tt.wantRole
			}), mock.Anything).Return(&ecs.CreateServiceOutput{
				Service: &ecstypes.Service{ServiceName: tt.template.ServiceName},
			}, nil).Once()

			created, err := CreateService(ctx, mockClient, "standby", tt.template, tt.roleSuffix)

			assert.NoError(t, err)
			assert.NotNil(t, created)
			mockClient.AssertExpectations(t)
		})
	}
}

func TestCreateServiceMissingTaskDefinition(t *testing.T) {
	_, err := CreateService(context.Background(), new(MockECSClient), "standby", ecstypes.Service{
		ServiceName: aws.String("web"),
	}, "")

	assert.EqualError(t, err, "no task definition found for web")
}

func TestSyncCreatesHealthyAndPauses(t *testing.T) {
	mockSource := new(MockECSClient)
	mockDestination := new(MockECSClient)
	ctx := context.Background()

	clusterFixture(ctx, mockSource, "live", "web", "worker")
	clusterFixture(ctx, mockDestination, "standby", "worker")

	// fixture services have task definitions with no container images
	mockSource.On("DescribeTaskDefinition", ctx, mock.Anything, mock.Anything).Return(&ecs.DescribeTaskDefinitionOutput{
		TaskDefinition: &ecstypes.TaskDefinition{},
	}, nil)

	mockDestination.On("CreateService", ctx, mock.MatchedBy(func(input *ecs.CreateServiceInput) bool {
		return *input.Cluster == "standby" && *input.ServiceName == "web"
	}), mock.Anything).Return(&ecs.CreateServiceOutput{
		Service: &ecstypes.Service{ServiceName: aws.String("web")},
	}, nil).Once()

	pauses := 0
	o := &Orchestrator{
		Source:      mockSource,
		SourceECR:   new(MockECRClient),
		SourceELB:   new(MockELBClient),
		Destination: mockDestination,
		Pause:       10 * time.Second,
		Sleep:       func(time.Duration) { pauses++ },
	}

	report, err := o.Sync(ctx, "live", "standby", "")

	assert.NoError(t, err)
	assert.Equal(t, []string{"web"}, report.Created)
	assert.Empty(t, report.Skipped)
	assert.Empty(t, report.Failed)
	assert.Equal(t, 1, pauses)
	mockDestination.AssertExpectations(t)
}

func TestSyncSkipsUnhealthy(t *testing.T) {
	mockSource := new(MockECSClient)
	mockDestination := new(MockECSClient)
	ctx := context.Background()

	clusterFixture(ctx, mockDestination, "standby")

	// one source-only service running below its desired count
	mockSource.On("ListServices", ctx, mock.Anything, mock.Anything).Return(&ecs.ListServicesOutput{
		ServiceArns: []string{"arn:web"},
	}, nil)
	mockSource.On("DescribeServices", ctx, mock.Anything, mock.Anything).Return(&ecs.DescribeServicesOutput{
		Services: []ecstypes.Service{{
			ServiceName:  aws.String("web"),
			RunningCount: 0,
			DesiredCount: 2,
		}},
	}, nil)

	o := &Orchestrator{
		Source:      mockSource,
		SourceECR:   new(MockECRClient),
		SourceELB:   new(MockELBClient),
		Destination: mockDestination,
		Sleep:       func(time.Duration) {},
	}

	report, err := o.Sync(ctx, "live", "standby", "")

	assert.NoError(t, err)
	assert.Empty(t, report.Created)
	assert.Equal(t, map[string][]string{"web": {FindingBelowDesired}}, report.Skipped)
	mockDestination.AssertNotCalled(t, "CreateService", mock.Anything, mock.Anything, mock.Anything)
}

func TestSyncContinuesPastCreationFailure(t *testing.T) {
	mockSource := new(MockECSClient)
	mockDestination := new(MockECSClient)
	ctx := context.Background()

	clusterFixture(ctx, mockSource, "live", "web", "cron")
	clusterFixture(ctx, mockDestination, "standby")

	mockSource.On("DescribeTaskDefinition", ctx, mock.Anything, mock.Anything).Return(&ecs.DescribeTaskDefinitionOutput{
		TaskDefinition: &ecstypes.TaskDefinition{},
	}, nil)

	mockDestination.On("CreateService", ctx, mock.MatchedBy(func(input *ecs.CreateServiceInput) bool {
		return *input.ServiceName == "web"
	}), mock.Anything).Return((*ecs.CreateServiceOutput)(nil), errors.New("limit exceeded")).Once()
	mockDestination.On("CreateService", ctx, mock.MatchedBy(func(input *ecs.CreateServiceInput) bool {
		return *input.ServiceName == "cron"
	}), mock.Anything).Return(&ecs.CreateServiceOutput{
		Service: &ecstypes.Service{ServiceName: aws.String("cron")},
	}, nil).Once()

	o := &Orchestrator{
		Source:      mockSource,
		SourceECR:   new(MockECRClient),
		SourceELB:   new(MockELBClient),
		Destination: mockDestination,
		Sleep:       func(time.Duration) {},
	}

	report, err := o.Sync(ctx, "live", "standby", "")

	assert.NoError(t, err)
	assert.Equal(t, []string{"web"}, report.Failed)
	assert.Equal(t, []string{"cron"}, report.Created)
	mockDestination.AssertExpectations(t)
}

func TestUpdateAllUniformCount(t *testing.T) {
	mockClient := new(MockECSClient)
	ctx := context.Background()

	clusterFixture(ctx, mockClient, "live", "web", "worker", "cron")

	mockClient.On("UpdateService", ctx, mock.MatchedBy(func(input *ecs.UpdateServiceInput) bool {
		return *input.Cluster == "live" && *input.DesiredCount == 5
	}), mock.Anything).Return(&ecs.UpdateServiceOutput{
		Service: &ecstypes.Service{DesiredCount: 5},
	}, nil).Times(3)

	pauses := 0
	o := &Orchestrator{
		Source: mockClient,
		Pause:  10 * time.Second,
		Sleep:  func(time.Duration) { pauses++ },
	}

	err := o.UpdateAll(ctx, "live", UniformCount(5))

	assert.NoError(t, err)
	assert.Equal(t, 2, pauses) // between calls, not before the first
	mockClient.AssertExpectations(t)
}

func TestUpdateAllCountMap(t *testing.T) {
	mockClient := new(MockECSClient)
	ctx := context.Background()

	clusterFixture(ctx, mockClient, "live", "web", "worker")

	counts := map[string]int32{}
	mockClient.On("UpdateService", ctx, mock.AnythingOfType("*ecs.UpdateServiceInput"), mock.Anything).Run(func(args mock.Arguments) {
		input := args.Get(1).(*ecs.UpdateServiceInput)
		counts[*input.Service] = *input.DesiredCount
	}).Return(&ecs.UpdateServiceOutput{
		Service: &ecstypes.Service{},
	}, nil).Times(2)

	o := &Orchestrator{Source: mockClient, Sleep: func(time.Duration) {}}

	err := o.UpdateAll(ctx, "live", CountMap{"web": 4, "worker": 1})

	assert.NoError(t, err)
	assert.Equal(t, map[string]int32{"web": 4, "worker": 1}, counts)
}

func TestUpdateAllCountMapMissingService(t *testing.T) {
	mockClient := new(MockECSClient)
	ctx := context.Background()

	clusterFixture(ctx, mockClient, "live", "web")

	o := &Orchestrator{Source: mockClient, Sleep: func(time.Duration) {}}

	err := o.UpdateAll(ctx, "live", CountMap{"worker": 1})

	assert.EqualError(t, err, "no desired count given for service web")
	mockClient.AssertNotCalled(t, "UpdateService", mock.Anything, mock.Anything, mock.Anything)
}

func TestSyncTwiceIsIdempotent(t *testing.T) {
	mockSource := new(MockECSClient)
	mockDestination := new(MockECSClient)
	ctx := context.Background()

	clusterFixture(ctx, mockSource, "live", "web", "worker")

	// destination is missing web on the first listing and has it afterwards
	mockDestination.On("ListServices", ctx, mock.Anything, mock.Anything).Return(&ecs.ListServicesOutput{
		ServiceArns: []string{"arn:worker"},
	}, nil).Once()
	clusterFixture(ctx, mockDestination, "standby", "worker", "web")

	mockSource.On("DescribeTaskDefinition", ctx, mock.Anything, mock.Anything).Return(&ecs.DescribeTaskDefinitionOutput{
		TaskDefinition: &ecstypes.TaskDefinition{},
	}, nil)

	mockDestination.On("CreateService", ctx, mock.MatchedBy(func(input *ecs.CreateServiceInput) bool {
		return *input.Cluster == "standby" && *input.ServiceName == "web"
	}), mock.Anything).Return(&ecs.CreateServiceOutput{
		Service: &ecstypes.Service{ServiceName: aws.String("web")},
	}, nil).Once()

	o := &Orchestrator{
		Source:      mockSource,
		SourceECR:   new(MockECRClient),
		SourceELB:   new(MockELBClient),
		Destination: mockDestination,
		Sleep:       func(time.Duration) {},
	}

	first, err := o.Sync(ctx, "live", "standby", "")
	assert.NoError(t, err)
	assert.Equal(t, []string{"web"}, first.Created)

	second, err := o.Sync(ctx, "live", "standby", "")
	assert.NoError(t, err)
	assert.Empty(t, second.Created)
	assert.Empty(t, second.Skipped)
	assert.Empty(t, second.Failed)

	mockDestination.AssertNumberOfCalls(t, "CreateService", 1)
}
