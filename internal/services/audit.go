package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	ecrtypes "github.com/aws/aws-sdk-go-v2/service/ecr/types"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"
	elbv2 "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	elbtypes "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2/types"

	"github.com/okrause/ecsctl/internal/awsapi"
	"github.com/okrause/ecsctl/internal/retry"
)

// Audit finding names.
const (
	FindingInvalidImages       = "Invalid image references"
	FindingInvalidTargetGroups = "Invalid target-group references"
	FindingBelowDesired        = "Running count below desired"
)

// ImageResult is the outcome of resolving one container image reference
// against the registry.
type ImageResult struct {
	Repository string
	Tag        string
	Detail     *ecrtypes.ImageDetail
	Err        error
}

// TargetGroupResult is the outcome of resolving one load-balancer binding's
// target group.
type TargetGroupResult struct {
	ARN   string
	Group *elbtypes.TargetGroup
	Err   error
}

// Audit evaluates a service against its dependent subsystems and returns the
// names of the conditions that hold, sorted. An empty result means healthy.
func Audit(ctx context.Context, ecsClient awsapi.ECSAPI, ecrClient awsapi.ECRAPI, elbClient awsapi.ELBAPI, svc ecstypes.Service) ([]string, error) {
	images, err := ResolveImages(ctx, ecsClient, ecrClient, svc)
	if err != nil {
		return nil, err
	}
	groups, err := ResolveTargetGroups(ctx, elbClient, svc)
	if err != nil {
		return nil, err
	}

	var findings []string
	for _, img := range images {
		if img.Err != nil {
			findings = append(findings, FindingInvalidImages)
			break
		}
	}
	for _, tg := range groups {
		if tg.Err != nil {
			findings = append(findings, FindingInvalidTargetGroups)
			break
		}
	}
	if svc.RunningCount < svc.DesiredCount {
		findings = append(findings, FindingBelowDesired)
	}

	sort.Strings(findings)
	return findings, nil
}

// ResolveImages looks up every container image the service's task definition
// references. A service without a task definition has nothing to resolve.
// Registry errors, malformed references and references that resolve to no
// image all become failure entries; only a task-definition fetch failure is
// fatal.
func ResolveImages(ctx context.Context, ecsClient awsapi.ECSAPI, ecrClient awsapi.ECRAPI, svc ecstypes.Service) ([]ImageResult, error) {
	if svc.TaskDefinition == nil {
		return nil, nil
	}

	out, err := retry.Do(ctx, fmt.Sprintf("describing %s", *svc.TaskDefinition), retry.ThrottledAPIError,
		func() (*ecs.DescribeTaskDefinitionOutput, error) {
			return ecsClient.DescribeTaskDefinition(ctx, &ecs.DescribeTaskDefinitionInput{
				TaskDefinition: svc.TaskDefinition,
			})
		})
	if err != nil {
		return nil, err
	}
	if out.TaskDefinition == nil {
		return nil, nil
	}

	var results []ImageResult
	for _, cd := range out.TaskDefinition.ContainerDefinitions {
		image := aws.ToString(cd.Image)
		if image == "" {
			continue
		}

		repository, tag, err := splitImageRef(image)
		if err != nil {
			results = append(results, ImageResult{Err: err})
			continue
		}

		res := ImageResult{Repository: repository, Tag: tag}
		imgOut, err := ecrClient.DescribeImages(ctx, &ecr.DescribeImagesInput{
			RepositoryName: aws.String(repository),
			ImageIds:       []ecrtypes.ImageIdentifier{{ImageTag: aws.String(tag)}},
		})
		switch {
		case err != nil:
			res.Err = err
		case len(imgOut.ImageDetails) == 0:
			res.Err = fmt.Errorf("no image found for %s:%s", repository, tag)
		default:
			res.Detail = &imgOut.ImageDetails[len(imgOut.ImageDetails)-1]
		}
		results = append(results, res)
	}

	return results, nil
}

// ResolveTargetGroups looks up the target group behind every load-balancer
// binding that carries one. A lookup error or an empty answer becomes a
// failure entry.
func ResolveTargetGroups(ctx context.Context, elbClient awsapi.ELBAPI, svc ecstypes.Service) ([]TargetGroupResult, error) {
	var results []TargetGroupResult

	for _, lb := range svc.LoadBalancers {
		if lb.TargetGroupArn == nil {
			continue
		}
		arn := *lb.TargetGroupArn

		out, err := retry.Do(ctx, fmt.Sprintf("describing %s", arn), retry.ThrottledXMLError,
			func() (*elbv2.DescribeTargetGroupsOutput, error) {
				return elbClient.DescribeTargetGroups(ctx, &elbv2.DescribeTargetGroupsInput{
					TargetGroupArns: []string{arn},
				})
			})

		res := TargetGroupResult{ARN: arn}
		switch {
		case err != nil:
			res.Err = err
		case len(out.TargetGroups) == 0:
			res.Err = fmt.Errorf("no target group found for %s", arn)
		default:
			res.Group = &out.TargetGroups[len(out.TargetGroups)-1]
		}
		results = append(results, res)
	}

	return results, nil
}

// splitImageRef reduces a full registry path like
// 123456789.dkr.ecr.eu-west-1.amazonaws.com/web:v12 to its repository and
// tag. A reference without an explicit tag is rejected rather than guessed
// at.
func splitImageRef(image string) (repository, tag string, err error) {
	fragment := image
	if i := strings.LastIndex(fragment, "/"); i >= 0 {
		fragment = fragment[i+1:]
	}
	i := strings.LastIndex(fragment, ":")
	if i < 0 {
		return "", "", fmt.Errorf("image reference %q has no tag", image)
	}
	return fragment[:i], fragment[i+1:], nil
}
