package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"
	"github.com/spf13/cobra"

	"github.com/okrause/ecsctl/internal/awsapi"
	"github.com/okrause/ecsctl/internal/services"
)

var servicesCmd = &cobra.Command{
	Use:   "services",
	Short: "Operations on all services within a cluster",
}

var infoMetrics bool

var infoCmd = &cobra.Command{
	Use:   "info <cluster> <region>",
	Short: "Useful information about services",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cluster, region := args[0], args[1]

		clients, err := awsapi.New(cmd.Context(), profile, region)
		if err != nil {
			return err
		}

		described, err := services.DescribeServices(cmd.Context(), clients.ECS, cluster)
		if err != nil {
			return err
		}

		for _, svc := range described {
			name, err := services.ServiceName(svc)
			if err != nil {
				return err
			}
			if svc.TaskDefinition == nil {
				return fmt.Errorf("service %s has no task definition", name)
			}

			line := fmt.Sprintf("%s/%s - Task: %s - Desired Count: %d", cluster, name, *svc.TaskDefinition, svc.DesiredCount)
			if infoMetrics {
				metrics, err := services.ServiceMetrics(cmd.Context(), clients.CloudWatch, cluster, name)
				if err != nil {
					return err
				}
				line += fmt.Sprintf(" - CPU: %.1f%% - Memory: %.1f%%", metrics.CPUUtilization, metrics.MemoryUtilization)
			}
			fmt.Fprintln(cmd.OutOrStdout(), line)
		}
		return nil
	},
}

var auditCmd = &cobra.Command{
	Use:   "audit <cluster> <region>",
	Short: "Services with issues (broken references, under-capacity)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cluster, region := args[0], args[1]

		clients, err := awsapi.New(cmd.Context(), profile, region)
		if err != nil {
			return err
		}

		described, err := services.DescribeServices(cmd.Context(), clients.ECS, cluster)
		if err != nil {
			return err
		}

		for _, svc := range described {
			name, err := services.ServiceName(svc)
			if err != nil {
				return err
			}

			findings, err := services.Audit(cmd.Context(), clients.ECS, clients.ECR, clients.ELB, svc)
			if err != nil {
				return err
			}
			if len(findings) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "%s [%s]\n", name, strings.Join(findings, ", "))
			}
		}
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export <cluster> <region> <property>",
	Short: "Export one property of every service as JSON (properties: desired-count, running-count)",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		cluster, region, property := args[0], args[1], args[2]
		if property != "desired-count" && property != "running-count" {
			return fmt.Errorf("unsupported property %q (want desired-count or running-count)", property)
		}

		clients, err := awsapi.New(cmd.Context(), profile, region)
		if err != nil {
			return err
		}

		described, err := services.DescribeServices(cmd.Context(), clients.ECS, cluster)
		if err != nil {
			return err
		}

		values, err := exportValues(property, described)
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(values, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

// exportValues keys each service's property value by its name. A descriptor
// without a name is an error, not an empty key.
func exportValues(property string, described []ecstypes.Service) (map[string]int32, error) {
	values := make(map[string]int32, len(described))
	for _, svc := range described {
		name, err := services.ServiceName(svc)
		if err != nil {
			return nil, err
		}
		if property == "desired-count" {
			values[name] = svc.DesiredCount
		} else {
			values[name] = svc.RunningCount
		}
	}
	return values, nil
}

func init() {
	infoCmd.Flags().BoolVar(&infoMetrics, "metrics", false, "include CPU and memory utilization from CloudWatch")
	servicesCmd.AddCommand(infoCmd, auditCmd, exportCmd)
}
