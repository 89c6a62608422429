package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"
	"github.com/spf13/cobra"

	"github.com/okrause/ecsctl/internal/awsapi"
	"github.com/okrause/ecsctl/internal/services"
)

// Pause between mutating control-plane calls. Exists purely to stay under
// the API rate limits.
var pause time.Duration

var compareCmd = &cobra.Command{
	Use:   "compare <source-cluster> <source-region> <destination-cluster> <destination-region>",
	Short: "List services that are in the source cluster but not in the destination (by name)",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		sourceCluster, sourceRegion := args[0], args[1]
		destinationCluster, destinationRegion := args[2], args[3]

		source, err := awsapi.New(cmd.Context(), profile, sourceRegion)
		if err != nil {
			return err
		}
		destination, err := awsapi.New(cmd.Context(), profile, destinationRegion)
		if err != nil {
			return err
		}

		sourceOnly, err := services.Compare(cmd.Context(), source.ECS, sourceCluster, destination.ECS, destinationCluster)
		if err != nil {
			return err
		}

		return printCompare(cmd.OutOrStdout(), sourceOnly)
	},
}

func printCompare(out io.Writer, sourceOnly []ecstypes.Service) error {
	fmt.Fprintln(out, "Not in destination:")
	for _, svc := range sourceOnly {
		name, err := services.ServiceName(svc)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, name)
	}
	fmt.Fprintf(out, "Total: %d\n", len(sourceOnly))
	return nil
}

var syncCmd = &cobra.Command{
	Use:   "sync <source-cluster> <source-region> <destination-cluster> <destination-region> [role-suffix]",
	Short: "Create the source cluster's healthy services in the destination cluster",
	Long: `Create every service that exists in the source cluster but not in the
destination. Services that fail the audit are skipped so broken references are
never propagated. The role for new load-balanced services is
'<destination-cluster>-<role-suffix>'.`,
	Args: cobra.RangeArgs(4, 5),
	RunE: func(cmd *cobra.Command, args []string) error {
		sourceCluster, sourceRegion := args[0], args[1]
		destinationCluster, destinationRegion := args[2], args[3]
		roleSuffix := ""
		if len(args) == 5 {
			roleSuffix = args[4]
		}

		source, err := awsapi.New(cmd.Context(), profile, sourceRegion)
		if err != nil {
			return err
		}
		destination, err := awsapi.New(cmd.Context(), profile, destinationRegion)
		if err != nil {
			return err
		}

		o := &services.Orchestrator{
			Source:      source.ECS,
			SourceECR:   source.ECR,
			SourceELB:   source.ELB,
			Destination: destination.ECS,
			Pause:       pause,
		}

		report, err := o.Sync(cmd.Context(), sourceCluster, destinationCluster, roleSuffix)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Created: %d\n", len(report.Created))
		for _, name := range report.Created {
			fmt.Fprintf(out, "  %s\n", name)
		}
		fmt.Fprintf(out, "Skipped (unhealthy): %d\n", len(report.Skipped))
		for name, findings := range report.Skipped {
			fmt.Fprintf(out, "  %s [%s]\n", name, strings.Join(findings, ", "))
		}
		fmt.Fprintf(out, "Failed: %d\n", len(report.Failed))
		for _, name := range report.Failed {
			fmt.Fprintf(out, "  %s\n", name)
		}

		if len(report.Failed) > 0 {
			return fmt.Errorf("%d services failed to create", len(report.Failed))
		}
		return nil
	},
}

var updateCmd = &cobra.Command{
	Use:   "update <cluster> <region> desired-count <count-or-json-file>",
	Short: "Make changes to every service in a cluster",
	Long: `Apply a desired-count modification to every service in the cluster. The
last argument is either one count applied uniformly, or the path to a JSON
file (the export format: an object of service name to count) applied per
service.`,
	Args: cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		cluster, region, modification := args[0], args[1], args[2]
		if modification != "desired-count" {
			return fmt.Errorf("unsupported modification %q (want desired-count)", modification)
		}

		mod, err := parseDesiredCount(args[3])
		if err != nil {
			return err
		}

		clients, err := awsapi.New(cmd.Context(), profile, region)
		if err != nil {
			return err
		}

		o := &services.Orchestrator{Source: clients.ECS, Pause: pause}
		return o.UpdateAll(cmd.Context(), cluster, mod)
	},
}

// parseDesiredCount reads the update command's last argument: a bare number
// applies uniformly, anything else is treated as a path to a JSON object of
// service name to count.
func parseDesiredCount(arg string) (services.Modification, error) {
	if count, err := strconv.ParseInt(arg, 10, 32); err == nil {
		if count < 0 {
			return nil, fmt.Errorf("desired count must not be negative, got %d", count)
		}
		return services.UniformCount(count), nil
	}

	data, err := os.ReadFile(arg)
	if err != nil {
		return nil, fmt.Errorf("desired count %q is neither a number nor a readable file: %w", arg, err)
	}

	var counts map[string]int32
	if err := json.Unmarshal(data, &counts); err != nil {
		return nil, fmt.Errorf("parsing desired counts from %s: %w", arg, err)
	}
	for service, count := range counts {
		if count < 0 {
			return nil, fmt.Errorf("desired count for %s must not be negative, got %d", service, count)
		}
	}
	return services.CountMap(counts), nil
}

func init() {
	syncCmd.Flags().DurationVar(&pause, "pause", 10*time.Second, "wait between mutating calls")
	updateCmd.Flags().DurationVar(&pause, "pause", 10*time.Second, "wait between mutating calls")
	servicesCmd.AddCommand(compareCmd, syncCmd, updateCmd)
}
