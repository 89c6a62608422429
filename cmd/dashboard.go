package cmd

import (
	"context"

	"github.com/rivo/tview"
	"github.com/spf13/cobra"

	"github.com/okrause/ecsctl/internal/awsapi"
	"github.com/okrause/ecsctl/internal/services"
	"github.com/okrause/ecsctl/internal/ui"
)

type dashboardStore struct {
	ecs awsapi.ECSAPI
}

func (s dashboardStore) UpdateDesiredCount(ctx context.Context, cluster, service string, count int32) error {
	return services.UpdateDesiredCount(ctx, s.ecs, cluster, service, count)
}

func (s dashboardStore) Restart(ctx context.Context, cluster, service string) error {
	return services.Restart(ctx, s.ecs, cluster, service)
}

var dashboardCmd = &cobra.Command{
	Use:   "dashboard <cluster> <region>",
	Short: "Interactive view of a cluster's services",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cluster, region := args[0], args[1]

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		clients, err := awsapi.New(ctx, profile, region)
		if err != nil {
			return err
		}

		described, err := services.DescribeServices(ctx, clients.ECS, cluster)
		if err != nil {
			return err
		}

		app := tview.NewApplication()
		dashboard := ui.NewDashboard(app, ctx, dashboardStore{ecs: clients.ECS}, services.Summarize(cluster, described))
		dashboard.Run(services.Poll(ctx, clients.ECS, cluster, ui.RefreshInterval))

		return app.Run()
	},
}

func init() {
	servicesCmd.AddCommand(dashboardCmd)
}
