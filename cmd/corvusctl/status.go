package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sasta-kro/corvus-paas/corvus-control-plane/models"
	"github.com/sasta-kro/corvus-paas/corvus-control-plane/supervisor"
)

func newStatusCommand() *cobra.Command {
	var live bool
	var supervisorBinary string

	cmd := &cobra.Command{
		Use:   "status <deployment-id>",
		Short: "Show the current status of a deployment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deploymentID := args[0]

			database, err := openDatabase()
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer database.CloseDatabase()

			deployment, err := database.GetDeployment(deploymentID)
			if err != nil {
				return fmt.Errorf("failed to get deployment %q: %w", deploymentID, err)
			}

			type statusOutput struct {
				*models.Deployment
				SupervisorOnline *bool `json:"supervisor_online,omitempty"`
			}
			output := statusOutput{Deployment: deployment}

			// --live cross-checks the database's own status against pm2's
			// live process table: a deployment can read `success` in the
			// database yet have its supervised process since crashed past
			// its restart limit, which only pm2 itself knows about.
			if live {
				sup := supervisor.New(supervisorBinary)
				online, err := sup.IsRunning("deploy-" + deploymentID)
				if err != nil {
					return fmt.Errorf("failed to query supervisor for deployment %q: %w", deploymentID, err)
				}
				output.SupervisorOnline = &online
			}

			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			return encoder.Encode(output)
		},
	}

	cmd.Flags().BoolVar(&live, "live", false, "also query pm2 directly for the supervised process's current online status")
	cmd.Flags().StringVar(&supervisorBinary, "supervisor-binary", "pm2", "process supervisor CLI binary to query with --live")

	return cmd
}
