package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/sasta-kro/corvus-paas/corvus-control-plane/models"
)

func newDeployCommand() *cobra.Command {
	var autoDeploy bool

	cmd := &cobra.Command{
		Use:   "deploy <project-id>",
		Short: "Enqueue a new deployment for a project",
		Long: `deploy inserts a new deployment row in status "pending" for the given
project. corvusd's polling loop picks up pending rows and runs them through
the clone/build/extract/supervise/proxy pipeline; this command does not
wait for the pipeline to finish. Use "corvusctl status <deployment-id>" to
check on it afterward.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID := args[0]

			database, err := openDatabase()
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer database.CloseDatabase()

			project, err := database.GetProject(projectID)
			if err != nil {
				return fmt.Errorf("failed to look up project %q: %w", projectID, err)
			}

			deployment := &models.Deployment{
				ID:         uuid.New().String(),
				ProjectID:  project.ID,
				Name:       project.Name,
				AutoDeploy: autoDeploy,
			}
			if err := database.InsertDeployment(deployment); err != nil {
				return fmt.Errorf("failed to create deployment: %w", err)
			}

			fmt.Printf("created deployment %s for project %s (%s), status pending\n", deployment.ID, project.ID, project.Name)
			return nil
		},
	}

	cmd.Flags().BoolVar(&autoDeploy, "auto", false, "mark this deployment as triggered by an automated webhook rather than a manual request")

	return cmd
}
