package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/sasta-kro/corvus-paas/corvus-control-plane/models"
)

func newProjectCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Manage projects",
	}

	cmd.AddCommand(newProjectCreateCommand())
	return cmd
}

func newProjectCreateCommand() *cobra.Command {
	var ownerID, name, gitRepoURL string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register a new project backed by a git repository",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" || gitRepoURL == "" {
				return fmt.Errorf("--name and --repo are required")
			}

			database, err := openDatabase()
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer database.CloseDatabase()

			project := &models.Project{
				ID:         uuid.New().String(),
				OwnerID:    ownerID,
				Name:       name,
				GitRepoURL: gitRepoURL,
			}
			if err := database.InsertProject(project); err != nil {
				return fmt.Errorf("failed to create project: %w", err)
			}

			fmt.Printf("created project %s (%s)\n", project.ID, project.Name)
			return nil
		},
	}

	cmd.Flags().StringVar(&ownerID, "owner", "local-operator", "owner ID to attribute the project to")
	cmd.Flags().StringVar(&name, "name", "", "project display name (required)")
	cmd.Flags().StringVar(&gitRepoURL, "repo", "", "git repository URL to deploy (required)")

	return cmd
}
