package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all deployments, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := openDatabase()
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer database.CloseDatabase()

			deployments, err := database.ListDeployments()
			if err != nil {
				return fmt.Errorf("failed to list deployments: %w", err)
			}

			writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			defer writer.Flush()

			fmt.Fprintln(writer, "ID\tPROJECT\tNAME\tSTATUS\tURL\tCREATED")
			for _, deployment := range deployments {
				url := ""
				if deployment.DeploymentURL != nil {
					url = *deployment.DeploymentURL
				}
				fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\t%s\n",
					deployment.ID, deployment.ProjectID, deployment.Name,
					deployment.Status, url, deployment.CreatedAt.Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}

	return cmd
}
