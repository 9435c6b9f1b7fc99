package main

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nivostack/buildhub/client"
)

func newAuditCmd() *cobra.Command {
	var projectID, entityID, action string
	var limit int
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Query the build activity log",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			opts := &client.AuditQueryOptions{
				ProjectID: projectID,
				EntityID:  entityID,
				Action:    action,
				Limit:     limit,
			}
			entries, _, err := apiClient.Audit.Query(context.Background(), opts)
			if err != nil {
				fatal("audit query", err)
			}
			if flagFmt == "table" {
				headers := []string{"ID", "ACTION", "ENTITY_TYPE", "ENTITY_ID", "CREATED_AT"}
				var rows [][]string
				for _, e := range entries {
					rows = append(rows, []string{strconv.FormatInt(e.ID, 10), e.Action, e.EntityType, e.EntityID, e.CreatedAt.Format("2006-01-02 15:04:05")})
				}
				formatTable(headers, rows)
				return
			}
			output(entries, "")
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "Filter by project ID")
	cmd.Flags().StringVar(&entityID, "entity", "", "Filter by entity ID")
	cmd.Flags().StringVar(&action, "action", "", "Filter by action")
	cmd.Flags().IntVar(&limit, "limit", 0, "Max results")
	return cmd
}
