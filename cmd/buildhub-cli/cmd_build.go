package main

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nivostack/buildhub/client"
)

func newBuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Manage builds",
	}
	cmd.AddCommand(buildCreateCmd())
	cmd.AddCommand(buildListCmd())
	cmd.AddCommand(buildGetCmd())
	cmd.AddCommand(buildUpdateCmd())
	cmd.AddCommand(buildDeleteCmd())
	cmd.AddCommand(buildModeCmd())
	cmd.AddCommand(buildUnmodeCmd())
	cmd.AddCommand(buildDiffCmd())
	cmd.AddCommand(buildPatchCmd())
	cmd.AddCommand(buildChangesCmd())
	return cmd
}

func buildCreateCmd() *cobra.Command {
	var projectID, name, description string
	cmd := &cobra.Command{
		Use:   "create <feature-type>",
		Short: "Snapshot a feature (business_config|localization|api_mocks) into a new build",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			req := &client.CreateBuildRequest{ProjectID: projectID, FeatureType: args[0]}
			if cmd.Flags().Changed("name") {
				req.Name = &name
			}
			if cmd.Flags().Changed("description") {
				req.Description = &description
			}
			build, err := apiClient.Builds.Create(context.Background(), req)
			if err != nil {
				fatal("create build", err)
			}
			output(build, build.ID)
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "Project ID")
	cmd.Flags().StringVar(&name, "name", "", "Build name")
	cmd.Flags().StringVar(&description, "description", "", "Build description")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func buildListCmd() *cobra.Command {
	var projectID, featureType string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a project's builds, newest first",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			builds, err := apiClient.Builds.List(context.Background(), projectID, featureType)
			if err != nil {
				fatal("list builds", err)
			}
			switch flagFmt {
			case "table":
				formatBuilds(builds)
			case "quiet":
				for _, b := range builds {
					formatQuiet(b.ID)
				}
			default:
				formatJSON(builds)
			}
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "Project ID")
	cmd.Flags().StringVar(&featureType, "feature", "", "Filter by feature type")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func buildGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Get a build with its snapshots and change log",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			detail, err := apiClient.Builds.Get(context.Background(), args[0])
			if err != nil {
				fatal("get build", err)
			}
			output(detail, detail.Build.ID)
		},
	}
}

func buildUpdateCmd() *cobra.Command {
	var name, description string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Edit a build's name or description (empty value clears it)",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			req := &client.UpdateBuildRequest{}
			if cmd.Flags().Changed("name") {
				req.Name = &name
			}
			if cmd.Flags().Changed("description") {
				req.Description = &description
			}
			if req.Name == nil && req.Description == nil {
				fatal("update build", fmt.Errorf("nothing to update: pass --name or --description"))
			}
			build, err := apiClient.Builds.Update(context.Background(), args[0], req)
			if err != nil {
				fatal("update build", err)
			}
			output(build, build.ID)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Build name")
	cmd.Flags().StringVar(&description, "description", "", "Build description")
	return cmd
}

func buildDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an inactive build",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			if err := apiClient.Builds.Delete(context.Background(), args[0]); err != nil {
				if client.IsConflict(err) {
					fatal("delete build", fmt.Errorf("build is active; clear its modes first: %w", err))
				}
				fatal("delete build", err)
			}
			output(map[string]bool{"success": true}, args[0])
		},
	}
}

func buildModeCmd() *cobra.Command {
	var featureType string
	cmd := &cobra.Command{
		Use:   "mode <id> <preview|production>",
		Short: "Make a build active in a mode",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			build, err := apiClient.Builds.SetMode(context.Background(), args[0], &client.SetModeRequest{Mode: args[1], FeatureType: featureType})
			if err != nil {
				fatal("set mode", err)
			}
			output(build, build.ID)
		},
	}
	cmd.Flags().StringVar(&featureType, "feature", "", "Limit the assignment to one feature type")
	return cmd
}

func buildUnmodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unmode <id> <preview|production>",
		Short: "Remove a build from a mode",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			build, err := apiClient.Builds.ClearMode(context.Background(), args[0], args[1])
			if err != nil {
				fatal("clear mode", err)
			}
			output(build, build.ID)
		},
	}
}

func buildDiffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diff <old-id> <new-id>",
		Short: "Compare two builds of the same project",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			d, err := apiClient.Builds.Diff(context.Background(), args[0], args[1])
			if err != nil {
				fatal("diff builds", err)
			}
			if flagFmt == "table" {
				formatDiff(d)
				return
			}
			output(d, strconv.Itoa(countChanges(d)))
		},
	}
}

func buildPatchCmd() *cobra.Command {
	var contextLines int
	cmd := &cobra.Command{
		Use:   "patch <old-id> <new-id>",
		Short: "Print a unified patch between two builds",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			patch, err := apiClient.Builds.Patch(context.Background(), args[0], args[1], contextLines)
			if err != nil {
				fatal("patch builds", err)
			}
			fmt.Print(patch)
		},
	}
	cmd.Flags().IntVar(&contextLines, "context", -1, "Context lines around each change, 0 to 50 (server default when negative)")
	return cmd
}

func buildChangesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "changes <id>",
		Short: "Show the change log recorded when a build was created",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			logs, err := apiClient.Builds.Changes(context.Background(), args[0])
			if err != nil {
				fatal("build changes", err)
			}
			if flagFmt == "table" {
				headers := []string{"FEATURE", "CHANGE", "KEY", "LABEL"}
				rows := make([][]string, 0, len(logs))
				for _, l := range logs {
					rows = append(rows, []string{l.FeatureType, l.ChangeType, l.ItemKey, deref(l.ItemLabel)})
				}
				formatTable(headers, rows)
				return
			}
			output(logs, strconv.Itoa(len(logs)))
		},
	}
}

func countChanges(d client.BuildDiff) int {
	n := 0
	for _, changes := range d {
		n += len(changes)
	}
	return n
}

func sortedFeatures(d client.BuildDiff) []string {
	features := make([]string, 0, len(d))
	for ft := range d {
		features = append(features, ft)
	}
	sort.Strings(features)
	return features
}
