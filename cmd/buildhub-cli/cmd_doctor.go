package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nivostack/buildhub/client"
)

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose configuration and connectivity",
		Long:  "Run diagnostic checks against config, server, and auth",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor()
		},
	}
}

type checkResult struct {
	Name   string
	Passed bool
	Detail string
	Hint   string
}

func runDoctor() error {
	fmt.Println("\nbuildhub doctor")
	fmt.Println("===============")

	var results []checkResult

	// Flags, env and config are already merged by resolveConfig.
	cfgPath, _, cfgErr := loadConfigFile()
	if cfgErr != nil {
		results = append(results, checkResult{Name: "Config file", Detail: cfgPath, Hint: "Run: buildhub init"})
	} else {
		results = append(results, checkResult{Name: "Config file", Passed: true, Detail: fmt.Sprintf("found (%s)", cfgPath)})
	}

	results = append(results, checkResult{Name: "Server URL", Passed: true, Detail: flagURL})

	if flagToken == "" {
		results = append(results, checkResult{Name: "User token", Hint: "Set --token, BUILDHUB_TOKEN, or run buildhub init"})
	} else {
		results = append(results, checkResult{Name: "User token", Passed: true, Detail: "configured"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	health, err := apiClient.Health(ctx)
	if err != nil {
		results = append(results, checkResult{
			Name: "Server reachable", Detail: flagURL,
			Hint: fmt.Sprintf("Is the buildhub server running?\n   Error: %v", err),
		})
	} else {
		results = append(results, checkResult{
			Name: "Server reachable", Passed: true,
			Detail: fmt.Sprintf("v%s, schema %d, database %s", health.Version, health.SchemaVersion, health.Database),
		})
	}

	if err == nil && flagToken != "" {
		if _, _, err := apiClient.Audit.Query(ctx, &client.AuditQueryOptions{Limit: 1}); err != nil {
			results = append(results, checkResult{Name: "Authentication", Hint: fmt.Sprintf("Check your token. Error: %v", err)})
		} else {
			results = append(results, checkResult{Name: "Authentication", Passed: true, Detail: "valid"})
		}
	}

	if err == nil && flagProjectKey != "" {
		if _, err := apiClient.SDK.Active(ctx, client.ModePreview); err != nil {
			results = append(results, checkResult{Name: "Project key", Hint: fmt.Sprintf("Check your project key. Error: %v", err)})
		} else {
			results = append(results, checkResult{Name: "Project key", Passed: true, Detail: "valid"})
		}
	}

	fmt.Println()
	allPassed := true
	for _, r := range results {
		mark := "ok  "
		if !r.Passed {
			mark = "FAIL"
			allPassed = false
		}
		if r.Detail != "" {
			fmt.Printf("[%s] %s: %s\n", mark, r.Name, r.Detail)
		} else {
			fmt.Printf("[%s] %s\n", mark, r.Name)
		}
		if !r.Passed && r.Hint != "" {
			fmt.Printf("       Hint: %s\n", r.Hint)
		}
	}

	fmt.Println()
	if !allPassed {
		fmt.Println("Some checks failed.")
		return fmt.Errorf("doctor found issues")
	}

	fmt.Println("All checks passed.")
	return nil
}
