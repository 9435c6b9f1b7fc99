package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nivostack/buildhub/client"
)

func newInitCmd() *cobra.Command {
	var initURL, initToken, initProjectKey string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Set up buildhub CLI configuration",
		Long:  "Interactive setup wizard that creates ~/.buildhub/config.yaml",
		RunE: func(cmd *cobra.Command, args []string) error {
			nonInteractive := initURL != "" || initToken != ""
			return runInit(configProfile{URL: initURL, Token: initToken, ProjectKey: initProjectKey}, nonInteractive)
		},
	}

	cmd.Flags().StringVar(&initURL, "url", "", "Server URL (non-interactive mode)")
	cmd.Flags().StringVar(&initToken, "token", "", "User token (non-interactive mode)")
	cmd.Flags().StringVar(&initProjectKey, "project-key", "", "Project API key (optional)")
	return cmd
}

func runInit(p configProfile, nonInteractive bool) error {
	if !nonInteractive {
		fmt.Println("\n  buildhub setup")
		fmt.Println("  --------------")
		fmt.Println()

		reader := bufio.NewReader(os.Stdin)
		prompt := func(label string) string {
			fmt.Print(label)
			line, _ := reader.ReadString('\n')
			return strings.TrimSpace(line)
		}

		if v := prompt("  Server URL [" + defaultURL + "]: "); v != "" {
			p.URL = v
		}
		p.Token = prompt("  User token: ")
		p.ProjectKey = prompt("  Project API key (optional): ")
	}

	if p.URL == "" {
		p.URL = defaultURL
	}

	if p.Token == "" {
		return fmt.Errorf("user token is required")
	}

	if !nonInteractive {
		fmt.Print("\n  Testing connection... ")
	}

	ver, err := testConnection(p.URL, p.Token)
	if err != nil {
		if !nonInteractive {
			fmt.Println("failed")
		}
		return fmt.Errorf("connection failed: %w", err)
	}

	if !nonInteractive {
		fmt.Printf("connected (v%s)\n", ver)
	}

	cfgPath, err := writeConfig(p)
	if err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	if nonInteractive {
		fmt.Printf("Config saved to %s\n", cfgPath)
	} else {
		fmt.Printf("\n  Config saved to %s\n", cfgPath)
		fmt.Println()
		fmt.Println("  Next steps:")
		fmt.Println("    buildhub doctor                       # Full diagnostic check")
		fmt.Println("    buildhub build list --project <id>    # List builds")
		fmt.Println("    buildhub --help                       # See all commands")
		fmt.Println()
	}

	return nil
}

func testConnection(url, token string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	health, err := client.New(url, client.WithToken(token)).Health(ctx)
	if err != nil {
		return "", err
	}
	if health.Version == "" {
		return "unknown", nil
	}
	return health.Version, nil
}

func writeConfig(p configProfile) (string, error) {
	cfgPath, err := configPath()
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(cfgPath), 0o700); err != nil {
		return "", err
	}

	cfg := configFile{
		Profiles:      map[string]configProfile{"default": p},
		ActiveProfile: "default",
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}

	if err := os.WriteFile(cfgPath, data, 0o600); err != nil {
		return "", err
	}

	return cfgPath, nil
}
