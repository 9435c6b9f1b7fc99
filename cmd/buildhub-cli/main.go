package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nivostack/buildhub/client"
)

// Build-time variables set via ldflags.
var (
	version   = "0.3.0"
	commit    = ""
	buildDate = ""
)

const defaultURL = "http://localhost:3030"

var (
	apiClient      *client.Client
	flagURL        string
	flagToken      string
	flagProjectKey string
	flagFmt        string
)

func versionString() string {
	if commit != "" && buildDate != "" {
		return fmt.Sprintf("buildhub version %s (commit: %s, built: %s)", version, commit, buildDate)
	}
	return fmt.Sprintf("buildhub version %s-dev", version)
}

type configFile struct {
	// Flat format
	URL        string `yaml:"url,omitempty"`
	Token      string `yaml:"token,omitempty"`
	ProjectKey string `yaml:"project_key,omitempty"`
	// Profile format
	Profiles      map[string]configProfile `yaml:"profiles,omitempty"`
	ActiveProfile string                   `yaml:"active_profile,omitempty"`
}

type configProfile struct {
	URL        string `yaml:"url"`
	Token      string `yaml:"token,omitempty"`
	ProjectKey string `yaml:"project_key,omitempty"`
}

func main() {
	rootCmd := &cobra.Command{
		Use:     "buildhub",
		Short:   "buildhub CLI: versioned configuration builds",
		Version: versionString(),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			resolveConfig()
			var opts []client.Option
			if flagToken != "" {
				opts = append(opts, client.WithToken(flagToken))
			}
			if flagProjectKey != "" {
				opts = append(opts, client.WithProjectKey(flagProjectKey))
			}
			apiClient = client.New(flagURL, opts...)
		},
		SilenceUsage: true,
	}
	rootCmd.SetVersionTemplate("{{.Version}}\n")

	rootCmd.PersistentFlags().StringVar(&flagURL, "url", defaultURL, "buildhub server URL (env: BUILDHUB_URL)")
	rootCmd.PersistentFlags().StringVar(&flagToken, "token", "", "User bearer token (env: BUILDHUB_TOKEN)")
	rootCmd.PersistentFlags().StringVar(&flagProjectKey, "project-key", "", "Project API key for sdk commands (env: BUILDHUB_PROJECT_KEY)")
	rootCmd.PersistentFlags().StringVar(&flagFmt, "format", "json", "Output format: json|table|quiet")

	initCmd := newInitCmd()
	initCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {} // skip client setup

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(newDoctorCmd())
	rootCmd.AddCommand(newBuildCmd())
	rootCmd.AddCommand(newSDKCmd())
	rootCmd.AddCommand(newAuditCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func configPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".buildhub", "config.yaml"), nil
}

func loadConfigFile() (string, *configFile, error) {
	cfgPath, err := configPath()
	if err != nil {
		return "", nil, err
	}
	data, err := os.ReadFile(cfgPath)
	if err != nil {
		return cfgPath, nil, err
	}
	var cfg configFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfgPath, nil, err
	}
	return cfgPath, &cfg, nil
}

// profile returns the active profile, falling back to the flat fields.
func (c *configFile) profile() configProfile {
	p := configProfile{URL: c.URL, Token: c.Token, ProjectKey: c.ProjectKey}
	if c.Profiles == nil {
		return p
	}
	name := c.ActiveProfile
	if name == "" {
		name = "default"
	}
	if prof, ok := c.Profiles[name]; ok {
		if prof.URL != "" {
			p.URL = prof.URL
		}
		if prof.Token != "" {
			p.Token = prof.Token
		}
		if prof.ProjectKey != "" {
			p.ProjectKey = prof.ProjectKey
		}
	}
	return p
}

// resolveConfig fills unset flags from the environment, then the config file.
func resolveConfig() {
	if flagURL == defaultURL {
		if v := os.Getenv("BUILDHUB_URL"); v != "" {
			flagURL = v
		}
	}
	if flagToken == "" {
		flagToken = os.Getenv("BUILDHUB_TOKEN")
	}
	if flagProjectKey == "" {
		flagProjectKey = os.Getenv("BUILDHUB_PROJECT_KEY")
	}

	_, cfg, err := loadConfigFile()
	if err != nil {
		return
	}
	p := cfg.profile()
	if flagURL == defaultURL && p.URL != "" {
		flagURL = p.URL
	}
	if flagToken == "" {
		flagToken = p.Token
	}
	if flagProjectKey == "" {
		flagProjectKey = p.ProjectKey
	}
}

func fatal(msg string, err error) {
	fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
	os.Exit(1)
}
