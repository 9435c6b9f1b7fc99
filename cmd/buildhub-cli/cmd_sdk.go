package main

import (
	"context"

	"github.com/spf13/cobra"
)

func newSDKCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sdk",
		Short: "Fetch payloads the way app SDKs do (uses the project key)",
	}
	cmd.AddCommand(sdkFetchCmd())
	return cmd
}

func sdkFetchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch <preview|production>",
		Short: "Fetch the active build payload for a mode",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			payload, err := apiClient.SDK.Active(context.Background(), args[0])
			if err != nil {
				fatal("sdk fetch", err)
			}
			if flagFmt == "table" {
				formatActive(payload)
				return
			}
			output(payload, payload.ProjectID)
		},
	}
}
