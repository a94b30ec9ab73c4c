package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/optikit/optikit/pkg/sandbox"
)

var (
	sandboxAddr   string
	sandboxAPIKey string
	sandboxSpace  string
)

func init() {
	rootCmd.AddCommand(sandboxCmd)

	sandboxCmd.Flags().StringVar(&sandboxAddr, "addr", ":8080", "Address the sandbox platform listens on.")
	sandboxCmd.Flags().StringVar(&sandboxAPIKey, "api-key", "", "If set, the only API key the token endpoint accepts.")
	sandboxCmd.Flags().StringVar(&sandboxSpace, "space", "", "If set, the only deployment space accepted.")
}

var sandboxCmd = &cobra.Command{
	Use:   "sandbox",
	Short: "Run an in-memory stand-in for the platform for local development.",
	RunE: func(cmd *cobra.Command, args []string) error {
		var opts []sandbox.Option
		if sandboxAPIKey != "" {
			opts = append(opts, sandbox.WithAPIKey(sandboxAPIKey))
		}
		if sandboxSpace != "" {
			opts = append(opts, sandbox.WithSpaceUID(sandboxSpace))
		}

		logrus.Infof("Sandbox platform listening on %s", sandboxAddr)
		return sandbox.New(opts...).Listen(sandboxAddr)
	},
}
