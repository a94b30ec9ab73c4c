package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/optikit/optikit/pkg/api"
	"github.com/optikit/optikit/pkg/config"
)

func init() {
	rootCmd.AddCommand(cleanupCmd)
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete the recorded deployment and model from the platform.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, cerr := config.Load(configDir)
		if cerr != nil {
			return cerr
		}
		if cfg.DeploymentID == "" && cfg.ModelID == "" {
			logrus.Info("Nothing recorded in settings.json; nothing to clean up")
			return nil
		}

		client, cerr := api.NewClient(ctx, cfg)
		if cerr != nil {
			return cerr
		}

		if cfg.DeploymentID != "" {
			if err := client.DeleteDeployment(ctx, cfg.DeploymentID); err != nil {
				return err
			}
			logrus.Infof("Deleted deployment %s", cfg.DeploymentID)
		}
		if cfg.ModelID != "" {
			if err := client.DeleteModel(ctx, cfg.ModelID); err != nil {
				return err
			}
			logrus.Infof("Deleted model %s", cfg.ModelID)
		}
		if cerr := cfg.StoreIDs("", ""); cerr != nil {
			return cerr
		}
		return nil
	},
}
