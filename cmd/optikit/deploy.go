package main

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/optikit/optikit/pkg/api"
	"github.com/optikit/optikit/pkg/config"
)

var (
	modelPath      string
	manifestPath   string
	deletePrevious bool
)

func init() {
	rootCmd.AddCommand(deployCmd)

	deployCmd.Flags().StringVarP(&modelPath, "model", "m", "model.py", "Path to the model source file to package and publish.")
	deployCmd.Flags().StringVar(&manifestPath, "manifest", "model.yaml", "Path to the model manifest.")
	deployCmd.Flags().BoolVar(&deletePrevious, "delete-previous", false, "Delete the previously recorded model and deployment first.")
}

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Publish the model artifact and create a deployment for it.",
	Long: `Packages the model source into an archive, publishes it under the
software specification named in the manifest, binds it to the manifest's
hardware specification, and records the generated identifiers in
settings.json for later runs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, cerr := config.Load(configDir)
		if cerr != nil {
			return cerr
		}
		manifest, cerr := config.LoadManifest(manifestPath)
		if cerr != nil {
			return cerr
		}

		client, cerr := api.NewClient(ctx, cfg)
		if cerr != nil {
			return cerr
		}

		if deletePrevious {
			// best effort, as when replacing a publication by hand
			if cfg.DeploymentID != "" {
				if err := client.DeleteDeployment(ctx, cfg.DeploymentID); err != nil {
					logrus.Warnf("Could not delete previous deployment %s: %v", cfg.DeploymentID, err)
				}
			}
			if cfg.ModelID != "" {
				if err := client.DeleteModel(ctx, cfg.ModelID); err != nil {
					logrus.Warnf("Could not delete previous model %s: %v", cfg.ModelID, err)
				}
			}
		}

		specID, cerr := client.SoftwareSpecID(ctx, manifest.SoftwareSpec)
		if cerr != nil {
			return cerr
		}

		modelID, cerr := client.CreateModel(ctx, manifest, specID)
		if cerr != nil {
			return cerr
		}

		archive, err := api.PackageModel(modelPath)
		if err != nil {
			return err
		}
		if cerr := client.UploadModelContent(ctx, modelID, archive); cerr != nil {
			return cerr
		}

		name := fmt.Sprintf("%s DEPLOYMENT - %s", manifest.Name, time.Now().Format("2006-01-02"))
		deploymentID, cerr := client.CreateDeployment(ctx, modelID, name, manifest.HardwareSpec)
		if cerr != nil {
			return cerr
		}

		if cerr := cfg.StoreIDs(modelID, deploymentID); cerr != nil {
			return cerr
		}
		logrus.Infof("Deployment %s is ready; identifiers recorded in settings.json", deploymentID)
		return nil
	},
}
