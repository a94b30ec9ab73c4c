package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/optikit/optikit/pkg/api"
	"github.com/optikit/optikit/pkg/config"
	"github.com/optikit/optikit/pkg/contract"
	"github.com/optikit/optikit/pkg/runner"
	"github.com/optikit/optikit/pkg/tabular"
)

var (
	inputDir  string
	outputDir string
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&inputDir, "input", "i", ".", "Directory whose .csv files become the job's input tables.")
	runCmd.Flags().StringVarP(&outputDir, "output", "o", ".", "Directory the output tables are written to as .csv files.")
}

// solveParameters mirrors the run configuration submitted with every job.
func solveParameters() map[string]any {
	return map[string]any{
		"oaas.logAttachmentName": "log.txt",
		"oaas.logTailEnabled":    "true",
		"oaas.resultsFormat":     "JSON",
		"oaas.timeLimit":         10,
	}
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Submit a job against the recorded deployment and fetch its outputs.",
	Long: `Reads every .csv file in the input directory as a named table, submits
one execution job against the deployment recorded in settings.json, polls
until the job reaches a terminal state or the configured timeout elapses,
and writes the output tables as .csv files.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, cerr := config.Load(configDir)
		if cerr != nil {
			return cerr
		}
		if cfg.DeploymentID == "" {
			return contract.NewError(contract.ErrorCodeConfiguration,
				"settings.json has no deployment_id; run `optikit deploy` first")
		}

		inputs, err := tabular.ReadCSVDir(inputDir)
		if err != nil {
			return err
		}
		if len(inputs) == 0 {
			return contract.NewErrorf(contract.ErrorCodeConfiguration, "no .csv input tables found in %s", inputDir)
		}

		client, cerr := api.NewClient(ctx, cfg)
		if cerr != nil {
			return cerr
		}

		r := runner.New(client, cfg.PollInterval.Duration, cfg.PollTimeout.Duration)
		outputs, cerr := r.Execute(ctx, cfg.DeploymentID, inputs, solveParameters())
		if cerr != nil {
			return cerr
		}

		if err := tabular.WriteCSVDir(outputDir, outputs); err != nil {
			return err
		}
		for _, table := range outputs {
			logrus.Infof("Wrote %s", table)
		}
		return nil
	},
}
