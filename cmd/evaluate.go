package cmd

import (
	"context"
	"encoding/json"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/tomandjerry07030304/smart-hiring-sub000/internal/logger"
)

// evaluationInput is the file format for the evaluate command: parallel
// per-candidate vectors.
type evaluationInput struct {
	Predictions []int    `json:"predictions"`
	Labels      []int    `json:"labels,omitempty"`
	Sensitive   []string `json:"sensitive_features"`
}

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate fairness metrics for an existing selection decision",
	Run: func(cmd *cobra.Command, _ []string) {
		evaluate(cmd)
	},
}

func init() {
	rootCmd.AddCommand(evaluateCmd)

	evaluateCmd.Flags().StringP("input", "i", "", "JSON file with predictions, optional labels and sensitive_features")
}

func evaluate(cmd *cobra.Command) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	path := cmd.Flag("input").Value.String()
	if path == "" {
		logger.Fatal("evaluation input file is required", zap.String("hint", "pass --input with a JSON file"))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Fatal("reading evaluation input", zap.Error(err))
	}

	var in evaluationInput
	if err := json.Unmarshal(data, &in); err != nil {
		logger.Fatal("parsing evaluation input", zap.Error(err))
	}

	service, err := buildService(ctx, config, logger)
	if err != nil {
		logger.Fatal("building screening service", zap.Error(err))
	}

	report, err := service.Evaluate(ctx, in.Predictions, in.Labels, in.Sensitive)
	if err != nil {
		logger.Fatal("evaluation failed", zap.Error(err))
	}

	logger.Info("evaluation finished",
		zap.String("engine", report.Engine),
		zap.String("severity", report.Severity.String()),
	)

	printJSON(report)
}
