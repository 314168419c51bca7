package cmd

import (
	"context"
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/tomandjerry07030304/smart-hiring-sub000/internal/logger"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Probe the primary evaluator and print the routing counters",
	Run: func(_ *cobra.Command, _ []string) {
		health()
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}

func health() {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	service, err := buildService(ctx, config, logger)
	if err != nil {
		logger.Fatal("building screening service", zap.Error(err))
	}

	printJSON(service.Health(ctx))
}
