package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/tomandjerry07030304/smart-hiring-sub000/internal/candidate"
	"github.com/tomandjerry07030304/smart-hiring-sub000/internal/logger"
	"github.com/tomandjerry07030304/smart-hiring-sub000/internal/screening"
)

const (
	PromptExit          = "Exit"
	PromptShowReport    = "Show fairness report"
	PromptReportToFile  = "Dump fairness report to file"
	PromptShortlistFile = "Dump shortlist to file"
)

var errExit = errors.New("exit requested")

var prompt = promptui.Select{
	Label: "Shortlist ready. What next?",
	Items: []string{PromptShowReport, PromptReportToFile, PromptShortlistFile, PromptExit},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Shortlist a candidate pool and audit the selection for disparity",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("candidates", "c", "", "JSON file with the scored candidate pool")
	runCmd.Flags().StringP("method", "m", "", "shortlisting method: postprocessing, reweighting or threshold_optimization")
	runCmd.Flags().StringP("attribute", "a", "", "protected attribute key to balance on")
	runCmd.Flags().Float64P("percentage", "p", 0, "selection percentage in (0,1]")
	runCmd.Flags().BoolP("auto-approve", "y", false, "print the report and exit without the interactive menu")

	viper.BindPFlag("candidates", runCmd.Flags().Lookup("candidates"))
	viper.BindPFlag("protected-attribute", runCmd.Flags().Lookup("attribute"))
	viper.BindPFlag("shortlist.method", runCmd.Flags().Lookup("method"))
	viper.BindPFlag("shortlist.selection-percentage", runCmd.Flags().Lookup("percentage"))
}

// run is the main command for the cli.
func run(cmd *cobra.Command) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting fairshort", zap.String("version", version))

	if config.Candidates == "" {
		logger.Fatal("candidate pool file is required", zap.String("hint", "pass --candidates or set candidates in the configuration file"))
	}
	if config.Shortlist == nil || config.Shortlist.Method == "" {
		logger.Fatal("shortlisting method is required under shortlist.method")
	}

	pool, err := candidate.LoadPool(config.Candidates)
	if err != nil {
		logger.Fatal("loading candidate pool", zap.Error(err))
	}

	logger.Info("loaded candidate pool", zap.String("file", config.Candidates), zap.Int("count", pool.Len()))

	service, err := buildService(ctx, config, logger)
	if err != nil {
		logger.Fatal("building screening service", zap.Error(err))
	}

	resp, err := service.Shortlist(ctx, screening.ShortlistRequest{
		Pool:                     pool,
		Method:                   config.Shortlist.Method,
		Attribute:                config.ProtectedAttribute,
		SelectionPercentage:      config.Shortlist.SelectionPercentage,
		DisparateImpactThreshold: config.Shortlist.DisparateImpactThreshold,
	})
	if err != nil {
		logger.Fatal("shortlisting failed", zap.Error(err))
	}

	logger.Info("shortlist selected",
		zap.Int("count", len(resp.SelectedIDs)),
		zap.Strings("candidate_ids", resp.SelectedIDs),
		zap.String("severity", resp.Report.Severity.String()),
		zap.Float64("overall_fairness_score", resp.Report.OverallScore),
	)

	if cmd.Flag("auto-approve").Value.String() == "true" {
		printJSON(resp.Report)
		return
	}

	for {
		_, action, err := prompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}

		if err := handleAction(action, logger, resp); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			logger.Fatal("exiting", zap.Error(err))
		}
	}
}

func handleAction(action string, logger *zap.Logger, resp *screening.ShortlistResponse) error {
	switch action {
	case PromptShowReport:
		printJSON(resp.Report)
		return nil
	case PromptReportToFile:
		filename, err := dumpJSONToTmpFile("fairness_report_*.json", resp.Report)
		if err != nil {
			return fmt.Errorf("dump report to file: %w", err)
		}
		logger.Info("dumping fairness report to file", zap.String("filename", filename))
		return nil
	case PromptShortlistFile:
		filename, err := dumpJSONToTmpFile("shortlist_*.json", resp.Result)
		if err != nil {
			return fmt.Errorf("dump shortlist to file: %w", err)
		}
		logger.Info("dumping shortlist to file", zap.String("filename", filename))
		return nil
	case PromptExit:
		logger.Info("exiting", zap.String("reason", "got exit from prompt"))
		return errExit
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

func printJSON(v any) {
	pretty, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(pretty))
}

func dumpJSONToTmpFile(pattern string, v any) (string, error) {
	file, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return file.Name(), nil
}
