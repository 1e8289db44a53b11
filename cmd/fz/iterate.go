package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jihwankim/fzgo/fz"
	"github.com/jihwankim/fzgo/pkg/cancel"
	"github.com/jihwankim/fzgo/pkg/iterative"
)

var iterateCmd = &cobra.Command{
	Use:   "iterate",
	Args:  cobra.NoArgs,
	Short: "Drive an iterative design-evaluate-analyze loop (fzd)",
	RunE:  runIterate,
}

func init() {
	iterateCmd.Flags().String("template", "", "path to the template tree")
	iterateCmd.Flags().String("model", "", "path to a model YAML file")
	iterateCmd.Flags().String("ranges", "", "path to a YAML file of input_name: [lo, hi] ranges")
	iterateCmd.Flags().String("output-expr", "", "restricted arithmetic expression over the model's output names")
	iterateCmd.Flags().String("results", "", "output directory for results")
	iterateCmd.Flags().StringArray("calculator", []string{}, "calculator URI (repeatable, comma-separated)")
	iterateCmd.Flags().Int("grid-points", 5, "samples per input dimension for the built-in grid algorithm")
	iterateCmd.Flags().String("ssh-key", "", "path to an SSH private key (falls back to SSH_AUTH_SOCK agent)")
	iterateCmd.Flags().String("stop-file", "", "path polled for existence; its appearance cancels the run")
	iterateCmd.Flags().String("metrics-addr", "", "if set, serve Prometheus case-completion metrics at http://<addr>/metrics")
	iterateCmd.MarkFlagRequired("template")
	iterateCmd.MarkFlagRequired("ranges")
	iterateCmd.MarkFlagRequired("output-expr")
	iterateCmd.MarkFlagRequired("results")
	iterateCmd.MarkFlagRequired("calculator")
}

func runIterate(cmd *cobra.Command, args []string) error {
	templatePath, _ := cmd.Flags().GetString("template")
	modelPath, _ := cmd.Flags().GetString("model")
	rangesPath, _ := cmd.Flags().GetString("ranges")
	outputExpr, _ := cmd.Flags().GetString("output-expr")
	resultsDir, _ := cmd.Flags().GetString("results")
	calcFlags, _ := cmd.Flags().GetStringArray("calculator")
	gridPoints, _ := cmd.Flags().GetInt("grid-points")
	sshKeyPath, _ := cmd.Flags().GetString("ssh-key")
	stopFile, _ := cmd.Flags().GetString("stop-file")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	m, err := loadModel(modelPath)
	if err != nil {
		return err
	}

	ranges, err := loadRanges(rangesPath)
	if err != nil {
		return err
	}

	calculators := splitCalculators(calcFlags)

	ctx := context.Background()
	ctrl := cancel.New(cancel.Config{StopFile: stopFile, EnableSignalHandlers: true, Logger: logger})
	ctrl.Start(ctx)

	backends, err := buildBackends(calculators, cfg, sshKeyPath)
	if err != nil {
		return err
	}

	algo := iterative.NewGridAlgorithm(gridPoints)
	metrics := startMetricsServer(metricsAddr, logger)

	report, err := fz.RunIterative(ctx, templatePath, ranges, m, outputExpr, algo, calculators, resultsDir, fz.RunOptions{
		MaxRetries: cfg.MaxRetries,
		MaxWorkers: cfg.MaxWorkers,
		ShellPath:  cfg.ShellPath,
		Backends:   backends,
		Cancel:     ctrl,
		Logger:     logger,
		Metrics:    metrics,
	})
	if err != nil {
		return fmt.Errorf("run iterative: %w", err)
	}

	fmt.Printf("rounds: %d, cases: %d\n", report.Rounds, len(report.Outputs))
	if report.Final.Text != "" {
		fmt.Println(report.Final.Text)
	}
	return nil
}

func loadRanges(path string) (map[string][2]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ranges %s: %w", path, err)
	}
	var raw map[string][2]float64
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse ranges %s: %w", path, err)
	}
	return raw, nil
}
