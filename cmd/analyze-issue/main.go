package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xela07ax/issue-router/internal/analyzer"
	"github.com/xela07ax/issue-router/internal/infra"
)

type analyzeFlags struct {
	number int
	title  string
	body   string
	labels string
}

func newRootCmd(stdout io.Writer) *cobra.Command {
	var f analyzeFlags

	cmd := &cobra.Command{
		Use:   "analyze-issue",
		Short: "Classify an issue into an agent category, priority and effort",
		Long: `Runs keyword heuristics over the issue title, body and labels.

Prints ::set-output annotations and a summary on stdout. When GITHUB_OUTPUT is
set, the same keys are appended to that file. Analysis failures degrade to a
fullstack/medium result and never change the exit code.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(stdout, f)
		},
	}

	cmd.Flags().IntVar(&f.number, "issue-number", 0, "issue number")
	cmd.Flags().StringVar(&f.title, "issue-title", "", "issue title")
	cmd.Flags().StringVar(&f.body, "issue-body", "", "issue body")
	cmd.Flags().StringVar(&f.labels, "issue-labels", "[]", "issue labels as a JSON array")
	_ = cmd.MarkFlagRequired("issue-number")
	_ = cmd.MarkFlagRequired("issue-title")

	return cmd
}

func runAnalyze(stdout io.Writer, f analyzeFlags) error {
	logger := cliLogger()
	defer func() { _ = logger.Sync() }()

	res := analyzer.New(logger).AnalyzeRaw(f.number, f.title, f.body, f.labels)

	if err := analyzer.WriteOutputs(stdout, res); err != nil {
		// Вывод сломан, но результат уже посчитан: код возврата не меняем
		logger.Error("failed to write outputs", zap.Error(err))
	}
	if path := os.Getenv("GITHUB_OUTPUT"); path != "" {
		if err := analyzer.WriteGitHubOutput(path, res); err != nil {
			logger.Error("failed to write GITHUB_OUTPUT", zap.Error(err))
		}
	}
	return nil
}

// cliLogger не должен ронять анализ из-за кривого конфига
func cliLogger() *zap.Logger {
	cfg, err := infra.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error, using defaults: %v\n", err)
		cfg = &infra.Config{Logger: infra.LoggerConfig{Level: "info", Format: "json"}}
	}
	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error, logging disabled: %v\n", err)
		return zap.NewNop()
	}
	return logger
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}
