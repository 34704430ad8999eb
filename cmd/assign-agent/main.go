package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xela07ax/issue-router/internal/app"
	"github.com/xela07ax/issue-router/internal/audit"
	"github.com/xela07ax/issue-router/internal/domain"
	"github.com/xela07ax/issue-router/internal/infra"
	"github.com/xela07ax/issue-router/internal/tracker"
)

type assignFlags struct {
	number    int
	agentType string
	priority  string
}

// newTracker подменяется в тестах
var newTracker = app.Tracker

func newRootCmd(stdout io.Writer) *cobra.Command {
	var f assignFlags

	cmd := &cobra.Command{
		Use:   "assign-agent",
		Short: "Pick an agent slot for an analyzed issue and label it",
		Long: `Reads the open assigned issues to compute the current workload, picks a slot
for the requested category (falling back when it is at capacity) and writes
labels and a comment to the issue.

Exits non-zero when the decision could not be written to GitHub.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runAssign(ctx, stdout, f)
		},
	}

	cmd.Flags().IntVar(&f.number, "issue-number", 0, "issue number")
	cmd.Flags().StringVar(&f.agentType, "agent-type", "", "agent category from the analyzer")
	cmd.Flags().StringVar(&f.priority, "priority", "", "priority from the analyzer")
	_ = cmd.MarkFlagRequired("issue-number")
	_ = cmd.MarkFlagRequired("agent-type")
	_ = cmd.MarkFlagRequired("priority")

	return cmd
}

func runAssign(ctx context.Context, stdout io.Writer, f assignFlags) error {
	cfg, err := infra.LoadConfig()
	if err != nil {
		return err
	}
	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	t, err := newTracker(cfg, nil, logger)
	if err != nil {
		logger.Error("failed to build GitHub client", zap.Error(err))
		return err
	}

	// Журнал решений опционален: без базы события уходят в лог
	recorder, stopAudit := startAudit(ctx, cfg, logger)
	defer stopAudit()

	res := assign(ctx, cfg, t, recorder, f, logger)

	if err := json.NewEncoder(stdout).Encode(res); err != nil {
		logger.Error("failed to print result", zap.Error(err))
	}
	if !res.Success {
		return fmt.Errorf("assignment for issue #%d was not written: %s", res.IssueNumber, res.Error)
	}
	return nil
}

func assign(ctx context.Context, cfg *infra.Config, t tracker.Tracker, auditor audit.Auditor, f assignFlags, logger *zap.Logger) domain.AssignmentResult {
	start := time.Now()
	res := app.Assigner(cfg, t, logger).Assign(ctx, f.number, f.agentType, f.priority)

	auditor.Log(audit.FromAssignment(runTraceID(), cfg.GitHub.Repository, res, time.Since(start)))
	return res
}

// runTraceID связывает события одного прогона Actions
func runTraceID() string {
	if id := os.Getenv("GITHUB_RUN_ID"); id != "" {
		return id
	}
	return uuid.New().String()
}

func startAudit(ctx context.Context, cfg *infra.Config, logger *zap.Logger) (*audit.Recorder, func()) {
	storage, closeStorage, err := app.AuditStorage(ctx, cfg.Database, logger)
	if err != nil {
		logger.Warn("audit database unavailable, logging decisions instead", zap.Error(err))
		storage, closeStorage = audit.NewLogStorage(logger), func() {}
	}

	r := audit.NewRecorder(storage, 16, nil, logger)
	r.Start()
	return r, func() {
		r.Stop()
		closeStorage()
	}
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}
