package assigner

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xela07ax/issue-router/internal/domain"
	"github.com/xela07ax/issue-router/internal/tracker"
)

const (
	LabelAssigned          = "agent-assigned"
	LabelFallback          = "fallback-assignment"
	LabelOverload          = "overload-assignment"
	LabelEmergency         = "emergency-assignment"
	LabelNeedsManualReview = "needs-manual-review"

	defaultPageSize = 100
	defaultMaxPages = 10
)

type Config struct {
	Pool          domain.AgentPool
	FallbackOrder []domain.AgentType
	PageSize      int
	MaxPages      int
}

// Assigner выбирает слот агента под задачу и записывает решение в трекер.
// Повторный запуск для той же задачи снова добавит метки и комментарий:
// не запускать дважды — забота вызывающего (CI или dispatcher).
type Assigner struct {
	cfg     Config
	tracker tracker.Tracker
	logger  *zap.Logger
}

func New(cfg Config, t tracker.Tracker, logger *zap.Logger) *Assigner {
	if cfg.FallbackOrder == nil {
		cfg.FallbackOrder = domain.FallbackOrder
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = defaultMaxPages
	}
	return &Assigner{cfg: cfg, tracker: t, logger: logger.Named("assigner")}
}

// Workload считает открытые задачи с меткой agent-assigned по категориям.
// Ошибка чтения не блокирует назначение: снимок считается нулевым (fail open).
func (a *Assigner) Workload(ctx context.Context) domain.WorkloadSnapshot {
	snap := domain.NewWorkloadSnapshot(a.cfg.Pool)

	for page := 1; page <= a.cfg.MaxPages; page++ {
		issues, err := a.tracker.ListIssues(ctx, tracker.IssueQuery{
			Labels:  []string{LabelAssigned},
			State:   "open",
			PerPage: a.cfg.PageSize,
			Page:    page,
		})
		if err != nil {
			a.logger.Warn("failed to read current workload, assuming zero", zap.Error(err))
			return domain.NewWorkloadSnapshot(a.cfg.Pool)
		}

		for _, is := range issues {
			if t, ok := categoryFromLabels(is.Labels); ok {
				snap.Inc(t)
			}
		}
		if len(issues) < a.cfg.PageSize {
			break
		}
	}

	a.logger.Debug("workload snapshot", zap.Any("workload", snap.AsMap()))
	return snap
}

// categoryFromLabels берет первую метку вида agent:<type> или assigned:<type>.
func categoryFromLabels(labels domain.LabelSet) (domain.AgentType, bool) {
	for _, l := range labels {
		for _, prefix := range []string{"agent:", "assigned:"} {
			if strings.HasPrefix(l, prefix) {
				if t := strings.TrimPrefix(l, prefix); t != "" {
					return domain.AgentType(t), true
				}
			}
		}
	}
	return "", false
}

// Assign всегда приходит к решению: любой сбой на пути выбора превращается
// в экстренное назначение на fullstack с пометкой для ручной проверки.
// Success=false означает только сбой записи в трекер.
func (a *Assigner) Assign(ctx context.Context, number int, agentType, priority string) domain.AssignmentResult {
	res := domain.AssignmentResult{IssueNumber: number, Priority: priority}

	agent, err := a.decide(ctx, domain.AgentType(agentType))
	if err != nil {
		a.logger.Error("assignment failed, falling back to emergency assignment",
			zap.Int("issue", number),
			zap.String("agent_type", agentType),
			zap.Error(err))
		agent = emergencyAgent()
		res.Emergency = true
	}
	res.Agent = agent

	if err := a.tracker.AddLabels(ctx, number, Labels(res)); err != nil {
		return a.fail(res, err)
	}
	if err := a.tracker.CreateComment(ctx, number, Comment(res)); err != nil {
		return a.fail(res, err)
	}

	res.Success = true
	a.logger.Info("issue assigned",
		zap.Int("issue", number),
		zap.String("agent_type", string(agent.Type)),
		zap.String("agent_id", agent.ID),
		zap.String("outcome", res.Outcome()),
		zap.String("priority", priority))
	return res
}

func (a *Assigner) decide(ctx context.Context, preferred domain.AgentType) (agent domain.AssignedAgent, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("assignment panic: %v", r)
		}
	}()

	workload := a.Workload(ctx)
	return Decide(a.cfg.Pool, workload, preferred, a.cfg.FallbackOrder)
}

func (a *Assigner) fail(res domain.AssignmentResult, err error) domain.AssignmentResult {
	a.logger.Error("failed to write assignment to tracker",
		zap.Int("issue", res.IssueNumber),
		zap.String("agent_id", res.Agent.ID),
		zap.Error(err))
	res.Success = false
	res.Error = err.Error()
	return res
}

// Labels — метки, которые получает задача по итогам назначения.
func Labels(res domain.AssignmentResult) []string {
	labels := []string{
		"agent:" + string(res.Agent.Type),
		LabelAssigned,
		"priority:" + res.Priority,
		"agent-id:" + res.Agent.ID,
	}
	if res.Agent.IsFallback {
		labels = append(labels, LabelFallback)
	}
	if res.Agent.IsOverload {
		labels = append(labels, LabelOverload)
	}
	if res.Emergency {
		labels = append(labels, LabelEmergency, LabelNeedsManualReview)
	}
	return labels
}

// Comment — читаемое объяснение решения для задачи.
func Comment(res domain.AssignmentResult) string {
	var b strings.Builder
	b.WriteString("## Agent assignment\n\n")
	fmt.Fprintf(&b, "- **Agent:** `%s` (`%s`)\n", res.Agent.Type, res.Agent.ID)
	fmt.Fprintf(&b, "- **Priority:** %s\n", res.Priority)
	fmt.Fprintf(&b, "- **Current workload:** %d\n", res.Agent.Workload)

	switch {
	case res.Emergency:
		b.WriteString("\n**Emergency assignment.** The routing pipeline failed; a maintainer should review this issue manually.\n")
	case res.Agent.IsOverload:
		b.WriteString("\nAll agent pools are at capacity. Assigned to the least loaded category.\n")
	case res.Agent.IsFallback:
		b.WriteString("\nThe preferred category was at capacity. Assigned through the fallback order.\n")
	}
	return b.String()
}
