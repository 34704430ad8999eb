package dispatcher

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/xela07ax/issue-router/internal/analyzer"
	"github.com/xela07ax/issue-router/internal/assigner"
	"github.com/xela07ax/issue-router/internal/audit"
	"github.com/xela07ax/issue-router/internal/domain"
	"github.com/xela07ax/issue-router/internal/lock"
	"github.com/xela07ax/issue-router/internal/metrics"
)

// Result — ответ пайплайна: анализ и назначение одной задачи.
type Result struct {
	Analysis   domain.AnalysisResult   `json:"analysis"`
	Assignment domain.AssignmentResult `json:"assignment"`
}

// Pipeline связывает Analyzer и Assigner: analyze → lock → assign → audit.
type Pipeline struct {
	analyzer   *analyzer.Analyzer
	assigner   *assigner.Assigner
	locker     lock.Locker
	auditor    audit.Auditor
	metrics    *metrics.Metrics
	repository string
	logger     *zap.Logger
}

func NewPipeline(
	an *analyzer.Analyzer,
	as *assigner.Assigner,
	locker lock.Locker,
	auditor audit.Auditor,
	m *metrics.Metrics,
	repository string,
	logger *zap.Logger,
) *Pipeline {
	if locker == nil {
		locker = lock.NopLocker{}
	}
	if m == nil {
		m = metrics.New(nil)
	}
	return &Pipeline{
		analyzer:   an,
		assigner:   as,
		locker:     locker,
		auditor:    auditor,
		metrics:    m,
		repository: repository,
		logger:     logger.Named("pipeline"),
	}
}

// Route прогоняет задачу через оба этапа. Ошибка возвращается только если
// блокировка не взята: дальше пайплайн всегда приходит к результату.
func (p *Pipeline) Route(ctx context.Context, issue domain.Issue) (Result, error) {
	traceID := TraceIDFromContext(ctx)
	log := p.logger.With(zap.Int("issue", issue.Number), zap.String("trace_id", traceID))

	start := time.Now()
	analysis := p.analyzer.Analyze(issue)
	p.metrics.AnalysisTotal.WithLabelValues(string(analysis.AgentType), string(analysis.Priority)).Inc()
	p.record(audit.FromAnalysis(traceID, p.repository, analysis, time.Since(start)))

	release, err := p.locker.Acquire(ctx, issue.Number)
	if err != nil {
		if errors.Is(err, lock.ErrLocked) {
			log.Info("issue is already being routed, skipping")
		} else {
			log.Error("failed to acquire issue lock", zap.Error(err))
		}
		return Result{Analysis: analysis}, err
	}
	defer func() {
		// Снимаем блокировку даже если контекст запроса уже отменен
		relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := release(relCtx); err != nil {
			log.Warn("failed to release issue lock", zap.Error(err))
		}
	}()

	start = time.Now()
	assignment := p.assigner.Assign(ctx, issue.Number, string(analysis.AgentType), string(analysis.Priority))
	p.metrics.AssignmentsTotal.WithLabelValues(assignment.Outcome()).Inc()
	p.record(audit.FromAssignment(traceID, p.repository, assignment, time.Since(start)))

	log.Info("issue routed",
		zap.String("agent_type", string(assignment.Agent.Type)),
		zap.String("agent_id", assignment.Agent.ID),
		zap.String("outcome", assignment.Outcome()),
		zap.Float64("confidence", analysis.Confidence))

	return Result{Analysis: analysis, Assignment: assignment}, nil
}

func (p *Pipeline) record(e audit.Event) {
	if p.auditor != nil {
		p.auditor.Log(e)
	}
}
