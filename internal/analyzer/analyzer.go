package analyzer

import (
	"fmt"
	"math"
	"strings"

	"github.com/xela07ax/issue-router/internal/domain"
	"go.uber.org/zap"
)

const (
	// confidenceSaturation — сколько совпавших ключевых слов дают уверенность 1.0.
	confidenceSaturation = 3.0
	labelConfidenceBoost = 0.3

	degradedReason = "Analysis failed, defaulting to fullstack agent"
)

// Analyzer угадывает категорию, приоритет и объем работ по тексту задачи и ее меткам.
// Сетевых вызовов не делает.
type Analyzer struct {
	logger *zap.Logger
}

func New(logger *zap.Logger) *Analyzer {
	return &Analyzer{logger: logger.Named("analyzer")}
}

// AnalyzeRaw разбирает метки из JSON внутри границы анализа: битый JSON деградирует
// результат так же, как любой другой сбой, и не валит процесс.
func (a *Analyzer) AnalyzeRaw(number int, title, body, labelsJSON string) domain.AnalysisResult {
	labels, err := domain.ParseLabels(labelsJSON)
	if err != nil {
		res := domain.NewAnalysisResult(number)
		a.degrade(&res, fmt.Errorf("parse labels: %w", err))
		return res
	}
	return a.Analyze(domain.Issue{Number: number, Title: title, Body: body, Labels: labels})
}

// Analyze никогда не возвращает ошибку: при панике в любом проходе результат
// откатывается к безопасному fullstack/medium.
func (a *Analyzer) Analyze(issue domain.Issue) (res domain.AnalysisResult) {
	res = domain.NewAnalysisResult(issue.Number)

	defer func() {
		if r := recover(); r != nil {
			a.degrade(&res, fmt.Errorf("panic: %v", r))
		}
	}()

	content := strings.ToLower(issue.Title + " " + issue.Body)
	labels := normalizeLabels(issue.Labels)

	a.scoreCategory(&res, content)
	a.applyLabelOverride(&res, labels)
	a.detectPriority(&res, content, labels)
	a.estimateEffort(&res, content)

	a.logger.Info("issue analyzed",
		zap.Int("issue", issue.Number),
		zap.String("agent_type", string(res.AgentType)),
		zap.String("priority", string(res.Priority)),
		zap.Float64("confidence", res.Confidence),
		zap.String("effort", string(res.EstimatedEffort)),
	)
	return res
}

func (a *Analyzer) degrade(res *domain.AnalysisResult, cause error) {
	a.logger.Error("analysis failed, using safe default", zap.Int("issue", res.IssueNumber), zap.Error(cause))
	res.AgentType = domain.AgentFullstack
	res.Priority = domain.PriorityMedium
	res.Degraded = true
	res.AddReason(degradedReason)
}

// scoreCategory: +1 за каждое уникальное ключевое слово категории, найденное в тексте.
// Лучшая категория меняется только при строгом '>', поэтому при равенстве побеждает
// объявленная раньше.
func (a *Analyzer) scoreCategory(res *domain.AnalysisResult, content string) {
	best := domain.AgentFullstack
	bestScore := 0

	for _, t := range domain.AgentTypes {
		score := countHits(content, categoryKeywords[t])
		if score > bestScore {
			best, bestScore = t, score
		}
	}

	res.AgentType = best
	res.Confidence = math.Min(float64(bestScore)/confidenceSaturation, 1.0)

	if bestScore == 0 {
		res.AddReason("No category keywords matched, defaulting to fullstack")
		return
	}
	res.AddReason(fmt.Sprintf("Content keywords suggest %s (score %d)", best, bestScore))
}

type labelScore struct {
	t     domain.AgentType
	score int
}

// applyLabelOverride: метки весомее текста. Свертка по категориям в порядке первого
// попадания; аккумулятор сохраняется только при строгом '>', так что при равенстве
// побеждает категория, встреченная позже.
func (a *Analyzer) applyLabelOverride(res *domain.AnalysisResult, labels []string) {
	var scores []labelScore
	for _, l := range labels {
		t, ok := labelCategories[l]
		if !ok {
			continue
		}
		found := false
		for i := range scores {
			if scores[i].t == t {
				scores[i].score += labelWeight
				found = true
				break
			}
		}
		if !found {
			scores = append(scores, labelScore{t: t, score: labelWeight})
		}
	}
	if len(scores) == 0 {
		return
	}

	winner := scores[0]
	for _, s := range scores[1:] {
		if !(winner.score > s.score) {
			winner = s
		}
	}
	if winner.score < labelWeight {
		return
	}

	res.AgentType = winner.t
	res.Confidence = math.Min(res.Confidence+labelConfidenceBoost, 1.0)
	res.AddReason(fmt.Sprintf("Labels override category to %s (label score %d)", winner.t, winner.score))
}

func (a *Analyzer) detectPriority(res *domain.AnalysisResult, content string, labels []string) {
	for _, l := range labels {
		name := strings.TrimSpace(strings.TrimPrefix(l, "priority:"))
		if p, ok := priorityLabels[name]; ok {
			res.Priority = p
			res.AddReason(fmt.Sprintf("Priority %s taken from label %q", p, l))
			return
		}
	}

	// Без раннего выхода: каждый сработавший уровень перезаписывает предыдущий.
	matched := ""
	for _, tier := range priorityIndicators {
		for _, ind := range tier.indicators {
			if strings.Contains(content, ind) {
				res.Priority = tier.priority
				matched = ind
			}
		}
	}
	if matched != "" {
		res.AddReason(fmt.Sprintf("Priority %s inferred from content (%q)", res.Priority, matched))
	}
}

// estimateEffort: свертка от аккумулятора medium, замена только при строгом '>'.
func (a *Analyzer) estimateEffort(res *domain.AnalysisResult, content string) {
	hits := make(map[domain.Effort]int, len(effortTiers))
	for _, tier := range effortTiers {
		hits[tier.effort] = countHits(content, tier.keywords)
	}

	best := domain.EffortMedium
	for _, tier := range effortTiers {
		if hits[tier.effort] > hits[best] {
			best = tier.effort
		}
	}

	res.EstimatedEffort = best
	res.AddReason(fmt.Sprintf("Estimated effort %s (%d keyword hits)", best, hits[best]))
}

func countHits(content string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if strings.Contains(content, kw) {
			n++
		}
	}
	return n
}

func normalizeLabels(labels domain.LabelSet) []string {
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		out = append(out, strings.ToLower(strings.TrimSpace(l)))
	}
	return out
}
