package domain

type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

type Effort string

const (
	EffortSmall   Effort = "small"
	EffortMedium  Effort = "medium"
	EffortLarge   Effort = "large"
	EffortXL      Effort = "xl"
	EffortUnknown Effort = "unknown"
)

// AnalysisResult — результат анализатора. Живет один запуск: собрали, вывели, забыли.
type AnalysisResult struct {
	IssueNumber     int       `json:"issue_number"`
	AgentType       AgentType `json:"agent_type"`
	Priority        Priority  `json:"priority"`
	Confidence      float64   `json:"confidence"`
	Reasoning       []string  `json:"reasoning"`
	EstimatedEffort Effort    `json:"estimated_effort"`
	Degraded        bool      `json:"degraded,omitempty"`
}

// NewAnalysisResult возвращает результат с дефолтами до первого прохода эвристик.
func NewAnalysisResult(number int) AnalysisResult {
	return AnalysisResult{
		IssueNumber:     number,
		AgentType:       AgentFullstack,
		Priority:        PriorityMedium,
		Reasoning:       []string{},
		EstimatedEffort: EffortUnknown,
	}
}

// AddReason дописывает шаг в трассу рассуждений (только append).
func (r *AnalysisResult) AddReason(reason string) {
	r.Reasoning = append(r.Reasoning, reason)
}
