package domain

// AssignedAgent — конкретный слот, на который легла задача.
type AssignedAgent struct {
	Type       AgentType `json:"type"`
	ID         string    `json:"id"`
	Workload   int       `json:"workload"`
	IsFallback bool      `json:"is_fallback"`
	IsOverload bool      `json:"is_overload"`
}

// AssignmentResult — итог работы Assigner. Success=false только при сбое записи в трекер.
type AssignmentResult struct {
	IssueNumber int           `json:"issue_number"`
	Agent       AssignedAgent `json:"agent"`
	Priority    string        `json:"priority"`
	Success     bool          `json:"success"`
	Error       string        `json:"error,omitempty"`
	Emergency   bool          `json:"emergency,omitempty"`
}

// Outcome — короткое имя ветки решения для метрик и аудита.
func (r AssignmentResult) Outcome() string {
	switch {
	case !r.Success:
		return "failed"
	case r.Emergency:
		return "emergency"
	case r.Agent.IsOverload:
		return "overload"
	case r.Agent.IsFallback:
		return "fallback"
	default:
		return "direct"
	}
}
