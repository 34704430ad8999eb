package audit

import (
	"time"

	"github.com/google/uuid"

	"github.com/xela07ax/issue-router/internal/domain"
)

type Stage string

const (
	StageAnalyze Stage = "analyze"
	StageAssign  Stage = "assign"
)

// Event — одна запись журнала решений пайплайна.
type Event struct {
	ID          string    `json:"id"`       // UUID события
	TraceID     string    `json:"trace_id"` // Сквозной ID запуска
	Repository  string    `json:"repository"`
	IssueNumber int       `json:"issue_number"`
	Stage       Stage     `json:"stage"`
	AgentType   string    `json:"agent_type"`
	AgentID     string    `json:"agent_id,omitempty"`
	Priority    string    `json:"priority"`
	Confidence  float64   `json:"confidence,omitempty"`
	Outcome     string    `json:"outcome"` // analyzed, degraded, direct, fallback, overload, emergency, failed
	Error       string    `json:"error,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	DurationMs  int64     `json:"duration_ms"`
}

// FromAnalysis собирает событие по результату анализатора.
func FromAnalysis(traceID, repo string, res domain.AnalysisResult, took time.Duration) Event {
	outcome := "analyzed"
	if res.Degraded {
		outcome = "degraded"
	}
	return Event{
		ID:          uuid.New().String(),
		TraceID:     traceID,
		Repository:  repo,
		IssueNumber: res.IssueNumber,
		Stage:       StageAnalyze,
		AgentType:   string(res.AgentType),
		Priority:    string(res.Priority),
		Confidence:  res.Confidence,
		Outcome:     outcome,
		Timestamp:   time.Now(),
		DurationMs:  took.Milliseconds(),
	}
}

// FromAssignment собирает событие по результату Assigner.
func FromAssignment(traceID, repo string, res domain.AssignmentResult, took time.Duration) Event {
	return Event{
		ID:          uuid.New().String(),
		TraceID:     traceID,
		Repository:  repo,
		IssueNumber: res.IssueNumber,
		Stage:       StageAssign,
		AgentType:   string(res.Agent.Type),
		AgentID:     res.Agent.ID,
		Priority:    res.Priority,
		Outcome:     res.Outcome(),
		Error:       res.Error,
		Timestamp:   time.Now(),
		DurationMs:  took.Milliseconds(),
	}
}
